// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcross/xcross/internal/config"
	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/lifecycle"
	"github.com/xcross/xcross/internal/runtime"
	"github.com/xcross/xcross/internal/testutil/enginetest"
	"github.com/xcross/xcross/internal/toolchain"
)

const testTarget = "aarch64-unknown-linux-gnu"

func TestHelperProcess(t *testing.T) {
	enginetest.HelperProcess()
}

type testApp struct {
	*App
	rec     *enginetest.Recorder
	tc      *toolchain.Toolchain
	project string
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

// newTestApp returns an App over a fake docker engine, a toolchain and a
// cargo project in a temporary directory.
func newTestApp(t *testing.T, cfg *config.Config, respond func([]string) enginetest.Response) *testApp {
	t.Helper()
	tmp := t.TempDir()
	project := filepath.Join(tmp, "project")
	sysroot := filepath.Join(tmp, "sysroot")
	for _, dir := range []string{
		filepath.Join(project, "src"),
		filepath.Join(sysroot, "lib", "rustlib", "x86_64-unknown-linux-gnu"),
		filepath.Join(tmp, "cargo"),
	} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(project, manifestName), []byte("[package]\nname = \"hello\"\n"), 0o644))

	rec := enginetest.New(respond)
	engine := container.NewEngine("/usr/bin/docker", container.KindDocker, container.WithExecCommand(rec.ExecCommand()))
	engine.Arch, engine.OS = "amd64", "linux"

	tc := &toolchain.Toolchain{
		Sysroot:    sysroot,
		Host:       "x86_64-unknown-linux-gnu",
		Version:    "rustc 1.79.0 (129f3b996 2024-06-10)",
		CommitHash: "129f3b9964af4d4a709d1383930ade12dfe7c081",
		Release:    "1.79.0",
	}
	env := map[string]string{
		"CARGO_HOME": filepath.Join(tmp, "cargo"),
		"XARGO_HOME": filepath.Join(tmp, "xargo"),
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{
		Config: config.NewStaticProvider(cfg),
		ProbeEngine: func(context.Context, container.ProbeOptions) (*container.Engine, error) {
			return engine, nil
		},
		ProbeToolchain: func(context.Context, toolchain.ProbeOptions) (*toolchain.Toolchain, error) {
			return tc, nil
		},
		Guard: &lifecycle.ChildContainer{},
		LookupEnv: func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		},
		Getwd:  func() (string, error) { return project, nil },
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	return &testApp{App: app, rec: rec, tc: tc, project: project, stdout: &stdout, stderr: &stderr}
}

func (a *testApp) execute(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(a.App)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root.ExecuteContext(t.Context())
}

func TestRun_BuildFailureHintsAtMissingStdlib(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Build.DefaultTarget = testTarget
	app := newTestApp(t, cfg, enginetest.Rules{
		{Prefix: []string{"run"}, Response: enginetest.Response{ExitCode: 101}},
	}.Respond)

	err := app.execute(t, "build")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, runtime.ExitStatus(101), exitErr.Code)
	assert.Contains(t, app.stderr.String(), "rustup target add "+testTarget)

	run, ok := app.rec.Find("run")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(run[len(run)-1], "cargo build --target "+testTarget),
		"the configured target is passed to cargo: %q", run[len(run)-1])
}

func TestRun_CargoFlagsAreNotParsed(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(app.tc.Sysroot, "lib", "rustlib", testTarget), 0o755))

	require.NoError(t, app.execute(t, "-v", "build", "--target", testTarget, "--release", "-v"))

	run, ok := app.rec.Find("run")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(run[len(run)-1], "cargo build --target "+testTarget+" --release -v"))
	assert.Empty(t, app.stdout.String())
}

func TestRun_NoManifest(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, nil)
	app.Getwd = func() (string, error) { return t.TempDir(), nil }

	err := app.execute(t, "build")
	require.ErrorIs(t, err, ErrNoManifest)
	assert.Zero(t, app.rec.Count("run"))
}

func TestRun_NoArgsPrintsHelp(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, nil)
	require.NoError(t, app.execute(t))
	assert.Contains(t, app.stdout.String(), "volumes")
	assert.Empty(t, app.rec.Invocations())
}

func TestVolumes_List(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, enginetest.Rules{
		{Prefix: []string{"volume", "list"}, Response: enginetest.Response{Stdout: "cross-a\ncross-b\n"}},
	}.Respond)

	require.NoError(t, app.execute(t, "volumes", "list"))
	assert.Equal(t, "cross-a\ncross-b\n", app.stdout.String())
}

func TestVolumes_RemoveAllDryRun(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, enginetest.Rules{
		{Prefix: []string{"volume", "list"}, Response: enginetest.Response{Stdout: "cross-a\n"}},
	}.Respond)

	require.NoError(t, app.execute(t, "volumes", "remove-all", "--dry-run"))
	assert.Equal(t, "/usr/bin/docker volume rm cross-a\n", app.stdout.String())
	assert.Zero(t, app.rec.Count("volume", "rm"))
}

func TestVolumes_Remove(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, nil)

	require.NoError(t, app.execute(t, "volumes", "remove"))
	assert.Equal(t, 1, app.rec.Count("volume", "rm", runtime.UniqueToolchainIdentifier(app.tc)))
}

func TestVolumes_CreateRejectsDryRun(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, nil)

	err := app.execute(t, "volumes", "create", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--dry-run")
	assert.Empty(t, app.rec.Invocations())
}

func TestVolumes_CreateExisting(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, nil)
	id := runtime.UniqueToolchainIdentifier(app.tc)
	rec := enginetest.New(enginetest.Rules{
		{Prefix: []string{"volume", "list"}, Response: enginetest.Response{Stdout: id + "\n"}},
	}.Respond)
	engine := container.NewEngine("/usr/bin/docker", container.KindDocker, container.WithExecCommand(rec.ExecCommand()))
	engine.Arch, engine.OS = "amd64", "linux"
	app.ProbeEngine = func(context.Context, container.ProbeOptions) (*container.Engine, error) {
		return engine, nil
	}

	require.NoError(t, app.execute(t, "volumes", "create", "--target", testTarget))
	assert.Contains(t, app.stderr.String(), id)
	assert.Zero(t, rec.Count("volume", "create"))
}

func TestContainers_List(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, enginetest.Rules{
		{Prefix: []string{"ps"}, Response: enginetest.Response{Stdout: "cross-x-1: running\ncross-y-2: exited\n"}},
	}.Respond)

	require.NoError(t, app.execute(t, "containers", "list"))
	out := app.stdout.String()
	assert.Contains(t, out, "cross-x-1: ")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "cross-y-2: ")
}

func TestContainers_RemoveAll(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, enginetest.Rules{
		{Prefix: []string{"ps"}, Response: enginetest.Response{Stdout: "cross-x-1: running\n"}},
	}.Respond)

	require.NoError(t, app.execute(t, "containers", "remove-all"))
	assert.Equal(t, 1, app.rec.Count("stop"))
	assert.Equal(t, 1, app.rec.Count("rm", "-f", "cross-x-1"))
}

func TestTargets(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil, nil)

	require.NoError(t, app.execute(t, "targets"))
	assert.Contains(t, app.stdout.String(), testTarget)
	assert.Empty(t, app.rec.Invocations())
}
