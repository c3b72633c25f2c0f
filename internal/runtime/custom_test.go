// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcross/xcross/internal/config"
	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/testutil"
	"github.com/xcross/xcross/internal/testutil/enginetest"
)

func TestDockerTagName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"hello":          "hello",
		"Hello-World":    "hello-world",
		"my_crate":       "my_crate",
		"a___b":          "a__b",
		"crate v2.0":     "cratev2.0",
		"ünïcödé":        "ncd",
		"___":            "__",
		"!!!":            "empty",
		"":               "empty",
		"Project_2024.x": "project_2024.x",
	}
	for in, want := range tests {
		assert.Equal(t, want, dockerTagName(in), in)
	}
}

func TestCustomImageName(t *testing.T) {
	t.Parallel()

	name := CustomImageName("/src/My_App", testTarget, false)
	assert.True(t, strings.HasPrefix(name, "localhost/cross-rs/cross-custom-my_app:aarch64-unknown-linux-gnu-"), name)
	assert.Len(t, strings.TrimPrefix(name, "localhost/cross-rs/cross-custom-my_app:aarch64-unknown-linux-gnu-"), 5)
	assert.Equal(t, name+"-pre-build", CustomImageName("/src/My_App", testTarget, true))
	assert.NotEqual(t, name, CustomImageName("/other/My_App", testTarget, false))
}

func TestNeedsCustomImage(t *testing.T) {
	t.Parallel()

	opts := &Options{Target: testTarget, Config: config.DefaultConfig()}
	assert.False(t, NeedsCustomImage(opts))

	opts.Config.Build.PreBuild = []string{"apt-get update"}
	assert.True(t, NeedsCustomImage(opts))

	opts.Config = config.DefaultConfig()
	opts.Config.Targets[testTarget.String()] = config.TargetConfig{Dockerfile: "Dockerfile.cross"}
	assert.True(t, NeedsCustomImage(opts))
}

func TestBuildCustomImage_Dockerfile(t *testing.T) {
	t.Parallel()

	engine, rec := newEngine(t, container.KindDocker, nil)
	opts, paths := newFixture(t, engine)
	opts.Config.Targets[testTarget.String()] = config.TargetConfig{Dockerfile: "Dockerfile.cross"}

	img, err := BuildCustomImage(t.Context(), opts, paths)
	require.NoError(t, err)
	assert.Equal(t, CustomImageName(paths.Dirs.Root, testTarget, false), img.Name)
	assert.Equal(t, opts.Image.Platform, img.Platform)

	args, ok := rec.Find("build")
	require.True(t, ok)
	assert.True(t, enginetest.HasArgPair(args, "-f", filepath.Join(paths.Dirs.Root, "Dockerfile.cross")))
	assert.True(t, enginetest.HasArgPair(args, "-t", img.Name))
	assert.True(t, enginetest.HasArgPair(args, "--platform", "linux/amd64"))
	assert.True(t, enginetest.HasArgPair(args, "--build-arg", "CROSS_BASE_IMAGE="+testImage))
	assert.True(t, enginetest.HasArgPair(args, "--build-arg", "CROSS_DEB_ARCH=arm64"))
	assert.True(t, enginetest.HasArgPair(args, "--label", "org.cross-rs.for-cross-target=aarch64-unknown-linux-gnu"))
	assert.True(t, enginetest.HasArgPair(args, "--label", "org.cross-rs.runs-with=x86_64-unknown-linux-gnu"))
	assert.True(t, enginetest.HasArgPair(args, "--label", "org.cross-rs.workspace_root="+paths.Dirs.Root))
	assert.Equal(t, paths.Dirs.Root, args[len(args)-1])
}

func TestBuildCustomImage_DockerfileAndPreBuild(t *testing.T) {
	t.Parallel()

	engine, rec := newEngine(t, container.KindDocker, nil)
	opts, paths := newFixture(t, engine)
	opts.Config.Targets[testTarget.String()] = config.TargetConfig{
		Dockerfile:        "docker/Dockerfile",
		DockerfileContext: "/ctx",
		PreBuild:          []string{"apt-get update", "apt-get install -y libssl-dev:$CROSS_DEB_ARCH"},
	}

	img, err := BuildCustomImage(t.Context(), opts, paths)
	require.NoError(t, err)
	assert.Equal(t, CustomImageName(paths.Dirs.Root, testTarget, true), img.Name)
	require.Equal(t, 2, rec.Count("build"), rec.String())

	first := rec.Args()[0]
	assert.True(t, enginetest.HasArgPair(first, "-f", filepath.Join("/ctx", "docker/Dockerfile")))
	assert.Equal(t, "/ctx", first[len(first)-1])

	second := rec.Args()[1]
	assert.True(t, enginetest.HasArgPair(second, "-f", "-"))
	assert.True(t, enginetest.HasArgPair(second, "--build-arg", "CROSS_CMD=apt-get update\napt-get install -y libssl-dev:$CROSS_DEB_ARCH"))
	assert.False(t, enginetest.HasArgPair(second, "--build-arg", "CROSS_BASE_IMAGE="+testImage))
}

func TestBuildCustomImage_PreBuildScript(t *testing.T) {
	t.Parallel()

	engine, rec := newEngine(t, container.KindDocker, nil)
	opts, paths := newFixture(t, engine)
	testutil.WriteFiles(t, paths.Dirs.Root, map[string]string{"ci/pre-build.sh": "#!/bin/sh\n"})
	opts.Config.Build.PreBuild = []string{"ci/pre-build.sh"}

	_, err := BuildCustomImage(t.Context(), opts, paths)
	require.NoError(t, err)

	args, ok := rec.Find("build")
	require.True(t, ok)
	assert.True(t, enginetest.HasArgPair(args, "--build-arg", "CROSS_SCRIPT=ci/pre-build.sh"))
	assert.True(t, enginetest.HasArgPair(args, "--build-arg", "CROSS_TARGET="+testTarget.String()))
}

func TestBuildCustomImage_Failure(t *testing.T) {
	t.Parallel()

	engine, _ := newEngine(t, container.KindDocker, enginetest.Rules{
		{Prefix: []string{"build"}, Response: enginetest.Response{ExitCode: 1}},
	}.Respond)
	opts, paths := newFixture(t, engine)
	opts.Config.Build.PreBuild = []string{"false"}

	_, err := BuildCustomImage(t.Context(), opts, paths)
	require.Error(t, err)
	assert.Equal(t, issue.CustomImageBuildFailedId, issue.IssueOf(err))
}

func TestPreBuildDockerfile(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "FROM base:1\nARG CROSS_DEB_ARCH=\nARG CROSS_CMD\nRUN eval \"${CROSS_CMD}\"\n", preBuildDockerfile("base:1"))
	assert.True(t, strings.HasPrefix(scriptDockerfile("base:1"), "FROM base:1\n"))
}
