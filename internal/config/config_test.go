// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/target"
)

const sampleTOML = `
[build]
xargo = false
default-target = "aarch64-unknown-linux-gnu"
pre-build = ["apt-get update"]

[build.env]
passthrough = ["RUST_LOG", "SSH_AUTH_SOCK"]
volumes = ["SHARED_DATA"]

[target.aarch64-unknown-linux-gnu]
image = "-centos"
runner = "qemu-user"
pre-build = ["dpkg --add-architecture arm64"]

[target.aarch64-unknown-linux-gnu.env]
passthrough = ["RUST_LOG", "AARCH64_ONLY"]

[target."thumbv8m.main-none-eabi"]
image = "ghcr.io/me/thumb:1"

[container]
uid = 1000
mount-root = "host"
`

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{
		WorkspaceRoot: t.TempDir(),
		LookupEnv:     envMap(nil),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	if cfg.Container.MountRoot != MountRootProject {
		t.Errorf("MountRoot = %q, want %q", cfg.Container.MountRoot, MountRootProject)
	}
	if cfg.MountRootSameAsHost() {
		t.Error("MountRootSameAsHost() = true by default")
	}
	if cfg.Container.UID != nil {
		t.Errorf("UID = %d, want unset", *cfg.Container.UID)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, FileName, sampleTOML)
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{WorkspaceRoot: root, LookupEnv: envMap(nil)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	aarch64 := target.Triple("aarch64-unknown-linux-gnu")
	if cfg.Source != filepath.Join(root, FileName) {
		t.Errorf("Source = %q", cfg.Source)
	}
	if got := cfg.Image(aarch64).Image; got != "-centos" {
		t.Errorf("Image() = %q, want -centos", got)
	}
	if got := cfg.Target(aarch64).Runner; got != "qemu-user" {
		t.Errorf("Runner = %q", got)
	}
	if got, want := cfg.Passthrough(aarch64), []string{"RUST_LOG", "SSH_AUTH_SOCK", "AARCH64_ONLY"}; !slices.Equal(got, want) {
		t.Errorf("Passthrough() = %v, want %v", got, want)
	}
	if got := cfg.PreBuild(aarch64); !slices.Equal(got, []string{"dpkg --add-architecture arm64"}) {
		t.Errorf("PreBuild(aarch64) = %v", got)
	}
	if got := cfg.PreBuild("x86_64-unknown-linux-gnu"); !slices.Equal(got, []string{"apt-get update"}) {
		t.Errorf("PreBuild(x86_64) = %v", got)
	}
	if got := cfg.Image("thumbv8m.main-none-eabi").Image; got != "ghcr.io/me/thumb:1" {
		t.Errorf("Image(thumbv8m.main) = %q", got)
	}
	if cfg.Container.UID == nil || *cfg.Container.UID != 1000 {
		t.Errorf("UID = %v, want 1000", cfg.Container.UID)
	}
	if !cfg.MountRootSameAsHost() {
		t.Error("MountRootSameAsHost() = false")
	}
}

func TestLoad_LegacyFileName(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, LegacyFileName, "[build]\nxargo = true\n")
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{WorkspaceRoot: root, LookupEnv: envMap(nil)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Build.Xargo {
		t.Error("Build.Xargo = false")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, FileName, sampleTOML)
	env := map[string]string{
		"CROSS_REMOTE":                 "yes",
		"CROSS_CONTAINER_OPTS":         "--cpus 2",
		"DOCKER_OPTS":                  "--memory 1g",
		"CROSS_CONTAINER_GID":          "100",
		"CROSS_BUILD_ENV_PASSTHROUGH":  "A  B",
		"CROSS_REMOTE_COPY_CACHE":      "1",

		"CROSS_TARGET_AARCH64_UNKNOWN_LINUX_GNU_IMAGE":  "ghcr.io/me/aarch64:2",
		"CROSS_TARGET_AARCH64_UNKNOWN_LINUX_GNU_RUNNER": "native",
	}
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{WorkspaceRoot: root, LookupEnv: envMap(env)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	aarch64 := target.Triple("aarch64-unknown-linux-gnu")
	if !cfg.Container.Remote {
		t.Error("Container.Remote = false")
	}
	if cfg.Container.Opts != "--cpus 2" {
		t.Errorf("Container.Opts = %q, want CROSS_CONTAINER_OPTS to win", cfg.Container.Opts)
	}
	if cfg.Container.GID == nil || *cfg.Container.GID != 100 {
		t.Errorf("GID = %v, want 100", cfg.Container.GID)
	}
	if !cfg.Remote.CopyCache {
		t.Error("Remote.CopyCache = false")
	}
	if got := cfg.Build.Env.Passthrough; !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("Build.Env.Passthrough = %v", got)
	}
	if got := cfg.Image(aarch64).Image; got != "ghcr.io/me/aarch64:2" {
		t.Errorf("Image() = %q", got)
	}
	if got := cfg.Target(aarch64).Runner; got != "native" {
		t.Errorf("Runner = %q", got)
	}
}

func TestLoad_DockerOptsFallback(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{
		LookupEnv: envMap(map[string]string{"DOCKER_OPTS": "--memory 1g"}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Container.Opts != "--memory 1g" {
		t.Errorf("Container.Opts = %q", cfg.Container.Opts)
	}
}

func TestLoad_MountRootFromEnv(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{
		LookupEnv: envMap(map[string]string{"CROSS_CONTAINER_MOUNT_ROOT_SAME_AS_HOST": "true"}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.MountRootSameAsHost() {
		t.Error("MountRootSameAsHost() = false")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"schema type mismatch", "[container]\nuid = \"root\"\n", nil},
		{"unknown field", "[container]\nengines = \"docker\"\n", nil},
		{"bad mount root", "[container]\nmount-root = \"elsewhere\"\n", nil},
		{"invalid toml", "[build\n", nil},
		{"reserved passthrough", "[build.env]\npassthrough = [\"CARGO_HOME\"]\n", nil},
		{"runner passthrough", "[target.x86_64-unknown-linux-gnu.env]\npassthrough = [\"CROSS_RUNNER\"]\n", nil},
		{"bad uid env", "", map[string]string{"CROSS_CONTAINER_UID": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := writeConfig(t, FileName, tt.content)
			_, err := NewProvider().Load(t.Context(), LoadOptions{WorkspaceRoot: root, LookupEnv: envMap(tt.env)})
			if err == nil {
				t.Fatal("Load() succeeded")
			}
			if got := issue.IssueOf(err); got != issue.ConfigLoadFailedId {
				t.Errorf("IssueOf() = %v, want ConfigLoadFailedId", got)
			}
		})
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	t.Parallel()

	root := writeConfig(t, "custom.toml", "[build]\ndefault-target = \"riscv64gc-unknown-linux-gnu\"\n")
	path := filepath.Join(root, "custom.toml")

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{
		LookupEnv: envMap(map[string]string{ConfigEnvVar: path}),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.DefaultTarget != "riscv64gc-unknown-linux-gnu" {
		t.Errorf("DefaultTarget = %q", cfg.Build.DefaultTarget)
	}

	_, err = NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(root, "missing.toml")})
	if err == nil {
		t.Fatal("Load() with a missing explicit file succeeded")
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Build.Env.Volumes = []string{"DATA=/srv/data", "bad name"}
	cfg.Targets["x86_64-unknown-linux-gnu"] = TargetConfig{Env: EnvConfig{Passthrough: []string{"XARGO_HOME"}}}

	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("IsValid() = true")
	}
	var invalid *InvalidConfigError
	if !errors.As(errs[0], &invalid) {
		t.Fatalf("error is %T, want *InvalidConfigError", errs[0])
	}
	if len(invalid.FieldErrors) != 2 {
		t.Errorf("FieldErrors = %v, want 2 entries", invalid.FieldErrors)
	}
	for _, err := range invalid.FieldErrors {
		if !errors.Is(err, ErrInvalidEnvName) {
			t.Errorf("field error %v does not wrap ErrInvalidEnvName", err)
		}
	}
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	want := &Config{Build: BuildConfig{Xargo: true}}
	p := NewStaticProvider(want)
	got, err := p.Load(t.Context(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Build.Xargo || got.Targets == nil {
		t.Errorf("Load() = %+v", got)
	}
	got.Build.Xargo = false
	if !want.Build.Xargo {
		t.Error("Load() returned the provider's own value")
	}
}
