// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xcross/xcross/internal/config"
	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/mount"
	"github.com/xcross/xcross/internal/shellquote"
)

// forwardedDebugVars are copied into the container when set on the host.
var forwardedDebugVars = []string{"QEMU_STRACE", "CROSS_DEBUG"}

// Volume is an extra host directory named by a configured variable and
// made visible in the container at the same path.
type Volume struct {
	// Name is the variable that carries MountPath into the container.
	Name string
	// LocalPath is the canonical directory as this process sees it.
	LocalPath string
	// HostPath is LocalPath as the engine host sees it.
	HostPath string
	// MountPath is the POSIX path inside the container.
	MountPath string
}

// containerEnv returns the variables of the build, as NAME=value entries or
// bare NAME entries the engine copies from its own environment.
func (o *Options) containerEnv(paths *Paths, volumes []Volume) []string {
	cfg := o.config()
	tc := paths.Dirs.Toolchain

	var env []string
	env = append(env, cfg.Passthrough(o.Target)...)
	env = append(env,
		"PKG_CONFIG_ALLOW_CROSS=1",
		"XARGO_HOME="+tc.XargoMount,
		"CARGO_HOME="+tc.CargoMount,
		"CARGO_TARGET_DIR="+paths.Dirs.Package.TargetMount,
		"CROSS_RUNNER="+cfg.Target(o.Target).Runner,
		"CROSS_RUST_SYSROOT="+tc.SysrootMount,
	)

	major, minor, patch := o.Toolchain.VersionParts()
	for _, v := range []struct{ name, value string }{
		{"CROSS_RUSTC_MAJOR_VERSION", major},
		{"CROSS_RUSTC_MINOR_VERSION", minor},
		{"CROSS_RUSTC_PATCH_VERSION", patch},
	} {
		if v.value != "" {
			env = append(env, v.name+"="+v.value)
		}
	}

	if o.Username != "" {
		env = append(env, "USER="+o.Username)
	}
	for _, name := range forwardedDebugVars {
		if value, ok := o.lookupEnv(name); ok {
			env = append(env, name+"="+value)
		}
	}
	for _, v := range volumes {
		env = append(env, v.Name+"="+v.MountPath)
	}
	return env
}

// envFlags turns environment entries into "-e" arguments.
func envFlags(env []string) []string {
	args := make([]string, 0, 2*len(env))
	for _, e := range env {
		args = append(args, "-e", e)
	}
	return args
}

// volumes resolves the configured volume entries. An entry without a value
// whose variable is unset is skipped.
func (o *Options) volumes(paths *Paths) ([]Volume, error) {
	var out []Volume
	for _, entry := range o.config().Volumes(o.Target) {
		name, value, hasValue := strings.Cut(entry, "=")
		if !hasValue {
			var ok bool
			if value, ok = o.lookupEnv(name); !ok {
				continue
			}
		}
		if value == "" {
			continue
		}

		local, err := canonicalPath(value)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("resolve volume").
				WithResource(name).
				WithSuggestion(fmt.Sprintf("Check that %s names an existing directory", name)).
				Wrap(err).
				BuildError()
		}
		host := local
		if paths.Finder != nil {
			host = paths.Finder.FindMountPath(local)
		}
		out = append(out, Volume{
			Name:      name,
			LocalPath: local,
			HostPath:  host,
			MountPath: mount.ToContainerPath(host),
		})
	}
	return out, nil
}

// containerOpts splits the extra "run" options with shell rules.
func (o *Options) containerOpts() ([]string, error) {
	opts := o.config().Container.Opts
	if strings.TrimSpace(opts) == "" {
		return nil, nil
	}
	fields, err := shellquote.Fields(opts)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse container options").
			WithResource(config.ContainerOptsEnvVar).
			WithSuggestion("Quote options the way a POSIX shell would").
			Wrap(err).
			BuildError()
	}
	return fields, nil
}

func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
