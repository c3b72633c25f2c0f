// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"log/slog"

	"github.com/xcross/xcross/internal/shellquote"
)

// LocalArgs builds the single "run" invocation of a local build. The engine
// shares our filesystem, so every directory is bind-mounted.
//
// Generated command:
//
//	run --userns host -e ... [opts] [--security-opt ...] [--user uid:gid]
//	    -v ... -w <cwd> [-i [-t]] --rm [--platform ...] <image> sh -c <cmd>
func LocalArgs(opts *Options, paths *Paths, args []string) ([]string, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if _, errs := opts.config().IsValid(); len(errs) > 0 {
		return nil, errs[0]
	}

	volumes, err := opts.volumes(paths)
	if err != nil {
		return nil, err
	}
	extra, err := opts.containerOpts()
	if err != nil {
		return nil, err
	}
	seccomp, err := opts.seccompArgs(paths)
	if err != nil {
		return nil, err
	}

	run := []string{"run", "--userns", "host"}
	run = append(run, envFlags(opts.containerEnv(paths, volumes))...)
	run = append(run, extra...)
	run = append(run, seccomp...)
	// Podman runs rootless, mapping our user to root in the container.
	if opts.Engine.IsDocker() {
		run = append(run, "--user", opts.user())
	}

	tc := paths.Dirs.Toolchain
	pkg := paths.Dirs.Package
	run = append(run,
		"-v", tc.XargoHost+":"+tc.XargoMount+":z",
		"-v", tc.CargoHost+":"+tc.CargoMount+":z",
		// Keeps the host's cargo binaries out of the container.
		"-v", tc.CargoMount+"/bin",
		"-v", pkg.HostRoot+":"+pkg.MountRoot+":z",
		"-v", tc.SysrootHost+":"+tc.SysrootMount+":z,ro",
	)
	if !pkg.TargetInsideRoot() {
		run = append(run, "-v", pkg.TargetHost+":"+pkg.TargetMount+":z")
	}
	if tc.NixStore != "" {
		run = append(run, "-v", tc.NixStore+":"+tc.NixStore+":z,ro")
	}
	for _, v := range volumes {
		run = append(run, "-v", v.HostPath+":"+v.MountPath+":z")
	}
	run = append(run, "-w", pkg.MountCwd)

	if opts.Terminal.Interactive() {
		run = append(run, "-i")
		if opts.Terminal.TTY() {
			run = append(run, "-t")
		}
	}

	run = append(run, "--rm")
	run = append(run, opts.Image.PlatformFlag(opts.Engine)...)
	run = append(run, opts.Image.Name)

	// A --target-dir names a host path; only its mount is visible to cargo.
	if hasTargetDir(args) {
		args = RewriteTargetDir(args, pkg.TargetMount)
	}
	return append(run, "sh", "-c", shellquote.ToolCommand(opts.tool(), args)), nil
}

// RunLocal runs the build in a container with the host directories
// bind-mounted. A non-zero status of the build is returned as the
// ExitStatus with a nil error; the error is reserved for failing to run the
// engine at all.
func RunLocal(ctx context.Context, opts *Options, paths *Paths, args []string) (ExitStatus, error) {
	run, err := LocalArgs(opts, paths, args)
	if err != nil {
		return 1, err
	}

	slog.Debug("running local build", "target", opts.Target, "image", opts.Image.Name)
	code, err := opts.Engine.RunCommandStream(ctx, opts.Streams, run...)
	if err != nil {
		return StatusFromCode(code), err
	}
	return StatusFromCode(code), nil
}
