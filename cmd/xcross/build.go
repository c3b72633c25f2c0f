// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"github.com/xcross/xcross/internal/config"
	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/dirs"
	"github.com/xcross/xcross/internal/image"
	"github.com/xcross/xcross/internal/mount"
	"github.com/xcross/xcross/internal/runtime"
	"github.com/xcross/xcross/internal/target"
	"github.com/xcross/xcross/internal/toolchain"
)

// buildPlan is everything a build or a volume creation needs.
type buildPlan struct {
	opts  *runtime.Options
	paths *runtime.Paths
	inv   cargoInvocation
}

// runCargo runs one cargo command line in the target's container.
func (a *App) runCargo(ctx context.Context, args []string) error {
	plan, err := a.plan(ctx, parseCargoArgs(args))
	if err != nil {
		return err
	}

	if runtime.NeedsCustomImage(plan.opts) {
		img, err := runtime.BuildCustomImage(ctx, plan.opts, plan.paths)
		if err != nil {
			return err
		}
		plan.opts.Image = img
	}

	var status runtime.ExitStatus
	if plan.opts.Engine.IsRemote {
		status, err = runtime.RunRemote(ctx, plan.opts, plan.paths, plan.inv.Args, a.Guard)
	} else {
		status, err = runtime.RunLocal(ctx, plan.opts, plan.paths, plan.inv.Args)
	}
	if err != nil {
		return err
	}
	if status.IsSuccess() {
		return nil
	}

	if hint := runtime.CheckStdlib(plan.opts.Toolchain, plan.opts.Target); hint != nil {
		fmt.Fprintln(a.stderr, WarningStyle.Render("hint: ")+formatErrorForDisplay(hint, a.flags.verbose))
	}
	return &ExitError{Code: status}
}

// plan probes the host and the engine and assembles the options of a build
// of the workspace around the working directory.
func (a *App) plan(ctx context.Context, inv cargoInvocation) (*buildPlan, error) {
	cwd, err := a.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := findWorkspace(cwd)
	if err != nil {
		return nil, err
	}

	cfg, err := a.loadConfig(ctx, root, inv.Target)
	if err != nil {
		return nil, err
	}
	engine, err := a.ProbeEngine(ctx, probeOptions(cfg))
	if err != nil {
		return nil, err
	}
	tc, err := a.ProbeToolchain(ctx, toolchain.ProbeOptions{Channel: inv.Channel})
	if err != nil {
		return nil, err
	}

	t := inv.Target
	if t == "" {
		t = target.Triple(cfg.Build.DefaultTarget)
		if t == "" {
			t = tc.Host
		}
		inv = inv.withTarget(t)
	}

	img, err := a.image(t, cfg, engine)
	if err != nil {
		return nil, err
	}
	paths, err := a.paths(ctx, inv, cfg, engine, tc, cwd, root)
	if err != nil {
		return nil, err
	}

	opts := &runtime.Options{
		Engine:    engine,
		Target:    t,
		Image:     img,
		Toolchain: tc,
		Config:    cfg,
		UsesXargo: cfg.Build.Xargo,
		Terminal:  runtime.DetectTerminal(),
		Streams: container.StreamOptions{
			Stdin:  a.stdin,
			Stdout: a.stdout,
			Stderr: a.stderr,
		},
		UID:       os.Getuid(),
		GID:       os.Getgid(),
		Username:  username(),
		LookupEnv: a.LookupEnv,
	}
	return &buildPlan{opts: opts, paths: paths, inv: inv}, nil
}

// image resolves the image of t and the platform it runs as on engine.
func (a *App) image(t target.Triple, cfg *config.Config, engine *container.Engine) (image.Image, error) {
	possible, err := image.Resolve(t, cfg.Image(t), false)
	if err != nil {
		return image.Image{}, err
	}
	img, guessed := image.ToDefinite(possible, engine)
	if guessed {
		slog.Warn("the image platform does not match the engine; the build may run under emulation",
			"image", img.Name, "platform", img.Platform, "engine", engine.OS+"/"+engine.Arch)
	}
	return img, nil
}

// paths creates the mounted directories and maps them through the mount
// table when xcross itself runs in a container.
func (a *App) paths(ctx context.Context, inv cargoInvocation, cfg *config.Config, engine *container.Engine,
	tc *toolchain.Toolchain, cwd, root string,
) (*runtime.Paths, error) {
	cargoHome, err := a.homeDir("CARGO_HOME", ".cargo")
	if err != nil {
		return nil, err
	}
	xargoHome, err := a.homeDir("XARGO_HOME", ".xargo")
	if err != nil {
		return nil, err
	}
	nixStore, _ := a.LookupEnv("NIX_STORE")

	ensured, err := dirs.Ensure(dirs.Inputs{
		CargoHome:     cargoHome,
		XargoHome:     xargoHome,
		Sysroot:       tc.Sysroot,
		WorkspaceRoot: root,
		TargetDir:     a.targetDir(inv, cwd, root),
		Cwd:           cwd,
		NixStore:      nixStore,
	})
	if err != nil {
		return nil, err
	}

	finder, err := mount.Discover(ctx, engine, mount.DiscoverOptions{InContainer: engine.InContainer})
	if err != nil {
		return nil, err
	}
	resolved, err := dirs.Resolve(ensured, finder, dirs.ResolveOptions{
		MountRootSameAsHost: cfg.MountRootSameAsHost(),
	})
	if err != nil {
		return nil, err
	}
	return &runtime.Paths{Dirs: resolved, Ensured: ensured, Finder: finder}, nil
}

func username() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
