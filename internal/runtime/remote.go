// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/lifecycle"
	"github.com/xcross/xcross/internal/shellquote"
)

// MountPrefix is where a remote build's data volume is mounted. Data for
// a container path P lives at MountPrefix+P.
const MountPrefix = "/cross"

// ErrSymlinkCollision is returned when exposing copied data would replace a
// real file in the container.
var ErrSymlinkCollision = errors.New("volume mount collides with copied data")

type (
	// remoteSession is one remote build: a container holding the data
	// volume, and the directories copied into it.
	remoteSession struct {
		opts        *Options
		paths       *Paths
		guard       *lifecycle.ChildContainer
		name        string
		volume      VolumeID
		toolchainID string
		copyCache   bool
		// symlinks counts symlinks copied from the host.
		symlinks int
	}

	// copiedRoot is a host directory copied into the volume at Rel,
	// relative to MountPrefix.
	copiedRoot struct {
		Local string
		Rel   string
	}
)

// RunRemote runs the build against an engine that does not share our
// filesystem. The directories a local build would mount are copied into a
// data volume of a detached container, the build runs with "exec", and the
// target directory is copied back. guard tears the container down on every
// exit path, including interrupts.
func RunRemote(ctx context.Context, opts *Options, paths *Paths, args []string, guard *lifecycle.ChildContainer) (ExitStatus, error) {
	if err := opts.validate(); err != nil {
		return 1, err
	}
	if _, errs := opts.config().IsValid(); len(errs) > 0 {
		return 1, errs[0]
	}
	if opts.Engine.InContainer {
		slog.Warn("remote engines and nested containers rarely work together; remote builds copy data into volumes, so the outer mount is not needed")
	}

	toolchainID := UniqueToolchainIdentifier(opts.Toolchain)
	volume, err := ChooseVolume(ctx, opts.Engine, opts.Toolchain)
	if err != nil {
		return 1, err
	}
	s := &remoteSession{
		opts:        opts,
		paths:       paths,
		guard:       guard,
		name:        UniqueContainerIdentifier(toolchainID, opts.Target, paths.Dirs.Cwd, opts.now()),
		volume:      volume,
		toolchainID: toolchainID,
		copyCache:   opts.config().Remote.CopyCache,
	}
	slog.Debug("remote build", "container", s.name, "volume", volume)

	if err := s.reclaim(ctx); err != nil {
		return 1, err
	}

	stop := guard.Watch(ctx)
	defer stop()

	if err := s.launch(ctx); err != nil {
		guard.Terminate(ctx)
		return 1, err
	}
	status, err := s.build(ctx, args)
	if err != nil {
		guard.Terminate(ctx)
		return status, err
	}
	guard.Finish(ctx, opts.Terminal.TTY())
	return status, nil
}

// reclaim removes a container left with our name by a run that did not
// exit gracefully.
func (s *remoteSession) reclaim(ctx context.Context) error {
	engine := s.opts.Engine
	state, err := engine.ContainerState(ctx, s.name)
	if err != nil {
		return err
	}
	if !state.Exists() {
		return nil
	}
	if !state.IsStopped() {
		slog.Warn("container from a previous run is still running", "container", s.name, "state", state)
		if err := engine.ContainerStop(ctx, s.name, 0); err != nil {
			slog.Warn("could not stop container", "container", s.name, "error", err)
		}
	}
	slog.Warn("removing container from a previous run", "container", s.name)
	return engine.ContainerRemove(ctx, s.name)
}

// launch starts the detached container with the data volume. Without a
// TTY its main process is an endless sleep, so it stays up until stopped.
func (s *remoteSession) launch(ctx context.Context) error {
	return s.start(ctx, s.volume)
}

func (s *remoteSession) start(ctx context.Context, volume VolumeID) error {
	opts := s.opts
	extra, err := opts.containerOpts()
	if err != nil {
		return err
	}
	seccomp, err := opts.seccompArgs(s.paths)
	if err != nil {
		return err
	}

	run := []string{"run", "--userns", "host"}
	run = append(run, opts.Image.PlatformFlag(opts.Engine)...)
	run = append(run, "--name", s.name, "--rm", "-v", volume.mountArg())
	run = append(run, extra...)
	run = append(run, seccomp...)
	// Keeps the host's cargo binaries out of the container.
	run = append(run, "-v", path.Join(MountPrefix, s.paths.Dirs.Toolchain.CargoMount, "bin"))
	run = append(run, "-d")
	tty := opts.Terminal.TTY()
	if tty {
		run = append(run, "-t")
	}
	run = append(run, opts.Image.Name)
	if !tty {
		run = append(run, "sh", "-c", "sleep infinity")
	}

	// Registered first, so that a failed start is still cleaned up.
	if err := s.guard.Create(opts.Engine, s.name); err != nil {
		return err
	}
	return opts.Engine.RunCommandStatus(ctx, run...)
}

// build copies the data in, runs the build and copies the output back.
func (s *remoteSession) build(ctx context.Context, args []string) (ExitStatus, error) {
	volumes, err := s.opts.volumes(s.paths)
	if err != nil {
		return 1, err
	}
	links, err := s.populate(ctx, volumes)
	if err != nil {
		return 1, s.syncError(err)
	}
	if s.symlinks > 0 {
		slog.Warn("copied symlinks into the container; their targets must exist there too", "count", s.symlinks)
	}
	if err := s.reconcile(ctx, links); err != nil {
		return 1, err
	}

	status, err := s.execute(ctx, args, volumes)
	if err != nil {
		return status, err
	}
	if err := s.harvest(ctx); err != nil {
		return status, err
	}
	return status, nil
}

// populate copies the toolchain and the project into the volume and returns
// the symlinks for extra volumes that were copied as part of another root.
func (s *remoteSession) populate(ctx context.Context, volumes []Volume) ([]symlink, error) {
	dirs := s.paths.Dirs
	ensured := s.paths.Ensured

	if s.volume.IsKeep() {
		if err := s.copyRustTriple(ctx, s.opts.Target.String(), true); err != nil {
			return nil, fmt.Errorf("copy rust target files: %w", err)
		}
	} else {
		if err := s.copyToolchain(ctx, s.opts.Target.String()); err != nil {
			return nil, err
		}
	}

	relRoot := strings.TrimPrefix(dirs.Package.MountRoot, "/")
	if parent := path.Dir(relRoot); relRoot != "" && parent != "." {
		if err := s.createDir(ctx, parent); err != nil {
			return nil, fmt.Errorf("create mount root: %w", err)
		}
	}
	if err := s.copyMount(ctx, dirs.Root, relRoot); err != nil {
		return nil, fmt.Errorf("copy project: %w", err)
	}

	copied := []copiedRoot{
		{Local: ensured.XargoHome, Rel: relative(dirs.Toolchain.XargoMount)},
		{Local: ensured.CargoHome, Rel: relative(dirs.Toolchain.CargoMount)},
		{Local: ensured.Sysroot, Rel: relative(dirs.Toolchain.SysrootMount)},
		{Local: dirs.Root, Rel: relRoot},
	}
	if !dirs.Package.TargetInsideRoot() {
		rel := relative(dirs.Package.TargetMount)
		var err error
		if s.copyCache {
			err = s.copyMount(ctx, ensured.TargetDir, rel)
		} else {
			err = s.createDir(ctx, rel)
		}
		if err != nil {
			return nil, fmt.Errorf("copy target directory: %w", err)
		}
		copied = append(copied, copiedRoot{Local: ensured.TargetDir, Rel: rel})
	}

	extra := volumes
	if ensured.NixStore != "" {
		extra = append(extra, Volume{LocalPath: ensured.NixStore, MountPath: dirs.Toolchain.NixStore})
	}

	var links []symlink
	for _, v := range extra {
		if root, ok := findCopiedRoot(copied, v.LocalPath); ok {
			rel, err := filepath.Rel(root.Local, v.LocalPath)
			if err != nil {
				return nil, err
			}
			visible := path.Join("/", root.Rel, filepath.ToSlash(rel))
			if visible != v.MountPath {
				links = append(links, symlink{Target: path.Join(MountPrefix, visible), Link: v.MountPath})
			}
			continue
		}

		rel := relative(v.MountPath)
		if parent := path.Dir(rel); parent != "." {
			if err := s.createDir(ctx, parent); err != nil {
				return nil, err
			}
		}
		if err := s.copyMount(ctx, v.LocalPath, rel); err != nil {
			return nil, fmt.Errorf("copy volume %s: %w", v.Name, err)
		}
	}
	return links, nil
}

// reconcile runs the symlink script as root, then the data is owned by the
// build user.
func (s *remoteSession) reconcile(ctx context.Context, links []symlink) error {
	script, err := symlinkScript(s.opts.user(), links, slog.Default().Enabled(ctx, slog.LevelDebug))
	if err != nil {
		return err
	}
	if err := s.exec(ctx, script); err != nil {
		var ce *container.CommandError
		if errors.As(err, &ce) && strings.Contains(ce.Stderr, collisionMarker) {
			return issue.NewErrorContext().
				WithOperation("link copied data").
				WithResource(s.name).
				WithIssue(issue.SymlinkCollisionId).
				WithSuggestion("Move the extra volume so it does not overlap copied directories").
				Wrap(fmt.Errorf("%w: %s", ErrSymlinkCollision, strings.TrimSpace(ce.Stderr))).
				BuildError()
		}
		return fmt.Errorf("create symlinks to copied data: %w", err)
	}
	return nil
}

// execute runs the build command with exec and returns its status.
func (s *remoteSession) execute(ctx context.Context, args []string, volumes []Volume) (ExitStatus, error) {
	if err := s.guard.Check(); err != nil {
		return 1, err
	}
	opts := s.opts
	pkg := s.paths.Dirs.Package

	execOpts := container.ExecOptions{
		Interactive: opts.Terminal.Interactive(),
		TTY:         opts.Terminal.TTY(),
		WorkDir:     pkg.MountCwd,
		Env:         opts.containerEnv(s.paths, volumes),
	}
	if opts.Engine.IsDocker() {
		execOpts.User = opts.user()
	}
	script := shellquote.ToolCommand(opts.tool(), RewriteTargetDir(args, s.targetDir()))

	code, err := opts.Engine.ExecStream(ctx, s.name, execOpts, opts.Streams, "sh", "-c", script)
	return StatusFromCode(code), err
}

// harvest copies the target directory back to the host. A build that
// removed it, such as "cargo clean", leaves nothing to copy.
func (s *remoteSession) harvest(ctx context.Context) error {
	if s.opts.config().Remote.SkipBuildArtifacts {
		return nil
	}
	target := s.targetDir()
	exists, err := s.pathExists(ctx, target)
	if err != nil || !exists {
		return err
	}
	if err := s.command(ctx, "cp", "-a", s.name+":"+target+"/.", s.paths.Ensured.TargetDir); err != nil {
		return fmt.Errorf("copy build artifacts: %w", err)
	}
	return nil
}

// targetDir is the real target directory in the container. A target
// directory outside the project is copied under MountPrefix and only linked
// at its mount path, and "cargo clean" would unlink the link rather than
// empty the directory.
func (s *remoteSession) targetDir() string {
	pkg := s.paths.Dirs.Package
	if pkg.TargetInsideRoot() {
		return pkg.TargetMount
	}
	return path.Join(MountPrefix, pkg.TargetMount)
}

// command runs an engine command unless the container was already torn
// down, typically by an interrupt.
func (s *remoteSession) command(ctx context.Context, args ...string) error {
	if err := s.guard.Check(); err != nil {
		return err
	}
	return s.opts.Engine.RunCommandStatus(ctx, args...)
}

// exec runs a POSIX shell script in the container as root.
func (s *remoteSession) exec(ctx context.Context, script string) error {
	return s.command(ctx, container.ExecArgs(s.name, container.ExecOptions{}, "sh", "-c", script)...)
}

// pathExists reports whether dir is a directory in the container.
func (s *remoteSession) pathExists(ctx context.Context, dir string) (bool, error) {
	err := s.command(ctx, container.ExecArgs(s.name, container.ExecOptions{}, "bash", "-c", "[[ -d "+shellquote.Quote(dir)+" ]]")...)
	switch {
	case err == nil:
		return true, nil
	case container.ExitCodeOf(err) == 1:
		return false, nil
	default:
		return false, err
	}
}

// createDir creates rel, relative to MountPrefix, in the container.
func (s *remoteSession) createDir(ctx context.Context, rel string) error {
	return s.exec(ctx, "mkdir -p "+shellquote.Quote(path.Join(MountPrefix, rel)))
}

// copyInto copies the contents of the local directory src to rel.
func (s *remoteSession) copyInto(ctx context.Context, src, rel string) error {
	if err := s.createDir(ctx, rel); err != nil {
		return err
	}
	return s.command(ctx, "cp", "-a", src+string(filepath.Separator)+".", s.name+":"+path.Join(MountPrefix, rel))
}

func (s *remoteSession) syncError(err error) error {
	if errors.Is(err, lifecycle.ErrContainerExited) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("copy data to the remote engine").
		WithResource(s.name).
		WithIssue(issue.RemoteSyncFailedId).
		Wrap(err).
		BuildError()
}

func findCopiedRoot(roots []copiedRoot, p string) (copiedRoot, bool) {
	for _, r := range roots {
		if r.Local != "" && isWithin(p, r.Local) {
			return r, true
		}
	}
	return copiedRoot{}, false
}

// relative strips the leading slash of a container path.
func relative(p string) string {
	return strings.TrimPrefix(p, "/")
}
