// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/lifecycle"
	"github.com/xcross/xcross/internal/shellquote"
)

// ErrVolumeExists is returned when creating a persistent volume that is
// already there.
var ErrVolumeExists = errors.New("persistent volume already exists")

// Manager administers the volumes and containers xcross leaves on an
// engine. With DryRun set, commands that would change anything are
// printed there instead of run.
type Manager struct {
	Engine *container.Engine
	DryRun io.Writer
}

// ListVolumes returns the persistent volumes.
func (m *Manager) ListVolumes(ctx context.Context) ([]string, error) {
	return m.Engine.VolumeList(ctx, container.VolumePrefix)
}

// RemoveVolume removes one volume.
func (m *Manager) RemoveVolume(ctx context.Context, name string) error {
	return m.run(ctx, "volume", "rm", name)
}

// RemoveAllVolumes removes every persistent volume. Failures are collected
// so one volume in use does not keep the others.
func (m *Manager) RemoveAllVolumes(ctx context.Context) error {
	names, err := m.ListVolumes(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := m.RemoveVolume(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("remove volume %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// PruneVolumes removes every unused volume of the engine, not only ours.
func (m *Manager) PruneVolumes(ctx context.Context) error {
	return m.run(ctx, "volume", "prune", "--force")
}

// ListContainers returns the containers of remote builds.
func (m *Manager) ListContainers(ctx context.Context) ([]container.ContainerSummary, error) {
	return m.Engine.ContainerList(ctx, container.VolumePrefix)
}

// RemoveAllContainers stops and removes the containers of remote builds,
// typically left behind by a killed run.
func (m *Manager) RemoveAllContainers(ctx context.Context) error {
	list, err := m.ListContainers(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range list {
		if !c.State.IsStopped() {
			if err := m.run(ctx, container.StopArgs(c.Name, 0)...); err != nil {
				slog.Warn("could not stop container", "container", c.Name, "error", err)
			}
		}
		if err := m.run(ctx, container.RemoveArgs(c.Name)...); err != nil {
			errs = append(errs, fmt.Errorf("remove container %s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

// CreateVolume creates the persistent volume of the toolchain and copies
// the toolchain, with the standard library of opts.Target, into it. Later
// remote builds find it with ChooseVolume and only sync the project.
func (m *Manager) CreateVolume(ctx context.Context, opts *Options, paths *Paths, guard *lifecycle.ChildContainer) (string, error) {
	if m.DryRun != nil {
		return "", errors.New("creating a volume cannot be a dry run")
	}
	if err := opts.validate(); err != nil {
		return "", err
	}

	toolchainID := UniqueToolchainIdentifier(opts.Toolchain)
	exists, err := m.Engine.VolumeExists(ctx, toolchainID)
	if err != nil {
		return "", err
	}
	if exists {
		return toolchainID, fmt.Errorf("%w: %s", ErrVolumeExists, toolchainID)
	}
	if err := m.Engine.VolumeCreate(ctx, toolchainID); err != nil {
		return "", err
	}

	s := &remoteSession{
		opts:        opts,
		paths:       paths,
		guard:       guard,
		name:        UniqueContainerIdentifier(toolchainID, opts.Target, paths.Dirs.Cwd, opts.now()),
		volume:      Keep(toolchainID),
		toolchainID: toolchainID,
	}
	stop := guard.Watch(ctx)
	defer stop()

	if err := s.start(ctx, s.volume); err != nil {
		guard.Terminate(ctx)
		return toolchainID, err
	}
	if err := s.copyToolchain(ctx, opts.Target.String()); err != nil {
		guard.Terminate(ctx)
		return toolchainID, s.syncError(err)
	}
	guard.Finish(ctx, opts.Terminal.TTY())
	slog.Info("created persistent volume", "volume", toolchainID)
	return toolchainID, nil
}

func (m *Manager) run(ctx context.Context, args ...string) error {
	if m.DryRun != nil {
		_, err := fmt.Fprintf(m.DryRun, "%s %s\n", m.Engine.BinaryPath(), shellquote.Join(args))
		return err
	}
	return m.Engine.RunCommandStatus(ctx, args...)
}
