// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xcross/xcross/internal/runtime"
	"github.com/xcross/xcross/internal/target"
	"github.com/xcross/xcross/internal/toolchain"
)

// newVolumesCommand creates the `xcross volumes` command tree.
func newVolumesCommand(app *App) *cobra.Command {
	var dryRun bool
	volumesCmd := &cobra.Command{
		Use:   "volumes",
		Short: "Manage the persistent data volumes of remote builds",
		Long: `Manage the persistent data volumes of remote builds.

A persistent volume holds a copy of one toolchain, so remote builds only
copy the project. Without one, every remote build copies the toolchain
into a fresh anonymous volume.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	volumesCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print the engine commands instead of running them")

	volumesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List persistent volumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.manager(cmd.Context(), false)
			if err != nil {
				return err
			}
			names, err := m.ListVolumes(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(app.stdout, name)
			}
			return nil
		},
	})

	var createTarget, createChannel string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the persistent volume of the current toolchain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return errors.New("volumes create does not support --dry-run")
			}
			return app.createVolume(cmd.Context(), target.Triple(createTarget), createChannel)
		},
	}
	createCmd.Flags().StringVar(&createTarget, "target", "", "target whose standard library is copied (default is the configured or host target)")
	createCmd.Flags().StringVar(&createChannel, "toolchain", "", "rustup toolchain to copy (default is the active one)")
	volumesCmd.AddCommand(createCmd)

	var removeChannel string
	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the persistent volume of the current toolchain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.manager(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			tc, err := app.ProbeToolchain(cmd.Context(), toolchain.ProbeOptions{Channel: removeChannel})
			if err != nil {
				return err
			}
			return m.RemoveVolume(cmd.Context(), runtime.UniqueToolchainIdentifier(tc))
		},
	}
	removeCmd.Flags().StringVar(&removeChannel, "toolchain", "", "rustup toolchain whose volume is removed (default is the active one)")
	volumesCmd.AddCommand(removeCmd)

	volumesCmd.AddCommand(&cobra.Command{
		Use:   "remove-all",
		Short: "Remove every persistent volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.manager(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return m.RemoveAllVolumes(cmd.Context())
		},
	})

	volumesCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove every unused volume of the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.manager(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return m.PruneVolumes(cmd.Context())
		},
	})

	return volumesCmd
}

// manager probes the engine and returns a volume and container manager,
// printing commands to stdout instead of running them when dryRun is set.
func (a *App) manager(ctx context.Context, dryRun bool) (*runtime.Manager, error) {
	engine, _, err := a.engine(ctx)
	if err != nil {
		return nil, err
	}
	var w io.Writer
	if dryRun {
		w = a.stdout
	}
	return &runtime.Manager{Engine: engine, DryRun: w}, nil
}

func (a *App) createVolume(ctx context.Context, t target.Triple, channel string) error {
	inv := cargoInvocation{Channel: channel, Target: t}
	plan, err := a.plan(ctx, inv)
	if err != nil {
		return err
	}
	m := &runtime.Manager{Engine: plan.opts.Engine}
	name, err := m.CreateVolume(ctx, plan.opts, plan.paths, a.Guard)
	if errors.Is(err, runtime.ErrVolumeExists) {
		fmt.Fprintln(a.stderr, WarningStyle.Render("volume already exists: ")+CmdStyle.Render(name))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, SuccessStyle.Render("created volume ")+CmdStyle.Render(name))
	return nil
}
