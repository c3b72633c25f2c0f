// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newContainersCommand creates the `xcross containers` command tree.
func newContainersCommand(app *App) *cobra.Command {
	var dryRun bool
	containersCmd := &cobra.Command{
		Use:   "containers",
		Short: "Manage the containers of remote builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	containersCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print the engine commands instead of running them")

	containersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the containers of remote builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.manager(cmd.Context(), false)
			if err != nil {
				return err
			}
			list, err := m.ListContainers(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range list {
				fmt.Fprintf(app.stdout, "%s: %s\n", c.Name, stateStyle(c.State.IsStopped()).Render(string(c.State)))
			}
			return nil
		},
	})

	containersCmd.AddCommand(&cobra.Command{
		Use:   "remove-all",
		Short: "Stop and remove the containers of remote builds",
		Long: `Stop and remove the containers of remote builds.

Containers are normally removed when a build ends. They are left behind
only when xcross is killed before it can clean up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.manager(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return m.RemoveAllContainers(cmd.Context())
		},
	})

	return containersCmd
}
