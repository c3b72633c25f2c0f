// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xcross/xcross/internal/image"
)

// newTargetsCommand creates the `xcross targets` command.
func newTargetsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the targets with a built-in image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := image.DefaultCatalog()
			if err != nil {
				return err
			}
			for _, img := range catalog.Images() {
				platforms := make([]string, 0, len(img.Platforms))
				for _, p := range img.Platforms {
					platforms = append(platforms, p.DockerPlatform())
				}
				name := img.Target
				if img.Sub != "" {
					name += " (" + img.Sub + ")"
				}
				fmt.Fprintf(app.stdout, "%s %s\n", CmdStyle.Render(name), SubtitleStyle.Render(strings.Join(platforms, ", ")))
			}
			return nil
		},
	}
}
