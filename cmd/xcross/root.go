// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/xcross/xcross/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xcross [+toolchain] <cargo-command> [args...]",
		Short: "Cross-compile Rust crates inside target containers",
		Long: TitleStyle.Render("xcross") + SubtitleStyle.Render(" - zero setup cross compilation for Rust") + `

xcross runs cargo inside a container image that carries the linker,
C toolchain and system libraries of the target. Your host toolchain,
cargo home and project are mounted into the container, or copied into
volumes when the engine runs on another machine.

` + SubtitleStyle.Render("Examples:") + `
  xcross build --target aarch64-unknown-linux-gnu
  xcross +nightly test --target riscv64gc-unknown-linux-gnu
  xcross volumes create --target armv7-unknown-linux-gnueabihf
  xcross containers remove-all`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(app.stderr, app.flags.verbose, app.flags.quiet))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return app.runCargo(cmd.Context(), args)
		},
	}
	// Everything after the cargo subcommand belongs to cargo.
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&app.flags.quiet, "quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "configuration file (default is xcross.toml in the workspace root)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newVolumesCommand(app))
	rootCmd.AddCommand(newContainersCommand(app))
	rootCmd.AddCommand(newTargetsCommand(app))
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Execute runs the CLI and exits with the build's status. It is called by
// main.main().
func Execute() {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			renderError(w, styles, err, app.flags.verbose)
		}),
	)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code.Code())
		}
		os.Exit(1)
	}
}

// newLogger returns the slog logger of the CLI, backed by charmbracelet/log.
func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: false,
		Prefix:          "xcross",
	})
	switch {
	case quiet:
		logger.SetLevel(log.ErrorLevel)
	case verbose:
		logger.SetLevel(log.DebugLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return slog.New(logger)
}

// renderError prints err for the user. A failed build already reported
// itself through cargo, so a bare exit status prints nothing.
func renderError(w io.Writer, styles fang.Styles, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("error: ")+formatErrorForDisplay(err, verbose))
	renderIssue(w, issue.IssueOf(err))
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderIssue prints the help page of a catalogued issue.
func renderIssue(w io.Writer, id issue.Id) {
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render("dark")
	if err != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", id, "error", err)
		return
	}
	fmt.Fprint(w, rendered)
}
