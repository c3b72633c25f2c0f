// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/xcross/xcross/internal/issue"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version, Commit, BuildDate = "v0.3.0", "abc1234", "2026-06-15T10:00:00Z"
		want := "v0.3.0 (commit: abc1234, built: 2026-06-15T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback to dev when no build info", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		// Test binaries report Main.Version "(devel)".
		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		verbose, quiet bool
		enabled        []slog.Level
		disabled       []slog.Level
	}{
		{"default", false, false, []slog.Level{slog.LevelInfo, slog.LevelWarn}, []slog.Level{slog.LevelDebug}},
		{"verbose", true, false, []slog.Level{slog.LevelDebug}, nil},
		{"quiet", false, true, []slog.Level{slog.LevelError}, []slog.Level{slog.LevelWarn}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger := newLogger(&bytes.Buffer{}, tt.verbose, tt.quiet)
			for _, l := range tt.enabled {
				if !logger.Enabled(context.Background(), l) {
					t.Errorf("level %s should be enabled", l)
				}
			}
			for _, l := range tt.disabled {
				if logger.Enabled(context.Background(), l) {
					t.Errorf("level %s should be disabled", l)
				}
			}
		})
	}
}

func TestNewLogger_Prefix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, false, false).Warn("stale volume", "volume", "cross-stable")
	for _, want := range []string{"xcross", "stale volume", "cross-stable"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log output %q does not contain %q", buf.String(), want)
		}
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	if got := formatErrorForDisplay(plain, false); got != "boom" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}

	actionable := issue.NewErrorContext().
		WithOperation("copy project").
		WithSuggestion("Retry").
		Wrap(plain).
		BuildError()
	out := formatErrorForDisplay(actionable, false)
	if !strings.Contains(out, "copy project") || !strings.Contains(out, "Retry") {
		t.Errorf("formatErrorForDisplay() = %q, want operation and suggestion", out)
	}
	if strings.Contains(out, "Error chain") {
		t.Errorf("non-verbose output shows the error chain: %q", out)
	}
	if verbose := formatErrorForDisplay(actionable, true); !strings.Contains(verbose, "Error chain") {
		t.Errorf("verbose output lacks the error chain: %q", verbose)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	if got := (&ExitError{Code: 101}).Error(); got != "exit status 101" {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("engine vanished")
	err := &ExitError{Code: 125, Err: cause}
	if err.Error() != "engine vanished" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("ExitError should unwrap to its cause")
	}
}
