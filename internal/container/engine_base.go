// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// InterruptWaitDelay is how long a streamed command may take to exit after
// it was interrupted before it is killed.
const InterruptWaitDelay = 10 * time.Second

var (
	// ErrEngineNotInvokable is returned when the engine binary could not be
	// started at all (missing binary, permission denied). It is distinct from a
	// command that ran and exited non-zero.
	ErrEngineNotInvokable = errors.New("could not invoke container engine")

	// ErrCommandFailed is the sentinel wrapped by CommandError when the engine
	// ran but exited with a non-zero status.
	ErrCommandFailed = errors.New("container engine command failed")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine runs container engine CLI commands. Every invocation goes
	// through CreateCommand so that global arguments (such as --remote) and
	// the injected exec function apply uniformly.
	BaseCLIEngine struct {
		name        string
		binaryPath  string
		execCommand ExecCommandFunc
		globalArgs  []string
	}

	// CommandError describes a failed engine invocation. It carries the
	// captured output so callers can show the engine's own diagnostics.
	CommandError struct {
		Engine   string
		Args     []string
		ExitCode int
		Stdout   string
		Stderr   string
		Err      error
	}

	// StreamOptions attaches standard streams to a command.
	StreamOptions struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s %s", e.Engine, strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		fmt.Fprintf(&msg, " exited with status %d", e.ExitCode)
	}
	if e.Err != nil && e.ExitCode == 0 {
		msg.WriteString(": ")
		msg.WriteString(e.Err.Error())
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg.WriteString(": ")
		msg.WriteString(stderr)
	}
	return msg.String()
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithGlobalArgs sets arguments inserted before every subcommand.
func WithGlobalArgs(args ...string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.globalArgs = append([]string(nil), args...)
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		name:        binaryPath,
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Accessor Methods ---

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// ExecCommand returns the exec function commands are created with.
func (e *BaseCLIEngine) ExecCommand() ExecCommandFunc {
	return e.execCommand
}

// --- Command Execution ---

// CreateCommand creates an exec.Cmd for the given arguments.
// This is useful when the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	full := make([]string, 0, len(e.globalArgs)+len(args))
	full = append(full, e.globalArgs...)
	full = append(full, args...)
	slog.Debug("running engine command", "engine", e.binaryPath, "args", full)
	return e.execCommand(ctx, e.binaryPath, full...)
}

// RunCommand executes a command and returns its trimmed stdout. Stderr is
// captured into the returned CommandError on failure.
func (e *BaseCLIEngine) RunCommand(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", e.commandError(args, err, stdout.String(), stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// RunCommandStatus executes a command, discarding its output on success.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	_, err := e.RunCommand(ctx, args...)
	return err
}

// RunCommandStream executes a command with the given streams attached and
// returns the command's exit code. A non-zero exit code is not an error; only
// failing to start the engine is.
//
// Cancelling ctx interrupts the engine CLI instead of killing it, so it can
// forward the signal to the container it runs; it is killed only when it
// has not exited after InterruptWaitDelay.
func (e *BaseCLIEngine) RunCommandStream(ctx context.Context, streams StreamOptions, args ...string) (int, error) {
	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdin = streams.Stdin
	cmd.Stdout = streams.Stdout
	cmd.Stderr = streams.Stderr
	cmd.Cancel = func() error {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = InterruptWaitDelay

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, e.commandError(args, err, "", "")
}

// commandError classifies err into a CommandError. Exit errors wrap
// ErrCommandFailed; anything else means the engine never ran.
func (e *BaseCLIEngine) commandError(args []string, err error, stdout, stderr string) *CommandError {
	ce := &CommandError{
		Engine: e.name,
		Args:   args,
		Stdout: stdout,
		Stderr: stderr,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
		ce.Err = fmt.Errorf("%w: %w", ErrCommandFailed, err)
		return ce
	}
	ce.Err = fmt.Errorf("%w: %w", ErrEngineNotInvokable, err)
	return ce
}

// ExitCodeOf returns the engine exit code carried by err, or -1.
func ExitCodeOf(err error) int {
	var ce *CommandError
	if errors.As(err, &ce) && ce.ExitCode != 0 {
		return ce.ExitCode
	}
	return -1
}
