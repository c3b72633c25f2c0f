// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Container states as reported by "ps --format {{.State}}". StateAbsent
// means no container with the name exists.
const (
	StateAbsent     ContainerState = ""
	StateCreated    ContainerState = "created"
	StateRestarting ContainerState = "restarting"
	StateRunning    ContainerState = "running"
	StateRemoving   ContainerState = "removing"
	StatePaused     ContainerState = "paused"
	StateExited     ContainerState = "exited"
	StateDead       ContainerState = "dead"
)

// DefaultStopTimeout is the grace period, in seconds, given to a container
// attached to a terminal before it is killed.
const DefaultStopTimeout = 10

type (
	// ContainerState is the lifecycle state of a container.
	ContainerState string

	// ContainerSummary is one row of a container listing.
	ContainerSummary struct {
		Name  string
		State ContainerState
	}

	// ExecOptions configures an "exec" invocation.
	ExecOptions struct {
		Interactive bool
		TTY         bool
		WorkDir     string
		User        string
		// Env holds NAME=value pairs or bare NAME entries forwarded from our environment.
		Env []string
	}
)

// Exists reports whether the state describes an existing container.
func (s ContainerState) Exists() bool {
	return s != StateAbsent
}

// IsStopped reports whether the container exists but is not running.
func (s ContainerState) IsStopped() bool {
	switch s {
	case StateCreated, StateExited, StateDead, StateRemoving:
		return true
	default:
		return false
	}
}

// ContainerState returns the state of the container with exactly this name.
func (e *Engine) ContainerState(ctx context.Context, name string) (ContainerState, error) {
	out, err := e.queryWithRetry(ctx, "ps", "-a", "--filter", "name=^"+name+"$", "--format", "{{.State}}")
	if err != nil {
		return StateAbsent, err
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return StateAbsent, nil
	}
	// docker prints "Up 3 minutes" style text on some versions; take the first word.
	state, _, _ := strings.Cut(strings.ToLower(lines[0]), " ")
	switch s := ContainerState(state); s {
	case StateCreated, StateRestarting, StateRunning, StateRemoving, StatePaused, StateExited, StateDead:
		return s, nil
	case "up":
		return StateRunning, nil
	default:
		return StateAbsent, fmt.Errorf("unknown container state %q for %s", lines[0], name)
	}
}

// ContainerList lists containers whose name starts with prefix.
func (e *Engine) ContainerList(ctx context.Context, prefix string) ([]ContainerSummary, error) {
	out, err := e.queryWithRetry(ctx, "ps", "-a", "--filter", "name=^"+prefix, "--format", "{{.Names}}: {{.State}}")
	if err != nil {
		return nil, err
	}
	var list []ContainerSummary
	for _, line := range splitLines(out) {
		name, state, _ := strings.Cut(line, ": ")
		list = append(list, ContainerSummary{Name: name, State: ContainerState(strings.ToLower(state))})
	}
	return list, nil
}

// StopArgs constructs arguments for a container stop command.
func StopArgs(name string, timeout int) []string {
	return []string{"stop", "-t", strconv.Itoa(timeout), name}
}

// RemoveArgs constructs arguments for a forced container remove command.
func RemoveArgs(name string) []string {
	return []string{"rm", "-f", name}
}

// ContainerStop stops a container, waiting up to timeout seconds.
func (e *Engine) ContainerStop(ctx context.Context, name string, timeout int) error {
	return e.RunCommandStatus(ctx, StopArgs(name, timeout)...)
}

// ContainerRemove forcibly removes a container.
func (e *Engine) ContainerRemove(ctx context.Context, name string) error {
	return e.RunCommandStatus(ctx, RemoveArgs(name)...)
}

// Copy runs "cp -a src dst". Either side may be "<container>:<path>".
func (e *Engine) Copy(ctx context.Context, src, dst string) error {
	return e.RunCommandStatus(ctx, "cp", "-a", src, dst)
}

// ExecArgs constructs arguments for a container exec command.
//
// Generated command: <binary> exec [options] <container> <command...>
func ExecArgs(name string, opts ExecOptions, command ...string) []string {
	args := []string{"exec"}
	switch {
	case opts.Interactive && opts.TTY:
		args = append(args, "-it")
	case opts.Interactive:
		args = append(args, "-i")
	case opts.TTY:
		args = append(args, "-t")
	}
	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	for _, env := range opts.Env {
		args = append(args, "-e", env)
	}
	args = append(args, name)
	return append(args, command...)
}

// Exec runs a command in a running container and fails on a non-zero exit.
func (e *Engine) Exec(ctx context.Context, name string, opts ExecOptions, command ...string) error {
	return e.RunCommandStatus(ctx, ExecArgs(name, opts, command...)...)
}

// ExecStream runs a command in a running container with streams attached and
// returns its exit code.
func (e *Engine) ExecStream(ctx context.Context, name string, opts ExecOptions, streams StreamOptions, command ...string) (int, error) {
	return e.RunCommandStream(ctx, streams, ExecArgs(name, opts, command...)...)
}

// Inspect returns the raw JSON of "inspect <name>".
func (e *Engine) Inspect(ctx context.Context, name string) (string, error) {
	return e.queryWithRetry(ctx, "inspect", name)
}
