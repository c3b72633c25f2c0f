// SPDX-License-Identifier: MPL-2.0

// Package enginetest fakes container engine invocations for tests.
//
// Commands are re-executed as the test binary itself running
// TestHelperProcess, which prints the scripted stdout/stderr and exits with the
// scripted status. Every package that uses a Recorder must define:
//
//	func TestHelperProcess(t *testing.T) {
//		enginetest.HelperProcess()
//	}
package enginetest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	envWant     = "GO_WANT_HELPER_PROCESS"
	envExitCode = "GO_HELPER_EXIT_CODE"
	envStdout   = "GO_HELPER_STDOUT"
	envStderr   = "GO_HELPER_STDERR"
	envAwait    = "GO_HELPER_AWAIT_INTERRUPT"

	// Ready is printed by a helper that awaits an interrupt once it is
	// listening for one; Interrupted once it got it.
	Ready       = "helper ready"
	Interrupted = "helper interrupted"

	// InterruptedExitCode is the status of a helper that got its interrupt.
	InterruptedExitCode = 130
)

type (
	// Response is the scripted result of one engine invocation.
	Response struct {
		Stdout   string
		Stderr   string
		ExitCode int
		// AwaitInterrupt makes the command run until it receives an
		// interrupt, then exit with InterruptedExitCode.
		AwaitInterrupt bool
	}

	// Invocation is one recorded engine invocation.
	Invocation struct {
		Name string
		Args []string
	}

	// Rule answers invocations whose arguments start with Prefix.
	Rule struct {
		Prefix   []string
		Response Response
	}

	// Rules is an ordered rule list; the first matching rule wins and
	// unmatched invocations succeed with no output.
	Rules []Rule

	// Recorder records invocations and answers them from a responder.
	Recorder struct {
		mu          sync.Mutex
		invocations []Invocation
		respond     func(args []string) Response
	}
)

// Respond implements the responder for a rule list.
func (rs Rules) Respond(args []string) Response {
	for _, r := range rs {
		if HasPrefix(args, r.Prefix...) {
			return r.Response
		}
	}
	return Response{}
}

// New creates a Recorder. A nil responder makes every command succeed silently.
func New(respond func(args []string) Response) *Recorder {
	if respond == nil {
		respond = func([]string) Response { return Response{} }
	}
	return &Recorder{respond: respond}
}

// ExecCommand returns a function suitable for container.WithExecCommand.
func (r *Recorder) ExecCommand() func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		r.mu.Lock()
		r.invocations = append(r.invocations, Invocation{Name: name, Args: slices.Clone(args)})
		respond := r.respond
		r.mu.Unlock()

		resp := respond(args)

		cs := []string{"-test.run=^TestHelperProcess$", "--", name}
		cs = append(cs, args...)
		//nolint:gosec // TestHelperProcess is a test-only pattern
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			envWant + "=1",
			envExitCode + "=" + strconv.Itoa(resp.ExitCode),
			envStdout + "=" + resp.Stdout,
			envStderr + "=" + resp.Stderr,
		}
		if resp.AwaitInterrupt {
			cmd.Env = append(cmd.Env, envAwait+"=1")
		}
		return cmd
	}
}

// Invocations returns a copy of all recorded invocations.
func (r *Recorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.invocations)
}

// Args returns the argument lists of all recorded invocations.
func (r *Recorder) Args() [][]string {
	invs := r.Invocations()
	out := make([][]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.Args
	}
	return out
}

// Count returns how many invocations start with prefix.
func (r *Recorder) Count(prefix ...string) int {
	n := 0
	for _, args := range r.Args() {
		if HasPrefix(args, prefix...) {
			n++
		}
	}
	return n
}

// Find returns the first invocation starting with prefix.
func (r *Recorder) Find(prefix ...string) ([]string, bool) {
	for _, args := range r.Args() {
		if HasPrefix(args, prefix...) {
			return args, true
		}
	}
	return nil, false
}

// Reset clears all recorded invocations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = nil
}

// String renders every invocation on its own line, for failure messages.
func (r *Recorder) String() string {
	var b strings.Builder
	for _, args := range r.Args() {
		fmt.Fprintln(&b, strings.Join(args, " "))
	}
	return b.String()
}

// HasPrefix reports whether args starts with prefix.
func HasPrefix(args []string, prefix ...string) bool {
	if len(prefix) > len(args) {
		return false
	}
	return slices.Equal(args[:len(prefix)], prefix)
}

// HasArgPair reports whether args contains flag immediately followed by value.
func HasArgPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

// HelperProcess is the body of TestHelperProcess. It returns immediately
// unless the process was started by a Recorder.
func HelperProcess() {
	if os.Getenv(envWant) != "1" {
		return
	}

	if os.Getenv(envAwait) == "1" {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		fmt.Fprintln(os.Stdout, Ready)
		<-interrupt
		fmt.Fprintln(os.Stdout, Interrupted)
		os.Exit(InterruptedExitCode)
	}

	if stdout := os.Getenv(envStdout); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv(envStderr); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	exitCode, _ := strconv.Atoi(os.Getenv(envExitCode))
	os.Exit(exitCode)
}
