// SPDX-License-Identifier: MPL-2.0

// Package lifecycle guarantees that a container started for a build is
// stopped and removed exactly once, whether the build finishes, fails, or
// the process is interrupted.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/xcross/xcross/internal/container"
)

const (
	stateAbsent int32 = iota
	stateRegistering
	statePresent
)

var (
	// ErrAlreadyRegistered is returned by Create when a container is
	// already being tracked.
	ErrAlreadyRegistered = errors.New("a child container is already registered")

	// ErrContainerExited is returned by Check once the tracked container
	// has been torn down, typically by an interrupt.
	ErrContainerExited = errors.New("child container has already exited")
)

type (
	// ChildContainer tracks the one container a build runs in. The zero
	// value tracks nothing.
	//
	// The record is written only while state is stateRegistering, which no
	// other method acts on, so Terminate may run on any goroutine without
	// locks.
	ChildContainer struct {
		state   atomic.Int32
		timeout atomic.Int32
		info    record
	}

	record struct {
		engine *container.Engine
		name   string
	}
)

// Default is the process-wide guard.
var Default = &ChildContainer{}

// Create registers the container name. It must be called before the
// container is started so that a failed start is still cleaned up.
func (c *ChildContainer) Create(engine *container.Engine, name string) error {
	if !c.state.CompareAndSwap(stateAbsent, stateRegistering) {
		return ErrAlreadyRegistered
	}
	c.info = record{engine: engine, name: name}
	c.timeout.Store(0)
	c.state.Store(statePresent)
	return nil
}

// Exists reports whether a container is registered and not yet torn down.
func (c *ChildContainer) Exists() bool {
	return c.state.Load() == statePresent
}

// Check returns ErrContainerExited once the container has been torn down.
func (c *ChildContainer) Check() error {
	if !c.Exists() {
		return ErrContainerExited
	}
	return nil
}

// Name returns the registered container name, or "" when none is registered.
func (c *ChildContainer) Name() string {
	if !c.Exists() {
		return ""
	}
	return c.info.name
}

// Terminate stops and removes the container. Only the first call after
// Create does anything. Teardown runs even when ctx is already cancelled;
// failures are logged.
func (c *ChildContainer) Terminate(ctx context.Context) {
	if !c.state.CompareAndSwap(statePresent, stateAbsent) {
		return
	}
	info := c.info
	timeout := int(c.timeout.Load())
	ctx = context.WithoutCancel(ctx)

	slog.Debug("tearing down container", "container", info.name, "timeout", timeout)
	if err := info.engine.ContainerStop(ctx, info.name, timeout); err != nil {
		slog.Warn("could not stop container", "container", info.name, "error", err)
	}
	// Containers started with --rm are usually gone after the stop.
	if err := info.engine.ContainerRemove(ctx, info.name); err != nil {
		slog.Debug("could not remove container", "container", info.name, "error", err)
	}
}

// Finish is the normal-path teardown. A container attached to a terminal
// gets the default grace period to exit; a sleeping one is stopped at once.
func (c *ChildContainer) Finish(ctx context.Context, hadTTY bool) {
	if hadTTY {
		c.timeout.Store(container.DefaultStopTimeout)
	}
	c.Terminate(ctx)
}

// Watch terminates the container when ctx is cancelled or the process
// receives an interrupt or SIGTERM. The returned function stops watching.
func (c *ChildContainer) Watch(ctx context.Context) (stop func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			c.Terminate(ctx)
		case sig := <-signals:
			slog.Debug("received signal", "signal", sig)
			c.Terminate(ctx)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
		<-finished
	}
}
