// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"strings"
)

// transientMarkers are stderr fragments of engine failures that tend to
// clear up on their own.
var transientMarkers = []string{
	"ping_group_range",
	"OCI runtime error",
	"connection timed out",
	"connection reset by peer",
	"i/o timeout",
	"TLS handshake timeout",
	"error creating overlay mount",
	"error mounting layer",
	"database is locked",
}

// IsTransientError reports whether err is a transient container engine error
// that may succeed on retry. Exit code 125 is the engines' generic "internal
// failure" status and is treated as transient.
//
// Context cancellation and deadline errors are never transient, nor is an
// engine that could not be started.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEngineNotInvokable) {
		return false
	}

	var ce *CommandError
	if errors.As(err, &ce) && ce.ExitCode == 125 {
		return true
	}

	errStr := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
