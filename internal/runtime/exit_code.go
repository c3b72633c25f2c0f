// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"strconv"
)

// Exit statuses the engine itself uses for failures of "run" and "exec",
// as opposed to statuses of the build process.
const (
	ExitEngineFailed    ExitStatus = 125
	ExitNotExecutable   ExitStatus = 126
	ExitCommandNotFound ExitStatus = 127
)

// ErrInvalidExitStatus is the sentinel error wrapped by InvalidExitStatusError.
var ErrInvalidExitStatus = errors.New("invalid exit status")

type (
	// ExitStatus is the exit status of the build process in the container.
	// The zero value means success.
	ExitStatus int

	// InvalidExitStatusError is returned when an ExitStatus is outside 0-255.
	InvalidExitStatusError struct {
		Value ExitStatus
	}
)

// Error implements the error interface.
func (e *InvalidExitStatusError) Error() string {
	return fmt.Sprintf("invalid exit status %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitStatus.
func (e *InvalidExitStatusError) Unwrap() error { return ErrInvalidExitStatus }

// StatusFromCode converts a process exit code. A negative code, reported
// for a process killed by a signal, becomes 1.
func StatusFromCode(code int) ExitStatus {
	switch {
	case code < 0:
		return 1
	case code > 255:
		return ExitStatus(code & 0xff)
	default:
		return ExitStatus(code)
	}
}

// IsValid reports whether s is in the range 0-255.
func (s ExitStatus) IsValid() (bool, []error) {
	if s < 0 || s > 255 {
		return false, []error{&InvalidExitStatusError{Value: s}}
	}
	return true, nil
}

// IsSuccess reports whether the build succeeded.
func (s ExitStatus) IsSuccess() bool { return s == 0 }

// IsEngineFailure reports whether s is one of the statuses the engine uses
// when it could not start the command at all.
func (s ExitStatus) IsEngineFailure() bool {
	return s >= ExitEngineFailed && s <= ExitCommandNotFound
}

// Code returns s as an int for os.Exit.
func (s ExitStatus) Code() int { return int(s) }

// String returns the decimal representation of s.
func (s ExitStatus) String() string { return strconv.Itoa(int(s)) }
