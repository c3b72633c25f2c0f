// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"os"

	"golang.org/x/term"
)

// Terminal records which standard streams are attached to a terminal.
type Terminal struct {
	Stdin  bool
	Stdout bool
	Stderr bool
}

// DetectTerminal inspects the standard streams of the current process.
func DetectTerminal() Terminal {
	return Terminal{
		Stdin:  term.IsTerminal(int(os.Stdin.Fd())),
		Stdout: term.IsTerminal(int(os.Stdout.Fd())),
		Stderr: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Interactive reports whether stdin should be kept open for the build.
func (t Terminal) Interactive() bool { return t.Stdin }

// TTY reports whether the container gets a pseudo-terminal. Every stream
// must be a terminal; a piped stdout would otherwise receive terminal
// escape sequences.
func (t Terminal) TTY() bool { return t.Stdin && t.Stdout && t.Stderr }
