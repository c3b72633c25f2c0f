// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"

	"github.com/xcross/xcross/internal/issue"
	"github.com/xcross/xcross/internal/target"
	"github.com/xcross/xcross/internal/toolchain"
)

// ErrMissingStdlib is returned when the standard library of the target is
// not part of the toolchain.
var ErrMissingStdlib = errors.New("standard library not installed")

// CheckStdlib explains a failed build when the toolchain lacks the standard
// library of t. It returns nil when the library is installed.
func CheckStdlib(tc *toolchain.Toolchain, t target.Triple) error {
	if tc == nil || tc.HasTarget(t) {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("build for " + t.String()).
		WithResource(tc.RustlibDir(t)).
		WithIssue(issue.MissingStdlibId).
		WithSuggestion(fmt.Sprintf("Try `rustup target add %s`", t)).
		Wrap(fmt.Errorf("%w: the standard library for %s may not be installed", ErrMissingStdlib, t)).
		BuildError()
}
