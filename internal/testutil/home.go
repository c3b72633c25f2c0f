// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"

	"github.com/xcross/xcross/pkg/platform"
)

// SetHomeDir points the user's home directory at dir and returns a cleanup
// function restoring it. Windows reads USERPROFILE, other systems HOME.
//
//	t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	if runtime.GOOS == platform.Windows {
		return MustSetenv(t, "USERPROFILE", dir)
	}
	return MustSetenv(t, "HOME", dir)
}
