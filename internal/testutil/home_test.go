// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"testing"

	"github.com/xcross/xcross/pkg/platform"
)

func homeVar() string {
	if runtime.GOOS == platform.Windows {
		return "USERPROFILE"
	}
	return "HOME"
}

func TestSetHomeDir(t *testing.T) {
	// Not parallel: mutates the process environment.
	tmpDir := t.TempDir()
	original, hadOriginal := os.LookupEnv(homeVar())

	cleanup := SetHomeDir(t, tmpDir)
	if got := os.Getenv(homeVar()); got != tmpDir {
		t.Errorf("%s = %q, want %q", homeVar(), got, tmpDir)
	}
	if got, err := os.UserHomeDir(); err != nil || got != tmpDir {
		t.Errorf("os.UserHomeDir() = %q, %v; want %q", got, err, tmpDir)
	}

	cleanup()
	got, had := os.LookupEnv(homeVar())
	if had != hadOriginal || got != original {
		t.Errorf("after cleanup, %s = %q (set %v), want %q (set %v)", homeVar(), got, had, original, hadOriginal)
	}
}

func TestMustUnsetenv(t *testing.T) {
	// Not parallel: mutates the process environment.
	const key = "XCROSS_TESTUTIL_PROBE"
	t.Cleanup(MustSetenv(t, key, "set"))

	restore := MustUnsetenv(t, key)
	if _, ok := os.LookupEnv(key); ok {
		t.Fatalf("%s is still set", key)
	}
	restore()
	if got := os.Getenv(key); got != "set" {
		t.Errorf("%s = %q after restore, want %q", key, got, "set")
	}
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	WriteFiles(t, root, map[string]string{
		"a/b/c.txt": "deep",
		"top":       "",
	})

	data, err := os.ReadFile(root + "/a/b/c.txt")
	if err != nil || string(data) != "deep" {
		t.Errorf("a/b/c.txt = %q, %v", data, err)
	}
	if _, err := os.Stat(root + "/top"); err != nil {
		t.Errorf("top: %v", err)
	}
}

func TestContainerParallelism(t *testing.T) {
	t.Parallel()

	if got := containerParallelism("5"); got != 5 {
		t.Errorf("containerParallelism(\"5\") = %d, want 5", got)
	}
	def := min(runtime.GOMAXPROCS(0), 2)
	for _, v := range []string{"", "0", "-1", "many"} {
		if got := containerParallelism(v); got != def {
			t.Errorf("containerParallelism(%q) = %d, want %d", v, got, def)
		}
	}
}
