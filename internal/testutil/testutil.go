// SPDX-License-Identifier: EPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// MustSetenv sets the environment variable key to value.
// It returns a cleanup function that restores the original value (or unsets it).
// The test fails immediately if the operation fails.
func MustSetenv(t testing.TB, key, value string) func() {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	return restoreEnv(t, key, originalValue, hadValue)
}

// MustUnsetenv unsets the environment variable key.
// It returns a cleanup function that restores the original value (if any).
func MustUnsetenv(t testing.TB, key string) func() {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	return restoreEnv(t, key, originalValue, hadValue)
}

func restoreEnv(t testing.TB, key, value string, had bool) func() {
	return func() {
		var err error
		if had {
			err = os.Setenv(key, value)
		} else {
			err = os.Unsetenv(key)
		}
		if err != nil {
			t.Errorf("failed to restore env %s: %v", key, err)
		}
	}
}

// WriteFiles creates each file under root, with its parent directories.
// Names are slash-separated.
func WriteFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}
