// Package testutil provides utilities for testing jrefetch in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points every path jrefetch reads from the environment at a
// fresh temporary directory, so tests never touch the user's real config or
// installed runtimes. Cleanup is handled by t.TempDir.
//
// It returns the temporary root. The config file path is set but the file
// itself is not created.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	t.Setenv("JREFETCH_CONFIG", filepath.Join(tmpDir, "config", "jrefetch", "jrefetch.lua"))
	t.Setenv("JREFETCH_ROOT", filepath.Join(tmpDir, "data", "jrefetch"))

	for _, dir := range []string{
		filepath.Join(tmpDir, "config", "jrefetch"),
		filepath.Join(tmpDir, "data"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return tmpDir
}
