package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig writes a minimal config whose directories live under the
// test's temp dir, so commands never touch the real home directory.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
runs_dir = %q
log_dir = %q
`, filepath.Join(base, "runs"), filepath.Join(base, "logs"))
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
