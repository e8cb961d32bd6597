package backends

import (
	"os"
	"path/filepath"
)

// CheckpointPresent reports whether dir looks like a populated checkpoint
// directory. The probe is shallow: the directory itself or one of its
// immediate subdirectories must contain at least one entry. Weight layouts
// vary per backend, so no specific file names are required.
func CheckpointPresent(dir string) bool {
	if dir == "" {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return true
		}
		nested, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err == nil && len(nested) > 0 {
			return true
		}
	}
	return false
}
