package progress

import (
	"os"
	"path/filepath"
	"strings"
)

// LatestLogPath returns the most recently modified progress_*.log under root,
// or empty when none exist.
func LatestLogPath(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "progress_") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(root, name)
			newestMod = mod
		}
	}
	return newest
}
