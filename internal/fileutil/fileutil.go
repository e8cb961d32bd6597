// Package fileutil provides filesystem helpers shared by the layout planner
// and executor: copy/link materialization, non-empty checks, and small JSON
// writing utilities.
package fileutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects how source assets are placed into the run layout.
type Mode string

const (
	ModeCopy     Mode = "copy"
	ModeSymlink  Mode = "symlink"
	ModeHardlink Mode = "hardlink"
)

// ParseMode validates a materialization mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeCopy:
		return ModeCopy, nil
	case ModeSymlink:
		return ModeSymlink, nil
	case ModeHardlink:
		return ModeHardlink, nil
	default:
		return "", fmt.Errorf("unsupported materialization mode %q (use copy, symlink, or hardlink)", raw)
	}
}

// CopyFile streams src to dst with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// Materialize places src at dst using the given mode. The operation is
// idempotent: an existing non-empty destination is left untouched so repeated
// planning runs never re-copy assets. Dangling symlinks and empty files are
// replaced.
func Materialize(src, dst string, mode Mode) error {
	if err := EnsureParent(dst); err != nil {
		return err
	}

	if info, err := os.Stat(dst); err == nil {
		if info.IsDir() {
			return fmt.Errorf("refusing to overwrite directory: %s", dst)
		}
		if info.Size() > 0 {
			return nil
		}
	}
	// Remove empty files and dangling links before re-linking.
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}

	switch mode {
	case ModeSymlink:
		return os.Symlink(src, dst)
	case ModeHardlink:
		return os.Link(src, dst)
	case ModeCopy:
		return CopyFile(src, dst)
	default:
		return fmt.Errorf("unsupported materialization mode %q", mode)
	}
}

// NonEmptyFile reports whether path refers to an existing regular file (or
// resolvable symlink) with at least one byte of content.
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// EnsureParent creates the parent directory of path.
func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteText writes content to path, creating parent directories as needed.
func WriteText(path, content string) error {
	if err := EnsureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// WriteJSON writes payload as indented JSON with a trailing newline.
func WriteJSON(path string, payload any) error {
	if err := EnsureParent(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
