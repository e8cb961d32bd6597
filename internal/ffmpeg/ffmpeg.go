// Package ffmpeg wraps the external ffmpeg binary for first-frame extraction.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"vidsweep/internal/fileutil"
	"vidsweep/internal/services"
)

var commandContext = exec.CommandContext

// Extractor derives still images from video files.
type Extractor struct {
	binary string
}

// Option configures the extractor.
type Option func(*Extractor)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(e *Extractor) {
		if binary != "" {
			e.binary = binary
		}
	}
}

// NewExtractor constructs an Extractor using defaults.
func NewExtractor(opts ...Option) *Extractor {
	extractor := &Extractor{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(extractor)
	}
	return extractor
}

// FirstFrame writes the first frame of videoPath to imagePath. The result is
// cached: an existing non-empty image is left untouched so repeated planning
// runs never re-extract.
func (e *Extractor) FirstFrame(ctx context.Context, videoPath, imagePath string) error {
	if videoPath == "" {
		return errors.New("video path required")
	}
	if imagePath == "" {
		return errors.New("image path required")
	}
	if fileutil.NonEmptyFile(imagePath) {
		return nil
	}
	if err := fileutil.EnsureParent(imagePath); err != nil {
		return err
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-frames:v", "1",
		imagePath,
	}
	cmd := commandContext(ctx, e.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		detail := fmt.Sprintf("extract first frame from %s", videoPath)
		if len(output) > 0 {
			detail = fmt.Sprintf("%s: %s", detail, string(output))
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "first frame", detail, err)
	}
	if !fileutil.NonEmptyFile(imagePath) {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "first frame", fmt.Sprintf("ffmpeg produced no image at %s", imagePath), nil)
	}
	return nil
}
