package manifest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"vidsweep/internal/fileutil"
	"vidsweep/internal/logging"
	"vidsweep/internal/services"
)

// IndexOptions configures the generic raw-index manifest builder, used for
// dataset exports (e.g. WISA-80K) that already carry prompt and video columns
// under varying key names.
type IndexOptions struct {
	IndexPath   string
	VideoRoot   string
	IDPrefix    string
	Limit       int
	DebugMisses int
	Logger      *slog.Logger
}

// BuildFromIndex normalizes a JSONL or CSV raw index into canonical records.
// Video references resolve in order: absolute/relative path as given, path
// under VideoRoot (with .mp4 inferred), then unique basename match under
// VideoRoot.
func BuildFromIndex(opts IndexOptions) (BuildResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "manifest-index")

	rows, err := readRawRows(opts.IndexPath)
	if err != nil {
		return BuildResult{}, services.Wrap(services.ErrValidation, "manifest", "read index", "", err)
	}

	prefix := opts.IDPrefix
	if prefix == "" {
		prefix = "sample"
	}

	var basenames map[string][]string
	if opts.VideoRoot != "" {
		basenames, err = indexBasenames(opts.VideoRoot)
		if err != nil {
			return BuildResult{}, err
		}
	}

	baseDir := filepath.Dir(opts.IndexPath)
	result := BuildResult{}
	for _, paths := range basenames {
		result.Indexed += len(paths)
	}
	seen := map[string]struct{}{}

	for index, row := range rows {
		if opts.Limit > 0 && result.Wrote >= opts.Limit {
			break
		}

		prompt := pickValue(row, promptKeys)
		videoRaw := pickValue(row, videoKeys)
		if prompt == "" || videoRaw == "" {
			result.Skipped++
			continue
		}

		video := resolveIndexVideo(videoRaw, baseDir, opts.VideoRoot, basenames)
		if video == "" {
			result.Skipped++
			if len(result.Misses) < debugLimit(opts.DebugMisses) {
				result.Misses = append(result.Misses, videoRaw)
			}
			continue
		}

		sampleID := SafeSampleID(pickValue(row, idKeys), index+1, prefix)
		if _, dup := seen[sampleID]; dup {
			sampleID = fmt.Sprintf("%s_%06d", sampleID, index+1)
		}
		seen[sampleID] = struct{}{}

		record := Record{SampleID: sampleID, Prompt: prompt, GroundTruthVideo: video}
		if imageRaw := pickValue(row, imageKeys); imageRaw != "" {
			if image := resolvePath(imageRaw, baseDir); fileutil.NonEmptyFile(image) {
				record.ImagePath = image
			}
		}
		result.Records = append(result.Records, record)
		result.Wrote++
	}

	logger.Info("manifest build finished",
		logging.Int("wrote", result.Wrote),
		logging.Int("skipped", result.Skipped),
		logging.Int("indexed", result.Indexed),
	)
	return result, nil
}

func resolveIndexVideo(raw, baseDir, videoRoot string, basenames map[string][]string) string {
	if direct := resolvePath(raw, baseDir); fileutil.NonEmptyFile(direct) {
		return direct
	}

	if videoRoot != "" {
		rooted := filepath.Join(videoRoot, raw)
		if fileutil.NonEmptyFile(rooted) {
			return rooted
		}
		if filepath.Ext(raw) == "" {
			if withExt := rooted + ".mp4"; fileutil.NonEmptyFile(withExt) {
				return withExt
			}
		}
	}

	if basenames != nil {
		base := filepath.Base(raw)
		if matches := basenames[base]; len(matches) == 1 {
			return matches[0]
		}
		if filepath.Ext(base) == "" {
			if matches := basenames[base+".mp4"]; len(matches) == 1 {
				return matches[0]
			}
		}
	}
	return ""
}

func indexBasenames(root string) (map[string][]string, error) {
	index := map[string][]string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		index[filepath.Base(path)] = append(index[filepath.Base(path)], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index video root %s: %w", root, err)
	}
	return index, nil
}
