package manifest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"path/filepath"
	"regexp"
	"strings"

	"vidsweep/internal/fileutil"
	"vidsweep/internal/logging"
	"vidsweep/internal/services"
)

// Physics-IQ distributes the same clip under several directory and naming
// variants; these tokens are ignored when matching filenames.
var physicsNoiseTokens = map[string]struct{}{
	"fullvideos":   {},
	"splitvideos":  {},
	"videomasks":   {},
	"switchframes": {},
	"conditioning": {},
	"testing":      {},
	"real":         {},
	"fps":          {},
	"8fps":         {},
	"16fps":        {},
	"24fps":        {},
	"30fps":        {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// PhysicsIQOptions configures the Physics-IQ manifest builder.
type PhysicsIQOptions struct {
	DescriptionsCSV string
	SearchRoots     []string
	FilenameColumns []string
	PromptColumn    string
	IDColumn        string
	TakeFilter      string
	Limit           int
	Shuffle         bool
	Seed            int64
	DebugMisses     int
	Logger          *slog.Logger
}

// BuildResult summarizes a manifest build.
type BuildResult struct {
	Records []Record
	Wrote   int
	Skipped int
	Indexed int
	Misses  []string
}

// BuildPhysicsIQ normalizes a Physics-IQ descriptions CSV into canonical
// records, resolving video files by exact and normalized basename against the
// search roots. Unresolvable rows are skipped and counted, never fatal.
func BuildPhysicsIQ(opts PhysicsIQOptions) (BuildResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "manifest-physicsiq")

	rows, err := readRawRows(opts.DescriptionsCSV)
	if err != nil {
		return BuildResult{}, services.Wrap(services.ErrValidation, "manifest", "read descriptions", "", err)
	}
	if len(rows) == 0 {
		return BuildResult{}, services.Wrap(services.ErrValidation, "manifest", "read descriptions", fmt.Sprintf("no rows in %s", opts.DescriptionsCSV), nil)
	}

	filenameColumns := opts.FilenameColumns
	if len(filenameColumns) == 0 {
		filenameColumns = []string{"scenario", "generated_video_name"}
	}
	promptColumn := opts.PromptColumn
	if promptColumn == "" {
		promptColumn = "description"
	}
	idColumn := opts.IDColumn
	if idColumn == "" {
		idColumn = "generated_video_name"
	}

	index, err := buildVideoIndex(opts.SearchRoots)
	if err != nil {
		return BuildResult{}, err
	}
	logger.Info("indexed search roots", logging.Int("files", index.size()))

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	if opts.Shuffle {
		rng := rand.New(rand.NewSource(opts.Seed))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	if opts.Limit > 0 && opts.Limit < len(order) {
		order = order[:opts.Limit]
	}

	result := BuildResult{Indexed: index.size()}
	seen := map[string]struct{}{}

	for outIdx, rowIdx := range order {
		row := rows[rowIdx]

		prompt := strings.TrimSpace(row[promptColumn])
		if prompt == "" {
			result.Skipped++
			continue
		}

		if opts.TakeFilter != "" {
			probe := make([]string, 0, len(filenameColumns))
			for _, column := range filenameColumns {
				probe = append(probe, row[column])
			}
			if !strings.Contains(strings.ToLower(strings.Join(probe, " ")), strings.ToLower(opts.TakeFilter)) {
				result.Skipped++
				continue
			}
		}

		video := index.resolve(row, filenameColumns)
		if video == "" || !fileutil.NonEmptyFile(video) {
			result.Skipped++
			if len(result.Misses) < debugLimit(opts.DebugMisses) {
				result.Misses = append(result.Misses, missDescription(row, filenameColumns))
			}
			continue
		}

		rawID := strings.TrimSpace(row[idColumn])
		if rawID == "" {
			for _, column := range filenameColumns {
				if row[column] != "" {
					rawID = row[column]
					break
				}
			}
		}
		if rawID != "" {
			rawID = strings.TrimSuffix(filepath.Base(rawID), filepath.Ext(rawID))
		}
		sampleID := SafeSampleID(rawID, outIdx+1, "physics")
		if _, dup := seen[sampleID]; dup {
			sampleID = fmt.Sprintf("%s_%06d", sampleID, outIdx+1)
		}
		seen[sampleID] = struct{}{}

		result.Records = append(result.Records, Record{
			SampleID:         sampleID,
			Prompt:           prompt,
			GroundTruthVideo: video,
		})
		result.Wrote++
	}

	logger.Info("manifest build finished",
		logging.Int("wrote", result.Wrote),
		logging.Int("skipped", result.Skipped),
		logging.Int("indexed", result.Indexed),
	)
	return result, nil
}

func debugLimit(n int) int {
	if n <= 0 {
		return 0
	}
	return n
}

func missDescription(row map[string]string, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		if value := strings.TrimSpace(row[column]); value != "" {
			parts = append(parts, column+"="+value)
		}
	}
	if len(parts) == 0 {
		return "(no filename candidates)"
	}
	return strings.Join(parts, " ")
}

type videoIndex struct {
	byBasename   map[string][]string
	byNormalized map[string][]string
}

func buildVideoIndex(roots []string) (*videoIndex, error) {
	index := &videoIndex{
		byBasename:   map[string][]string{},
		byNormalized: map[string][]string{},
	}
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
				return nil
			}
			name := filepath.Base(path)
			index.byBasename[name] = append(index.byBasename[name], path)
			norm := normalizeVideoName(name)
			index.byNormalized[norm] = append(index.byNormalized[norm], path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("index search root %s: %w", root, err)
		}
	}
	return index, nil
}

func (idx *videoIndex) size() int {
	total := 0
	for _, paths := range idx.byBasename {
		total += len(paths)
	}
	return total
}

// resolve tries each filename candidate by exact basename first, then by
// normalized name; a match counts only when unambiguous.
func (idx *videoIndex) resolve(row map[string]string, columns []string) string {
	var candidates []string
	for _, column := range columns {
		if value := strings.TrimSpace(row[column]); value != "" {
			candidates = append(candidates, value)
		}
	}

	for _, candidate := range candidates {
		names := []string{filepath.Base(candidate)}
		if filepath.Ext(candidate) == "" {
			names = append(names, candidate+".mp4")
		}
		for _, name := range names {
			if matches := idx.byBasename[name]; len(matches) == 1 {
				return matches[0]
			}
		}
		for _, name := range names {
			if matches := idx.byNormalized[normalizeVideoName(name)]; len(matches) == 1 {
				return matches[0]
			}
		}
	}
	return ""
}

func normalizeVideoName(name string) string {
	stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	parts := nonAlnum.Split(stem, -1)
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if _, noise := physicsNoiseTokens[part]; noise {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "")
}
