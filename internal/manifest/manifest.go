// Package manifest defines the canonical sample manifest and the per-slice
// task manifest formats, plus the dataset-specific builders that normalize raw
// indexes into canonical form.
//
// Both formats are JSON lines: one object per line, blank lines ignored. The
// canonical manifest carries sample_id, prompt, ground_truth_video, and an
// optional image_path; task manifests additionally carry resolved input and
// output paths for one (model, dataset, task) slice.
package manifest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"vidsweep/internal/fileutil"
)

// Record is one canonical sample: prompt plus ground-truth video and an
// optional conditioning image. Immutable once built.
type Record struct {
	SampleID         string `json:"sample_id"`
	Prompt           string `json:"prompt"`
	GroundTruthVideo string `json:"ground_truth_video"`
	ImagePath        string `json:"image_path,omitempty"`
}

// TaskRow is one execution row of a per-slice task manifest.
type TaskRow struct {
	SampleID         string `json:"sample_id"`
	Task             string `json:"task"`
	Prompt           string `json:"prompt"`
	PromptPath       string `json:"prompt_path,omitempty"`
	GroundTruthVideo string `json:"ground_truth_video,omitempty"`
	ImagePath        string `json:"image_path,omitempty"`
	OutputVideo      string `json:"output_video"`
	MetadataPath     string `json:"metadata_path,omitempty"`
}

var (
	idKeys     = []string{"sample_id", "id", "uid", "name", "video_id"}
	promptKeys = []string{"prompt", "text_prompt", "caption", "description", "video_caption", "text"}
	videoKeys  = []string{"ground_truth_video", "ground_truth", "gt_video", "video_path", "video", "path", "filename", "file_name"}
	imageKeys  = []string{"i2v_image", "image", "image_path", "first_frame", "first_frame_path"}
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeSampleID sanitizes a raw identifier, falling back to a positional id
// derived from prefix and index when the raw value is empty.
func SafeSampleID(raw string, index int, prefix string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fmt.Sprintf("%s_%05d", prefix, index)
	}
	value = unsafeIDChars.ReplaceAllString(value, "_")
	if value == "" {
		value = fmt.Sprintf("%s_%05d", prefix, index)
	}
	return value
}

// ReadRecords loads a canonical manifest. Relative asset paths resolve
// against the manifest's directory. Rows with missing required fields or
// nonexistent ground-truth videos are returned in the skipped count, never as
// an error.
func ReadRecords(path string) ([]Record, int, error) {
	rows, err := readRawRows(path)
	if err != nil {
		return nil, 0, err
	}

	baseDir := filepath.Dir(path)
	seen := map[string]int{}
	records := make([]Record, 0, len(rows))
	skipped := 0

	for index, row := range rows {
		sampleID := SafeSampleID(pickValue(row, idKeys), index+1, "sample")
		if prior, dup := seen[sampleID]; dup {
			return nil, 0, fmt.Errorf("%s: duplicate sample_id %q in rows %d and %d", path, sampleID, prior, index+1)
		}
		seen[sampleID] = index + 1

		prompt := pickValue(row, promptKeys)
		videoRaw := pickValue(row, videoKeys)
		if prompt == "" || videoRaw == "" {
			skipped++
			continue
		}

		video := resolvePath(videoRaw, baseDir)
		if !fileutil.NonEmptyFile(video) {
			skipped++
			continue
		}

		record := Record{SampleID: sampleID, Prompt: prompt, GroundTruthVideo: video}
		if imageRaw := pickValue(row, imageKeys); imageRaw != "" {
			image := resolvePath(imageRaw, baseDir)
			if fileutil.NonEmptyFile(image) {
				record.ImagePath = image
			}
		}
		records = append(records, record)
	}
	return records, skipped, nil
}

// WriteRecords writes a canonical manifest as JSON lines.
func WriteRecords(path string, records []Record) error {
	return writeJSONLines(path, len(records), func(i int) any { return records[i] })
}

// ReadTaskRows loads a task manifest, ignoring blank lines.
func ReadTaskRows(path string) ([]TaskRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rows []TaskRow
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row TaskRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("%s: invalid JSON on line %d: %w", path, lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteTaskRows writes a task manifest as JSON lines. Row order is preserved
// so repeated planning produces byte-identical files.
func WriteTaskRows(path string, rows []TaskRow) error {
	return writeJSONLines(path, len(rows), func(i int) any { return rows[i] })
}

// CountRows counts non-blank lines of a manifest file without decoding them.
func CountRows(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func writeJSONLines(path string, n int, row func(int) any) error {
	if err := fileutil.EnsureParent(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	for i := 0; i < n; i++ {
		if err := encoder.Encode(row(i)); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// readRawRows loads a .jsonl or .csv file into string maps for the builders.
func readRawRows(path string) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return readJSONLRows(path)
	case ".csv":
		return readCSVRows(path)
	default:
		return nil, fmt.Errorf("unsupported manifest extension %q (use .jsonl or .csv)", filepath.Ext(path))
	}
}

func readJSONLRows(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rows []map[string]string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			return nil, fmt.Errorf("%s: invalid JSON on line %d: %w", path, lineNo, err)
		}
		row := make(map[string]string, len(payload))
		for key, value := range payload {
			if value == nil {
				row[key] = ""
				continue
			}
			row[key] = fmt.Sprint(value)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func readCSVRows(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	var rows []map[string]string
	for {
		fields, err := reader.Read()
		if err != nil {
			break
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func pickValue(row map[string]string, keys []string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(row[key]); value != "" {
			return value
		}
	}
	return ""
}

func resolvePath(raw, baseDir string) string {
	path := strings.TrimSpace(raw)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}
