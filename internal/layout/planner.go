// Package layout expands a canonical manifest into the per-model/per-task run
// tree: shared sample assets materialized once, plus one task manifest per
// (model, dataset, task) slice. Planning is idempotent; re-running against an
// unchanged manifest reproduces byte-identical task manifests and leaves
// already-materialized assets alone.
package layout

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"vidsweep/internal/ffmpeg"
	"vidsweep/internal/fileutil"
	"vidsweep/internal/logging"
	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
	"vidsweep/internal/services"
)

// Planner prepares the run layout for one dataset.
type Planner struct {
	Run               runs.Run
	Dataset           string
	Models            []string
	Tasks             []runs.Task
	Mode              fileutil.Mode
	Extractor         *ffmpeg.Extractor
	ExtractFirstFrame bool
	StrictI2V         bool
	Logger            *slog.Logger
}

// SampleAssets records the materialized locations of one sample's shared files.
type SampleAssets struct {
	SampleID         string
	Prompt           string
	PromptPath       string
	GroundTruthVideo string
	ImagePath        string
	MetadataPath     string
}

// TaskSummary describes one slice's planned manifest.
type TaskSummary struct {
	Model        string   `json:"model"`
	Dataset      string   `json:"dataset"`
	Task         string   `json:"task"`
	NumSamples   int      `json:"num_samples"`
	SkippedI2V   []string `json:"skipped_i2v_samples"`
	ManifestPath string   `json:"manifest_path"`
	CreatedUTC   string   `json:"created_utc"`
}

// Summary describes one planning invocation.
type Summary struct {
	RunRoot    string   `json:"run_root"`
	Dataset    string   `json:"dataset"`
	Models     []string `json:"models"`
	Tasks      []string `json:"tasks"`
	NumSamples int      `json:"num_samples"`
	Mode       string   `json:"materialize_mode"`
	CreatedUTC string   `json:"created_utc"`

	TaskSummaries []TaskSummary `json:"-"`
}

// Plan materializes shared assets for every record and writes one task
// manifest per (model, task) pair. A run-root lock guards against concurrent
// planner invocations.
func (p *Planner) Plan(ctx context.Context, records []manifest.Record) (Summary, error) {
	logger := logging.NewComponentLogger(p.Logger, "layout")

	if len(records) == 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "layout", "plan", "manifest has no valid rows", nil)
	}
	if len(p.Models) == 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "layout", "plan", "no models provided", nil)
	}
	if len(p.Tasks) == 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "layout", "plan", "no tasks provided", nil)
	}

	if err := os.MkdirAll(p.Run.Root, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create run root: %w", err)
	}

	lock := flock.New(p.Run.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire planner lock: %w", err)
	}
	if !locked {
		return Summary{}, services.Wrap(services.ErrTransient, "layout", "plan", "another planner holds the run lock", nil)
	}
	defer func() { _ = lock.Unlock() }()

	assets, err := p.prepareSharedAssets(ctx, records, logger)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		RunRoot:    p.Run.Root,
		Dataset:    p.Dataset,
		Models:     p.Models,
		Tasks:      taskStrings(p.Tasks),
		NumSamples: len(assets),
		Mode:       string(p.Mode),
		CreatedUTC: time.Now().UTC().Format(time.RFC3339),
	}

	for _, model := range p.Models {
		for _, task := range p.Tasks {
			taskSummary, err := p.buildTaskLayout(model, task, assets)
			if err != nil {
				return Summary{}, err
			}
			summary.TaskSummaries = append(summary.TaskSummaries, taskSummary)
			logger.Info("planned slice",
				logging.String(logging.FieldModel, model),
				logging.String(logging.FieldTask, string(task)),
				logging.Int("rows", taskSummary.NumSamples),
				logging.Int("skipped_i2v", len(taskSummary.SkippedI2V)),
			)
		}
	}

	if err := fileutil.WriteJSON(filepath.Join(p.Run.Root, "layout_summary.json"), summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func (p *Planner) prepareSharedAssets(ctx context.Context, records []manifest.Record, logger *slog.Logger) ([]SampleAssets, error) {
	assets := make([]SampleAssets, 0, len(records))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sampleDir := p.Run.SampleDir(p.Dataset, record.SampleID)
		if err := os.MkdirAll(sampleDir, 0o755); err != nil {
			return nil, fmt.Errorf("create sample dir: %w", err)
		}

		gtExt := filepath.Ext(record.GroundTruthVideo)
		if gtExt == "" {
			gtExt = ".mp4"
		}
		gtDst := filepath.Join(sampleDir, "ground_truth"+gtExt)
		if err := fileutil.Materialize(record.GroundTruthVideo, gtDst, p.Mode); err != nil {
			return nil, services.Wrap(services.ErrTransient, "layout", "materialize ground truth", record.SampleID, err)
		}

		promptPath := filepath.Join(sampleDir, "prompt.txt")
		if err := fileutil.WriteText(promptPath, record.Prompt+"\n"); err != nil {
			return nil, err
		}

		imagePath, err := p.resolveSampleImage(ctx, record, sampleDir, gtDst, logger)
		if err != nil {
			return nil, err
		}

		metadataPath := filepath.Join(sampleDir, "sample.json")
		if !fileutil.NonEmptyFile(metadataPath) {
			metadata := map[string]any{
				"sample_id":                 record.SampleID,
				"prompt":                    record.Prompt,
				"source_ground_truth_video": record.GroundTruthVideo,
				"source_image":              record.ImagePath,
				"ground_truth_video":        gtDst,
				"input_image":               imagePath,
				"created_utc":               time.Now().UTC().Format(time.RFC3339),
			}
			if err := fileutil.WriteJSON(metadataPath, metadata); err != nil {
				return nil, err
			}
		}

		assets = append(assets, SampleAssets{
			SampleID:         record.SampleID,
			Prompt:           record.Prompt,
			PromptPath:       promptPath,
			GroundTruthVideo: gtDst,
			ImagePath:        imagePath,
			MetadataPath:     metadataPath,
		})
	}
	return assets, nil
}

// resolveSampleImage materializes the explicit conditioning image when the
// manifest supplies one, otherwise derives the ground-truth first frame. A
// failed derivation drops the sample from i2v manifests unless StrictI2V.
func (p *Planner) resolveSampleImage(ctx context.Context, record manifest.Record, sampleDir, gtDst string, logger *slog.Logger) (string, error) {
	if record.ImagePath != "" {
		imgExt := filepath.Ext(record.ImagePath)
		if imgExt == "" {
			imgExt = ".png"
		}
		dst := filepath.Join(sampleDir, "input_image"+imgExt)
		if err := fileutil.Materialize(record.ImagePath, dst, p.Mode); err != nil {
			return "", services.Wrap(services.ErrTransient, "layout", "materialize image", record.SampleID, err)
		}
		return dst, nil
	}

	if !p.ExtractFirstFrame {
		if p.StrictI2V {
			return "", services.Wrap(services.ErrValidation, "layout", "resolve image",
				fmt.Sprintf("sample %q has no image and first-frame extraction is disabled", record.SampleID), nil)
		}
		return "", nil
	}

	extractor := p.Extractor
	if extractor == nil {
		extractor = ffmpeg.NewExtractor()
	}
	dst := filepath.Join(sampleDir, "input_image.png")
	if err := extractor.FirstFrame(ctx, gtDst, dst); err != nil {
		if p.StrictI2V {
			return "", err
		}
		logger.Warn("first-frame extraction failed; sample will be dropped from i2v manifests",
			logging.String(logging.FieldSampleID, record.SampleID),
			logging.Error(err),
		)
		return "", nil
	}
	return dst, nil
}

func (p *Planner) buildTaskLayout(model string, task runs.Task, assets []SampleAssets) (TaskSummary, error) {
	slice := runs.Slice{Model: model, Dataset: p.Dataset, Task: task}

	dirs := []string{
		p.Run.InputsDir(slice),
		p.Run.OutputsDir(slice),
		p.Run.LogsDir(slice),
		p.Run.GroundTruthDir(slice),
		p.Run.PromptsDir(slice),
	}
	if task == runs.TaskI2V {
		dirs = append(dirs, p.Run.ImagesDir(slice))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return TaskSummary{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	rows := make([]manifest.TaskRow, 0, len(assets))
	var skippedI2V []string

	for _, sample := range assets {
		promptDst := filepath.Join(p.Run.PromptsDir(slice), sample.SampleID+".txt")
		if err := fileutil.Materialize(sample.PromptPath, promptDst, p.Mode); err != nil {
			return TaskSummary{}, err
		}

		gtDst := filepath.Join(p.Run.GroundTruthDir(slice), sample.SampleID+filepath.Ext(sample.GroundTruthVideo))
		if err := fileutil.Materialize(sample.GroundTruthVideo, gtDst, p.Mode); err != nil {
			return TaskSummary{}, err
		}

		row := manifest.TaskRow{
			SampleID:         sample.SampleID,
			Task:             string(task),
			Prompt:           sample.Prompt,
			PromptPath:       promptDst,
			GroundTruthVideo: gtDst,
			OutputVideo:      p.Run.OutputPath(slice, sample.SampleID),
			MetadataPath:     sample.MetadataPath,
		}

		if task == runs.TaskI2V {
			if sample.ImagePath == "" {
				skippedI2V = append(skippedI2V, sample.SampleID)
				continue
			}
			imageDst := filepath.Join(p.Run.ImagesDir(slice), sample.SampleID+filepath.Ext(sample.ImagePath))
			if err := fileutil.Materialize(sample.ImagePath, imageDst, p.Mode); err != nil {
				return TaskSummary{}, err
			}
			row.ImagePath = imageDst
		}

		rows = append(rows, row)
	}

	manifestPath := p.Run.TaskManifestPath(slice)
	if err := manifest.WriteTaskRows(manifestPath, rows); err != nil {
		return TaskSummary{}, err
	}

	taskSummary := TaskSummary{
		Model:        model,
		Dataset:      p.Dataset,
		Task:         string(task),
		NumSamples:   len(rows),
		SkippedI2V:   skippedI2V,
		ManifestPath: manifestPath,
		CreatedUTC:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := fileutil.WriteJSON(filepath.Join(p.Run.TaskDir(slice), "layout_summary.json"), taskSummary); err != nil {
		return TaskSummary{}, err
	}
	return taskSummary, nil
}

func taskStrings(tasks []runs.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, string(task))
	}
	return out
}
