package backends

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"vidsweep/internal/config"
	"vidsweep/internal/fileutil"
	"vidsweep/internal/runs"
	"vidsweep/internal/services"
)

var batchTableHeader = []string{
	"sample_id",
	"image",
	"caption",
	"output",
	"width",
	"height",
	"num_frames",
	"fps",
	"guidance_scale",
	"image_guidance_scale",
}

// lvpBackend drives the image-conditioned planner model. It consumes a whole
// slice at once: every pending row becomes a line of a CSV metadata table and
// a single subprocess generates the batch. t2v runs through the same path
// with the image guidance weakened to zero.
type lvpBackend struct {
	settings config.Backend
	run      runs.Run
}

func newLVP(settings config.Backend, run runs.Run) *lvpBackend {
	return &lvpBackend{settings: settings, run: run}
}

func (b *lvpBackend) Kind() Kind               { return KindLVP }
func (b *lvpBackend) CheckpointDir() string    { return b.settings.CheckpointDir }
func (b *lvpBackend) Granularity() Granularity { return PerSlice }

func (b *lvpBackend) RunSample(ctx context.Context, inv Invocation) error {
	return services.Wrap(services.ErrValidation, string(KindLVP), "generate",
		"batch backend does not support per-sample invocation", nil)
}

func (b *lvpBackend) imageGuidance(task runs.Task) float64 {
	if task == runs.TaskI2V {
		return b.settings.ImageGuidanceI2V
	}
	return b.settings.ImageGuidanceT2V
}

func (b *lvpBackend) writeBatchTable(path string, invs []Invocation) error {
	if err := fileutil.EnsureParent(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, string(KindLVP), "write batch table", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(batchTableHeader); err != nil {
		return services.Wrap(services.ErrExternalTool, string(KindLVP), "write batch table", path, err)
	}
	for _, inv := range invs {
		row := inv.Sample
		record := []string{
			row.SampleID,
			row.ImagePath,
			row.Prompt,
			row.OutputVideo,
			strconv.Itoa(b.settings.Width),
			strconv.Itoa(b.settings.Height),
			strconv.Itoa(b.settings.NumFrames),
			strconv.Itoa(b.settings.FPS),
			formatFloat(b.settings.GuidanceScale),
			formatFloat(b.imageGuidance(inv.Slice.Task)),
		}
		if err := writer.Write(record); err != nil {
			return services.Wrap(services.ErrExternalTool, string(KindLVP), "write batch table", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return services.Wrap(services.ErrExternalTool, string(KindLVP), "write batch table", path, err)
	}
	return nil
}

func (b *lvpBackend) RunSlice(ctx context.Context, invs []Invocation) ([]string, error) {
	if len(invs) == 0 {
		return nil, nil
	}
	slice := invs[0].Slice

	tablePath := b.run.BatchTablePath(slice)
	if err := b.writeBatchTable(tablePath, invs); err != nil {
		return nil, err
	}
	for _, inv := range invs {
		if err := fileutil.EnsureParent(inv.Sample.OutputVideo); err != nil {
			return nil, err
		}
	}

	args := []string{
		b.settings.Script,
		"--csv", tablePath,
		"--ckpt_dir", b.settings.CheckpointDir,
	}
	args = append(args, b.settings.ExtraArgs...)

	logPath := b.run.SliceLogPath(slice)
	logFile, err := openLog(logPath)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	cmd := commandContext(ctx, b.settings.PythonBin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, string(KindLVP), "generate",
			fmt.Sprintf("batch for %s failed, see %s", slice, logPath), err)
	}

	// The batch script exits zero even when individual rows fail, so
	// completion is judged per row by re-scanning the destinations.
	var missing []string
	for _, inv := range invs {
		if !fileutil.NonEmptyFile(inv.Sample.OutputVideo) {
			missing = append(missing, inv.Sample.SampleID)
		}
	}
	return missing, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
