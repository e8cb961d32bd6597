package backends

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"vidsweep/internal/config"
	"vidsweep/internal/fileutil"
	"vidsweep/internal/runs"
	"vidsweep/internal/services"
)

var commandContext = exec.CommandContext

// wanBackend drives the Wan generation script one sample at a time. wan22 and
// wan21 share the invocation shape and differ only in the task variant names
// their scripts accept.
type wanBackend struct {
	kind     Kind
	settings config.Backend
}

func newWan(kind Kind, settings config.Backend) *wanBackend {
	return &wanBackend{kind: kind, settings: settings}
}

func (b *wanBackend) Kind() Kind               { return b.kind }
func (b *wanBackend) CheckpointDir() string    { return b.settings.CheckpointDir }
func (b *wanBackend) Granularity() Granularity { return PerSample }

func (b *wanBackend) taskVariant(task runs.Task) string {
	if b.kind == KindWan22 {
		if task == runs.TaskI2V {
			return "i2v-A14B"
		}
		return "t2v-A14B"
	}
	if task == runs.TaskI2V {
		return "i2v-14B"
	}
	return "t2v-14B"
}

func (b *wanBackend) RunSample(ctx context.Context, inv Invocation) error {
	row := inv.Sample

	args := []string{
		b.settings.Script,
		"--task", b.taskVariant(inv.Slice.Task),
		"--size", b.settings.Size,
		"--ckpt_dir", b.settings.CheckpointDir,
		"--prompt", row.Prompt,
		"--save_file", row.OutputVideo,
	}
	if inv.Slice.Task == runs.TaskI2V {
		args = append(args, "--image", row.ImagePath)
	}
	if b.settings.SampleSteps > 0 {
		args = append(args, "--sample_steps", strconv.Itoa(b.settings.SampleSteps))
	}
	args = append(args, b.settings.ExtraArgs...)

	if err := fileutil.EnsureParent(row.OutputVideo); err != nil {
		return err
	}
	logFile, err := openLog(inv.LogPath)
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := commandContext(ctx, b.settings.PythonBin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, string(b.kind), "generate",
			fmt.Sprintf("sample %s failed, see %s", row.SampleID, inv.LogPath), err)
	}
	// Exit status is the only success signal here. A clean exit without an
	// output file is recorded on the done event and caught by reconciliation.
	return nil
}

func (b *wanBackend) RunSlice(ctx context.Context, invs []Invocation) ([]string, error) {
	return nil, services.Wrap(services.ErrValidation, string(b.kind), "generate",
		"per-sample backend does not support slice invocation", nil)
}

func openLog(path string) (*os.File, error) {
	if err := fileutil.EnsureParent(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "backends", "open log", path, err)
	}
	return file, nil
}
