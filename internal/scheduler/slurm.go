package scheduler

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"vidsweep/internal/config"
	"vidsweep/internal/services"
)

var commandContext = exec.CommandContext

// Slurm is the sbatch/squeue-backed scheduler client.
type Slurm struct {
	settings config.Scheduler
}

// NewSlurm builds a client from the scheduler config section.
func NewSlurm(settings config.Scheduler) *Slurm {
	if settings.SbatchBin == "" {
		settings.SbatchBin = "sbatch"
	}
	if settings.SqueueBin == "" {
		settings.SqueueBin = "squeue"
	}
	return &Slurm{settings: settings}
}

func (s *Slurm) submitArgs(req Request) []string {
	args := []string{"--parsable", "--job-name", req.Name}
	if req.Partition != "" {
		args = append(args, "--partition", req.Partition)
	}
	if req.Account != "" {
		args = append(args, "--account", req.Account)
	}
	if req.Gres != "" {
		args = append(args, "--gres", req.Gres)
	}
	if req.CPUs > 0 {
		args = append(args, "--cpus-per-task", strconv.Itoa(req.CPUs))
	}
	if req.MemoryGB > 0 {
		args = append(args, "--mem", fmt.Sprintf("%dG", req.MemoryGB))
	}
	if req.Walltime != "" {
		args = append(args, "--time", req.Walltime)
	}
	if req.LogPath != "" {
		args = append(args, "--output", req.LogPath)
	}
	args = append(args, "--wrap", strings.Join(req.Command, " "))
	return args
}

// Submit queues one job and returns its scheduler-assigned id.
func (s *Slurm) Submit(ctx context.Context, req Request) (Job, error) {
	if req.Name == "" {
		return Job{}, services.Wrap(services.ErrValidation, "scheduler", "submit", "job name required", nil)
	}
	if len(req.Command) == 0 {
		return Job{}, services.Wrap(services.ErrValidation, "scheduler", "submit", "job command required", nil)
	}

	cmd := commandContext(ctx, s.settings.SbatchBin, s.submitArgs(req)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := fmt.Sprintf("submit %s", req.Name)
		if len(output) > 0 {
			detail = fmt.Sprintf("%s: %s", detail, strings.TrimSpace(string(output)))
		}
		return Job{}, services.Wrap(services.ErrExternalTool, "scheduler", "submit", detail, err)
	}

	// --parsable prints "jobid" or "jobid;cluster".
	id := strings.TrimSpace(string(output))
	if i := strings.IndexByte(id, ';'); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return Job{}, services.Wrap(services.ErrExternalTool, "scheduler", "submit",
			fmt.Sprintf("sbatch returned no job id for %s", req.Name), nil)
	}
	return Job{ID: id, Name: req.Name}, nil
}

// Queue lists pending and running jobs matching the filter.
func (s *Slurm) Queue(ctx context.Context, filter Filter) ([]JobStatus, error) {
	args := []string{"--noheader", "--format", "%i|%j|%T|%P|%M|%R"}
	if filter.User != "" {
		args = append(args, "--user", filter.User)
	}

	cmd := commandContext(ctx, s.settings.SqueueBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := "list queue"
		if len(output) > 0 {
			detail = fmt.Sprintf("%s: %s", detail, strings.TrimSpace(string(output)))
		}
		return nil, services.Wrap(services.ErrExternalTool, "scheduler", "queue", detail, err)
	}

	var jobs []JobStatus
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "|", 6)
		if len(fields) < 6 {
			continue
		}
		status := JobStatus{
			ID:        strings.TrimSpace(fields[0]),
			Name:      strings.TrimSpace(fields[1]),
			State:     strings.TrimSpace(fields[2]),
			Partition: strings.TrimSpace(fields[3]),
			Elapsed:   strings.TrimSpace(fields[4]),
			Reason:    strings.TrimSpace(fields[5]),
		}
		if filter.NamePrefix != "" && !strings.HasPrefix(status.Name, filter.NamePrefix) {
			continue
		}
		jobs = append(jobs, status)
	}
	return jobs, nil
}
