package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBackends(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeExecution()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RunsDir, err = expandPath(c.Paths.RunsDir); err != nil {
		return fmt.Errorf("paths.runs_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FFmpegBin) == "" {
		c.Paths.FFmpegBin = defaultFFmpegBin
	}
	return nil
}

func (c *Config) normalizeBackends() error {
	for _, entry := range []struct {
		name    string
		backend *Backend
	}{
		{"wan22", &c.Backends.Wan22},
		{"wan21", &c.Backends.Wan21},
		{"lvp", &c.Backends.LVP},
	} {
		b := entry.backend
		var err error
		if b.Script, err = expandPath(b.Script); err != nil {
			return fmt.Errorf("backends.%s.script: %w", entry.name, err)
		}
		if b.CheckpointDir, err = expandPath(b.CheckpointDir); err != nil {
			return fmt.Errorf("backends.%s.checkpoint_dir: %w", entry.name, err)
		}
		if strings.TrimSpace(b.PythonBin) == "" {
			b.PythonBin = "python"
		}
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	if strings.TrimSpace(c.Scheduler.JobPrefix) == "" {
		c.Scheduler.JobPrefix = defaultJobPrefix
	}
	if strings.TrimSpace(c.Scheduler.SbatchBin) == "" {
		c.Scheduler.SbatchBin = defaultSbatchBin
	}
	if strings.TrimSpace(c.Scheduler.SqueueBin) == "" {
		c.Scheduler.SqueueBin = defaultSqueueBin
	}
	if strings.TrimSpace(c.Scheduler.User) == "" {
		c.Scheduler.User = os.Getenv("USER")
	}
}

func (c *Config) normalizeExecution() {
	c.Execution.MissingCheckpoint = strings.ToLower(strings.TrimSpace(c.Execution.MissingCheckpoint))
	if c.Execution.MissingCheckpoint == "" {
		c.Execution.MissingCheckpoint = defaultMissingCheckpoint
	}
	if c.Execution.HeartbeatInterval <= 0 {
		c.Execution.HeartbeatInterval = defaultHeartbeatInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
