package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExecution(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateExecution() error {
	switch c.Execution.MissingCheckpoint {
	case "skip", "fail":
	default:
		return fmt.Errorf("execution.missing_checkpoint_action must be \"skip\" or \"fail\", got %q", c.Execution.MissingCheckpoint)
	}
	if c.Execution.MaxSamples < 0 {
		return errors.New("execution.max_samples must be >= 0 (0 means unbounded)")
	}
	if c.Execution.HeartbeatInterval <= 0 {
		return errors.New("execution.heartbeat_interval must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.CPUs < 0 {
		return errors.New("scheduler.cpus must be >= 0")
	}
	if c.Scheduler.MemoryGB < 0 {
		return errors.New("scheduler.memory_gb must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
