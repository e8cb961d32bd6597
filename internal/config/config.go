package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and tool path configuration.
type Paths struct {
	RunsDir   string `toml:"runs_dir"`
	LogDir    string `toml:"log_dir"`
	FFmpegBin string `toml:"ffmpeg_bin"`
}

// Backend contains invocation settings for one external model backend.
type Backend struct {
	PythonBin     string   `toml:"python_bin"`
	Script        string   `toml:"script"`
	CheckpointDir string   `toml:"checkpoint_dir"`
	Size          string   `toml:"size"`
	SampleSteps   int      `toml:"sample_steps"`
	ExtraArgs     []string `toml:"extra_args"`

	// Batch-table parameters used by the lvp backend only.
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	NumFrames        int     `toml:"num_frames"`
	FPS              int     `toml:"fps"`
	GuidanceScale    float64 `toml:"guidance_scale"`
	ImageGuidanceI2V float64 `toml:"image_guidance_i2v"`
	ImageGuidanceT2V float64 `toml:"image_guidance_t2v"`
}

// Backends groups the supported model backends.
type Backends struct {
	Wan22 Backend `toml:"wan22"`
	Wan21 Backend `toml:"wan21"`
	LVP   Backend `toml:"lvp"`
}

// Scheduler contains batch scheduler submission settings.
type Scheduler struct {
	Partition string `toml:"partition"`
	Account   string `toml:"account"`
	Gres      string `toml:"gres"`
	CPUs      int    `toml:"cpus"`
	MemoryGB  int    `toml:"memory_gb"`
	Walltime  string `toml:"walltime"`
	JobPrefix string `toml:"job_prefix"`
	User      string `toml:"user"`
	SbatchBin string `toml:"sbatch_bin"`
	SqueueBin string `toml:"squeue_bin"`
}

// Execution contains the default slice execution policy.
type Execution struct {
	MaxSamples        int    `toml:"max_samples"`
	SkipExisting      bool   `toml:"skip_existing"`
	ContinueOnError   bool   `toml:"continue_on_error"`
	MissingCheckpoint string `toml:"missing_checkpoint_action"`
	HeartbeatInterval int    `toml:"heartbeat_interval"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the top-level vidsweep configuration.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Backends  Backends  `toml:"backends"`
	Scheduler Scheduler `toml:"scheduler"`
	Execution Execution `toml:"execution"`
	Logging   Logging   `toml:"logging"`
}

// BackendFor returns the backend settings for a model key.
func (c *Config) BackendFor(model string) (Backend, bool) {
	switch strings.ToLower(strings.TrimSpace(model)) {
	case "wan22":
		return c.Backends.Wan22, true
	case "wan21":
		return c.Backends.Wan21, true
	case "lvp":
		return c.Backends.LVP, true
	default:
		return Backend{}, false
	}
}

// DefaultConfigPath returns the expanded default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidsweep/config.toml")
}

// Load reads configuration from path (or the default location when path is
// empty), applies defaults, normalizes values, and validates the result. It
// returns the config, the resolved path, and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// EnsureDirectories creates the directories the CLI writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.RunsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the embedded sample configuration to target.
func CreateSample(target string) error {
	return os.WriteFile(target, []byte(sampleConfig), 0o644)
}

func resolveConfigPath(path string) (string, bool, error) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		expanded, err := expandPath(trimmed)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file not found: %s", expanded)
			}
			return "", false, err
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path is a directory: %s", expanded)
		}
		return expanded, true, nil
	}

	if env := strings.TrimSpace(os.Getenv("VIDSWEEP_CONFIG")); env != "" {
		return resolveConfigPath(env)
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if os.IsNotExist(err) {
			return defaultPath, false, nil
		}
		return "", false, err
	}
	return defaultPath, true, nil
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
