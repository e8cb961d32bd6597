package config

const (
	defaultRunsDir           = "~/vidsweep/runs"
	defaultLogDir            = "~/.local/share/vidsweep/logs"
	defaultFFmpegBin         = "ffmpeg"
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
	defaultJobPrefix         = "vidsweep"
	defaultGres              = "gpu:1"
	defaultCPUs              = 8
	defaultMemoryGB          = 64
	defaultWalltime          = "12:00:00"
	defaultSbatchBin         = "sbatch"
	defaultSqueueBin         = "squeue"
	defaultHeartbeatInterval = 60
	defaultMissingCheckpoint = "fail"

	defaultWanSize        = "1280*720"
	defaultWanSteps       = 40
	defaultLVPWidth       = 1280
	defaultLVPHeight      = 720
	defaultLVPNumFrames   = 81
	defaultLVPFPS         = 16
	defaultLVPGuidance    = 5.0
	defaultLVPImgGuideI2V = 3.0
	defaultLVPImgGuideT2V = 0.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RunsDir:   defaultRunsDir,
			LogDir:    defaultLogDir,
			FFmpegBin: defaultFFmpegBin,
		},
		Backends: Backends{
			Wan22: Backend{
				PythonBin:   "python",
				Size:        defaultWanSize,
				SampleSteps: defaultWanSteps,
			},
			Wan21: Backend{
				PythonBin:   "python",
				Size:        defaultWanSize,
				SampleSteps: defaultWanSteps,
			},
			LVP: Backend{
				PythonBin:        "python",
				Width:            defaultLVPWidth,
				Height:           defaultLVPHeight,
				NumFrames:        defaultLVPNumFrames,
				FPS:              defaultLVPFPS,
				GuidanceScale:    defaultLVPGuidance,
				ImageGuidanceI2V: defaultLVPImgGuideI2V,
				ImageGuidanceT2V: defaultLVPImgGuideT2V,
			},
		},
		Scheduler: Scheduler{
			Gres:      defaultGres,
			CPUs:      defaultCPUs,
			MemoryGB:  defaultMemoryGB,
			Walltime:  defaultWalltime,
			JobPrefix: defaultJobPrefix,
			SbatchBin: defaultSbatchBin,
			SqueueBin: defaultSqueueBin,
		},
		Execution: Execution{
			MaxSamples:        0,
			SkipExisting:      true,
			ContinueOnError:   true,
			MissingCheckpoint: defaultMissingCheckpoint,
			HeartbeatInterval: defaultHeartbeatInterval,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
