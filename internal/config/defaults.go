package config

const (
	defaultStagingDir           = "~/.local/share/scribe/staging"
	defaultOutputDir            = "~/.local/share/scribe/outputs"
	defaultLogDir               = "~/.local/share/scribe/logs"
	defaultAPIBind              = "127.0.0.1:7491"
	defaultWhisperBinary        = "whisper"
	defaultWhisperModel         = "base"
	defaultWhisperLanguage      = "auto"
	defaultWhisperTask          = "transcribe"
	defaultWhisperPreset        = "balanced"
	defaultWhisperDevice        = "auto"
	defaultWhisperTimeout       = 3600
	defaultMaxFileSizeMB        = 500
	defaultMinFileSizeKB        = 1
	defaultMaxBatchFiles        = 20
	defaultMaxConcurrentJobs    = 2
	defaultTempFileMaxAgeHours  = 24
	defaultAutoCleanupTempFiles = true
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Whisper: Whisper{
			Binary:          defaultWhisperBinary,
			DefaultModel:    defaultWhisperModel,
			DefaultLanguage: defaultWhisperLanguage,
			DefaultTask:     defaultWhisperTask,
			DefaultPreset:   defaultWhisperPreset,
			Device:          defaultWhisperDevice,
			TimeoutSeconds:  defaultWhisperTimeout,
		},
		Intake: Intake{
			MaxFileSizeMB: defaultMaxFileSizeMB,
			MinFileSizeKB: defaultMinFileSizeKB,
			MaxBatchFiles: defaultMaxBatchFiles,
		},
		Performance: Performance{
			MaxConcurrentJobs:    defaultMaxConcurrentJobs,
			TempFileMaxAgeHours:  defaultTempFileMaxAgeHours,
			AutoCleanupTempFiles: defaultAutoCleanupTempFiles,
		},
		Export: Export{
			Formats: []string{"txt", "srt"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
