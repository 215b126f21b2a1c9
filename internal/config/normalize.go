package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWhisper(); err != nil {
		return err
	}
	c.normalizeIntake()
	c.normalizePerformance()
	c.normalizeExport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SCRIBE_STAGING_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StagingDir = strings.TrimSpace(value)
	}
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.InboxDir, err = expandPath(strings.TrimSpace(c.Paths.InboxDir)); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SCRIBE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWhisper() error {
	c.Whisper.Binary = strings.TrimSpace(c.Whisper.Binary)
	if c.Whisper.Binary == "" {
		c.Whisper.Binary = defaultWhisperBinary
	}
	if strings.TrimSpace(c.Whisper.ModelDir) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Whisper.ModelDir))
		if err != nil {
			return fmt.Errorf("whisper.model_dir: %w", err)
		}
		c.Whisper.ModelDir = expanded
	}
	c.Whisper.DefaultModel = strings.ToLower(strings.TrimSpace(c.Whisper.DefaultModel))
	if c.Whisper.DefaultModel == "" {
		c.Whisper.DefaultModel = defaultWhisperModel
	}
	c.Whisper.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Whisper.DefaultLanguage))
	if c.Whisper.DefaultLanguage == "" {
		c.Whisper.DefaultLanguage = defaultWhisperLanguage
	}
	c.Whisper.DefaultTask = strings.ToLower(strings.TrimSpace(c.Whisper.DefaultTask))
	if c.Whisper.DefaultTask == "" {
		c.Whisper.DefaultTask = defaultWhisperTask
	}
	c.Whisper.DefaultPreset = strings.ToLower(strings.TrimSpace(c.Whisper.DefaultPreset))
	if c.Whisper.DefaultPreset == "" {
		c.Whisper.DefaultPreset = defaultWhisperPreset
	}
	c.Whisper.Device = strings.ToLower(strings.TrimSpace(c.Whisper.Device))
	switch c.Whisper.Device {
	case "", "auto":
		c.Whisper.Device = defaultWhisperDevice
	case "gpu":
		c.Whisper.Device = "cuda"
	}
	if c.Whisper.TimeoutSeconds <= 0 {
		c.Whisper.TimeoutSeconds = defaultWhisperTimeout
	}
	return nil
}

func (c *Config) normalizeIntake() {
	if value, ok := os.LookupEnv("SCRIBE_MAX_FILE_SIZE_MB"); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
			c.Intake.MaxFileSizeMB = parsed
		}
	}
	if c.Intake.MaxFileSizeMB <= 0 {
		c.Intake.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if c.Intake.MinFileSizeKB <= 0 {
		c.Intake.MinFileSizeKB = defaultMinFileSizeKB
	}
	if c.Intake.MaxBatchFiles <= 0 {
		c.Intake.MaxBatchFiles = defaultMaxBatchFiles
	}
}

func (c *Config) normalizePerformance() {
	if c.Performance.MaxConcurrentJobs <= 0 {
		c.Performance.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Performance.TempFileMaxAgeHours < 0 {
		c.Performance.TempFileMaxAgeHours = 0
	}
}

func (c *Config) normalizeExport() {
	formats := make([]string, 0, len(c.Export.Formats))
	seen := make(map[string]struct{}, len(c.Export.Formats))
	for _, format := range c.Export.Formats {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	if len(formats) == 0 {
		formats = []string{"txt"}
	}
	c.Export.Formats = formats
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("SCRIBE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
