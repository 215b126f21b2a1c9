package config

import (
	"errors"
	"fmt"
)

var (
	validModels  = []string{"tiny", "base", "small", "medium", "large-v2"}
	validTasks   = []string{"transcribe", "translate"}
	validDevices = []string{"auto", "cpu", "cuda"}
	validFormats = []string{"txt", "srt", "vtt", "json"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWhisper(); err != nil {
		return err
	}
	if err := c.validateIntake(); err != nil {
		return err
	}
	if err := c.validatePerformance(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWhisper() error {
	if !contains(validModels, c.Whisper.DefaultModel) {
		return fmt.Errorf("whisper.default_model %q is not one of %v", c.Whisper.DefaultModel, validModels)
	}
	if !contains(validTasks, c.Whisper.DefaultTask) {
		return fmt.Errorf("whisper.default_task %q is not one of %v", c.Whisper.DefaultTask, validTasks)
	}
	if !contains(validDevices, c.Whisper.Device) {
		return fmt.Errorf("whisper.device %q is not one of %v", c.Whisper.Device, validDevices)
	}
	if c.Whisper.TimeoutSeconds <= 0 {
		return errors.New("whisper.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateIntake() error {
	if c.Intake.MaxFileSizeMB <= 0 {
		return errors.New("intake.max_file_size_mb must be positive")
	}
	if c.MinFileSizeBytes() >= c.MaxFileSizeBytes() {
		return errors.New("intake.min_file_size_kb must be smaller than intake.max_file_size_mb")
	}
	if c.Intake.MaxBatchFiles <= 0 {
		return errors.New("intake.max_batch_files must be positive")
	}
	return nil
}

func (c *Config) validatePerformance() error {
	if c.Performance.MaxConcurrentJobs <= 0 {
		return errors.New("performance.max_concurrent_jobs must be positive")
	}
	if c.Performance.TempFileMaxAgeHours < 0 {
		return errors.New("performance.temp_file_max_age_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateExport() error {
	for _, format := range c.Export.Formats {
		if !contains(validFormats, format) {
			return fmt.Errorf("export.formats: unsupported format %q (expected one of %v)", format, validFormats)
		}
	}
	return nil
}

func contains(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
