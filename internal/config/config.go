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

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	InboxDir   string `toml:"inbox_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Whisper contains settings for the speech-recognition engine.
type Whisper struct {
	Binary          string `toml:"binary"`
	ModelDir        string `toml:"model_dir"`
	DefaultModel    string `toml:"default_model"`
	DefaultLanguage string `toml:"default_language"`
	DefaultTask     string `toml:"default_task"`
	DefaultPreset   string `toml:"default_preset"`
	// Device forces the compute device: "auto" probes the host, "cpu" and
	// "cuda" skip probing.
	Device         string `toml:"device"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Intake contains upload validation limits.
type Intake struct {
	MaxFileSizeMB int `toml:"max_file_size_mb"`
	MinFileSizeKB int `toml:"min_file_size_kb"`
	MaxBatchFiles int `toml:"max_batch_files"`
}

// Performance contains concurrency and housekeeping settings.
type Performance struct {
	MaxConcurrentJobs    int  `toml:"max_concurrent_jobs"`
	TempFileMaxAgeHours  int  `toml:"temp_file_max_age_hours"`
	AutoCleanupTempFiles bool `toml:"auto_cleanup_temp_files"`
}

// Export contains output format settings.
type Export struct {
	Formats []string `toml:"formats"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: staging/output/log/inbox directories and API bind address
//   - Whisper: recognition engine binary, defaults, and device selection
//   - Intake: upload size limits and batch size
//   - Performance: worker pool size and temp file cleanup
//   - Export: transcript formats written by batch and inbox jobs
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Whisper     Whisper     `toml:"whisper"`
	Intake      Intake      `toml:"intake"`
	Performance Performance `toml:"performance"`
	Export      Export      `toml:"export"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/scribe/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for CLI and daemon operation.
// The inbox directory is only created when the watcher is configured.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if err := os.MkdirAll(c.Paths.InboxDir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory %q: %w", c.Paths.InboxDir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the job history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// LockPath returns the location of the daemon single-instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "scribed.lock")
}

// MaxFileSizeBytes returns the configured upload ceiling in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Intake.MaxFileSizeMB) * 1024 * 1024
}

// MinFileSizeBytes returns the configured upload floor in bytes.
func (c *Config) MinFileSizeBytes() int64 {
	return int64(c.Intake.MinFileSizeKB) * 1024
}

// FFmpegBinary returns the ffmpeg executable name used by the whisper CLI for decoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
