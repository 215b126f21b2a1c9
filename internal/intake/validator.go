package intake

import (
	"fmt"
	"io"
	"strings"

	"scribe/internal/config"
)

// Descriptor exposes an incoming file the way upload widgets and multipart
// forms do.
type Descriptor interface {
	Name() string
	Size() int64
	Type() string
	Open() (io.ReadCloser, error)
}

// Validation is the outcome of Validate. Error is empty when Valid.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func invalid(format string, args ...any) Validation {
	return Validation{Valid: false, Error: fmt.Sprintf(format, args...)}
}

// Limits bounds accepted file sizes in bytes.
type Limits struct {
	MinBytes int64
	MaxBytes int64
}

// DefaultLimits matches the configuration defaults.
func DefaultLimits() Limits {
	return Limits{MinBytes: 1024, MaxBytes: 500 * 1024 * 1024}
}

// LimitsFromConfig reads the intake section of cfg.
func LimitsFromConfig(cfg *config.Config) Limits {
	if cfg == nil {
		return DefaultLimits()
	}
	return Limits{MinBytes: cfg.MinFileSizeBytes(), MaxBytes: cfg.MaxFileSizeBytes()}
}

// Validator checks descriptors against size, type and extension rules.
type Validator struct {
	limits Limits
}

// NewValidator returns a validator enforcing limits. Non-positive bounds fall
// back to the defaults.
func NewValidator(limits Limits) *Validator {
	defaults := DefaultLimits()
	if limits.MinBytes <= 0 {
		limits.MinBytes = defaults.MinBytes
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = defaults.MaxBytes
	}
	return &Validator{limits: limits}
}

// Limits returns the enforced bounds.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate runs every check in order and stops at the first failure.
func (v *Validator) Validate(d Descriptor) Validation {
	if d == nil {
		return invalid("no file provided")
	}
	if res := checkName(d.Name()); !res.Valid {
		return res
	}
	if res := v.CheckSize(d.Size()); !res.Valid {
		return res
	}
	return checkType(d.Name(), d.Type())
}

// ValidateHeader runs every check that needs no file content: name, MIME
// type and extension. Streaming uploads use it before writing any bytes and
// CheckSize once the length is known.
func (v *Validator) ValidateHeader(name, mimeType string) Validation {
	if res := checkName(name); !res.Valid {
		return res
	}
	return checkType(name, mimeType)
}

// CheckSize reports whether size lies within the configured bounds.
func (v *Validator) CheckSize(size int64) Validation {
	if size < v.limits.MinBytes {
		return invalid("file too small (minimum: %dKB)", v.limits.MinBytes/1024)
	}
	if size > v.limits.MaxBytes {
		return invalid("file too large (maximum: %dMB)", v.limits.MaxBytes/(1024*1024))
	}
	return Validation{Valid: true}
}

func checkName(name string) Validation {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("file name is empty")
	}
	if len(name) > MaxNameLength {
		return invalid("file name too long (maximum: %d characters)", MaxNameLength)
	}
	return Validation{Valid: true}
}

func checkType(name, mimeType string) Validation {
	if mime := normalizeMIME(mimeType); mime != "" {
		if _, ok := mimeExtensions[mime]; !ok {
			return invalid("unsupported file type: %s", mimeType)
		}
	}
	ext := Extension(strings.TrimSpace(name))
	if ext != "" {
		if _, ok := supportedExtensions[ext]; !ok {
			return invalid("unsupported extension: %s", ext)
		}
	}
	if _, denied := deniedExtensions[ext]; denied {
		return invalid("file type not allowed for security reasons")
	}
	return Validation{Valid: true}
}
