package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/services"
)

// ChunkSize bounds the buffer used while copying upload bytes to disk.
const ChunkSize = 8192

const stageTimestampLayout = "20060102_150405"

// Stager copies validated descriptors into the staging directory.
type Stager struct {
	dir       string
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewStager builds a stager writing under dir.
func NewStager(dir string, validator *Validator, logger *slog.Logger) *Stager {
	if validator == nil {
		validator = NewValidator(DefaultLimits())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stager{
		dir:       dir,
		validator: validator,
		logger:    logging.NewComponentLogger(logger, "intake"),
		now:       time.Now,
	}
}

// Dir returns the staging directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage validates d and writes its bytes to a fresh file under the staging
// directory. The caller owns the returned path.
func (s *Stager) Stage(ctx context.Context, d Descriptor) (string, error) {
	if result := s.validator.Validate(d); !result.Valid {
		return "", services.Wrap(services.ErrValidation, "intake", "validate", result.Error, nil)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "intake", "create staging dir", s.dir, err)
	}

	src, err := d.Open()
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "intake", "open upload", d.Name(), err)
	}
	defer src.Close()

	target, written, err := s.write(d.Name(), d.Type(), src)
	if err != nil {
		return "", err
	}
	s.logStaged(ctx, d.Name(), target, written)
	return target, nil
}

// StageStream stages an upload whose length is unknown until it has been
// read, such as a multipart part. Name and type are checked before anything
// is written; the size bounds once the copy ends. At most one byte past the
// maximum is read, and an out-of-bounds file is removed again.
func (s *Stager) StageStream(ctx context.Context, name, mimeType string, r io.Reader) (string, int64, error) {
	if result := s.validator.ValidateHeader(name, mimeType); !result.Valid {
		return "", 0, services.Wrap(services.ErrValidation, "intake", "validate", result.Error, nil)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, services.Wrap(services.ErrConfiguration, "intake", "create staging dir", s.dir, err)
	}

	limited := io.LimitReader(r, s.validator.Limits().MaxBytes+1)
	target, written, err := s.write(name, mimeType, limited)
	if err != nil {
		return "", written, err
	}
	if result := s.validator.CheckSize(written); !result.Valid {
		_ = os.Remove(target)
		return "", written, services.Wrap(services.ErrValidation, "intake", "validate", result.Error, nil)
	}
	s.logStaged(ctx, name, target, written)
	return target, written, nil
}

// write copies src to a new staged file named for name/mimeType. The file
// is removed again on error or when nothing was written.
func (s *Stager) write(name, mimeType string, src io.Reader) (string, int64, error) {
	ext := Extension(name)
	if ext == "" {
		ext = ExtensionForMIME(mimeType)
	}
	target := filepath.Join(s.dir, StagedName(s.now(), ext))

	written, err := copyChunks(target, name, src)
	if err != nil {
		_ = os.Remove(target)
		return "", written, err
	}
	if written == 0 {
		_ = os.Remove(target)
		return "", 0, services.Wrap(services.ErrValidation, "intake", "stage", "staged file is empty", nil)
	}
	return target, written, nil
}

func (s *Stager) logStaged(ctx context.Context, source, target string, written int64) {
	logging.WithContext(ctx, s.logger).Info("staged upload",
		logging.String("source", source),
		logging.String("path", target),
		logging.Bytes("size", written),
		logging.String(logging.FieldEventType, "upload_staged"),
	)
}

func copyChunks(target, name string, src io.Reader) (int64, error) {
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "intake", "create staged file", target, err)
	}

	var written int64
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				_ = dst.Close()
				return written, services.Wrap(services.ErrTransient, "intake", "write staged file", target, err)
			}
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = dst.Close()
			return written, services.Wrap(services.ErrTransient, "intake", "read upload", name, readErr)
		}
	}
	if err := dst.Close(); err != nil {
		return written, services.Wrap(services.ErrTransient, "intake", "close staged file", target, err)
	}
	return written, nil
}

// StagedName returns a collision-free staging file name carrying ext.
func StagedName(now time.Time, ext string) string {
	return fmt.Sprintf("%s%s_%s%s", StagePrefix, now.Format(stageTimestampLayout), uuid.NewString(), ext)
}

// ExtensionForMIME guesses an extension for a MIME type, preferring the
// supported map, then the system MIME table, then ".unknown".
func ExtensionForMIME(mimeType string) string {
	normalized := normalizeMIME(mimeType)
	if exts, ok := mimeExtensions[normalized]; ok {
		return exts[0]
	}
	if normalized != "" {
		if exts, err := mime.ExtensionsByType(normalized); err == nil && len(exts) > 0 {
			return strings.ToLower(exts[0])
		}
	}
	return ".unknown"
}
