package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/device"
	"scribe/internal/enrich"
	"scribe/internal/export"
	"scribe/internal/history"
	"scribe/internal/intake"
	"scribe/internal/logging"
	"scribe/internal/models"
	"scribe/internal/services"
)

// Job is one unit of work for Run.
type Job struct {
	// ID is filled by Submit; Run assigns one when empty.
	ID string
	// Source is the display name recorded in history, usually the upload
	// or file name.
	Source string
	Path   string
	Request

	// OutputDir receives one file per format named after Source, with a
	// timestamp suffix when that name is already taken. Empty skips writing.
	OutputDir string
	Formats   []string
	// RemoveSource deletes Path once the job finishes, as for staged uploads.
	RemoveSource bool
}

// JobResult is what Run produced for a job.
type JobResult struct {
	JobID   string        `json:"job_id"`
	Result  enrich.Result `json:"result"`
	Model   models.ID     `json:"model"`
	Device  device.Kind   `json:"device"`
	Outputs []string      `json:"outputs,omitempty"`
}

// Submit records job as pending and returns it with its ID set. Without a
// store only the ID is assigned.
func (s *Service) Submit(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Source == "" {
		job.Source = filepath.Base(job.Path)
	}
	if s.store == nil {
		return job, nil
	}
	var size int64
	if info, err := os.Stat(job.Path); err == nil {
		size = info.Size()
	}
	_, err := s.store.Create(ctx, history.NewJob{
		ID:             job.ID,
		SourceName:     job.Source,
		SourcePath:     job.Path,
		RequestedModel: job.Model,
		Language:       job.Language,
		Task:           job.Task,
		Preset:         job.Preset,
		SizeBytes:      size,
	})
	if err != nil {
		return job, services.Wrap(services.ErrTransient, "history", "record job", job.Source, err)
	}
	return job, nil
}

// Run transcribes a submitted job, writes its outputs and records the
// outcome. Jobs not yet submitted are submitted first.
func (s *Service) Run(ctx context.Context, job Job) (JobResult, error) {
	if job.ID == "" {
		submitted, err := s.Submit(ctx, job)
		if err != nil {
			return JobResult{}, err
		}
		job = submitted
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, s.logger)

	if job.RemoveSource {
		defer intake.Remove(job.Path, logger)
	}
	if s.store != nil {
		if err := s.store.MarkRunning(ctx, job.ID); err != nil {
			logger.Debug("history mark running failed", logging.Error(err))
		}
	}

	if media, err := intake.Sniff(job.Path); err == nil && media.FileType != "" {
		logger.Debug("input container identified",
			logging.String("format", media.Format),
			logging.String("file_type", media.FileType),
			logging.String("title", media.Title),
		)
	}

	out, err := s.transcribe(ctx, job.Path, job.Request)
	if err != nil {
		s.recordFailure(ctx, job.ID, err)
		return JobResult{JobID: job.ID}, err
	}

	result := JobResult{JobID: job.ID, Result: out.Result, Model: out.Model, Device: out.Device}
	if job.OutputDir != "" && len(job.Formats) > 0 {
		written, base, err := s.writeOutputs(job, out.Result)
		if err != nil {
			wrapped := services.Wrap(services.ErrTransient, "export", "write outputs", base, err)
			s.recordFailure(ctx, job.ID, wrapped)
			return result, wrapped
		}
		result.Outputs = written
		logger.Info("outputs written",
			logging.Int("files", len(written)),
			logging.String("dir", job.OutputDir),
			logging.String(logging.FieldEventType, "outputs_written"),
		)
	}

	if s.store != nil {
		err := s.store.Complete(ctx, job.ID, history.Completion{
			Model:             string(out.Model),
			Device:            string(out.Device),
			Language:          out.Result.Language,
			Result:            out.Result,
			Outputs:           result.Outputs,
			AudioDuration:     out.Result.AudioDurationSeconds,
			ProcessingTime:    out.Result.ProcessingTimeSeconds,
			AverageConfidence: out.Result.AverageConfidence,
		})
		if err != nil {
			logging.WarnWithContext(logger, "failed to record completed job", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "job missing from history"),
			)
		}
	}
	return result, nil
}

func (s *Service) recordFailure(ctx context.Context, id string, cause error) {
	if s.store == nil {
		return
	}
	if err := s.store.Fail(ctx, id, cause); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "failed to record failed job", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job missing from history"),
		)
	}
}

// RunBatch runs jobs one after another. The batch is rejected up front when
// it exceeds the configured limit; otherwise every job runs and the errors
// slice holds a nil or error per job.
func (s *Service) RunBatch(ctx context.Context, jobs []Job) ([]JobResult, []error, error) {
	if limit := s.cfg.Intake.MaxBatchFiles; limit > 0 && len(jobs) > limit {
		return nil, nil, services.Wrap(services.ErrValidation, "transcribe", "batch",
			fmt.Sprintf("%d files exceeds batch limit of %d", len(jobs), limit), nil)
	}
	results := make([]JobResult, len(jobs))
	errs := make([]error, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		results[i], errs[i] = s.Run(ctx, job)
	}
	return results, errs, nil
}

// JobResultFromStore rebuilds the stored result of a completed job.
func (s *Service) JobResultFromStore(ctx context.Context, id string) (*history.Job, enrich.Result, error) {
	if s.store == nil {
		return nil, enrich.Result{}, services.Wrap(services.ErrNotFound, "history", "get job", "history disabled", nil)
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, enrich.Result{}, err
	}
	var result enrich.Result
	if job.Status != history.StatusCompleted {
		return job, result, nil
	}
	if err := s.store.Result(ctx, id, &result); err != nil && !errors.Is(err, services.ErrNotFound) {
		return job, result, err
	}
	return job, result, nil
}

// outputTimeLayout names repeat outputs after the run time, e.g. meeting_20240102_150405.
const outputTimeLayout = "20060102_150405"

// writeOutputs writes job's transcript files under a base name no earlier
// job has used, so same-named sources never replace each other's outputs.
func (s *Service) writeOutputs(job Job, result enrich.Result) ([]string, string, error) {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	base := filepath.Join(job.OutputDir, outputStem(job.Source))
	base = export.AvailableBase(base, job.Formats, time.Now().Format(outputTimeLayout))
	written, err := export.WriteAll(base, result, job.Formats)
	return written, base, err
}

func outputStem(source string) string {
	name := intake.CleanFilename(filepath.Base(source))
	return strings.TrimSuffix(name, filepath.Ext(name))
}
