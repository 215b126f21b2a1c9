package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/device"
	"scribe/internal/history"
	"scribe/internal/inbox"
	"scribe/internal/intake"
	"scribe/internal/logging"
	"scribe/internal/models"
	"scribe/internal/preflight"
	"scribe/internal/services"
	"scribe/internal/transcriber"
)

// queueCapacity bounds jobs waiting for a worker.
const queueCapacity = 256

// cleanupInterval is how often stale staging files are swept.
const cleanupInterval = time.Hour

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	svc    *transcriber.Service
	store  *history.Store
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	jobs   chan transcriber.Job
	events *eventHub
	api    *apiServer

	running atomic.Bool
	active  atomic.Int32
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	inboxSettle time.Duration
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	HistoryPath  string             `json:"history_path"`
	LockFilePath string             `json:"lock_file_path"`
	Workers      int                `json:"workers"`
	ActiveJobs   int                `json:"active_jobs"`
	QueuedJobs   int                `json:"queued_jobs"`
	Jobs         history.Summary    `json:"jobs"`
	Device       device.Profile     `json:"device"`
	LoadedModels []models.ID        `json:"loaded_models"`
	Dependencies []deps.Status      `json:"dependencies"`
	Preflight    []preflight.Result `json:"preflight"`
}

// New constructs a daemon around svc. svc must carry a history store.
func New(cfg *config.Config, svc *transcriber.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and transcriber service")
	}
	if svc.Store() == nil {
		return nil, errors.New("daemon requires a history store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:         cfg,
		svc:         svc,
		store:       svc.Store(),
		logger:      logging.NewComponentLogger(logger, "daemon"),
		lockPath:    cfg.LockPath(),
		lock:        flock.New(cfg.LockPath()),
		jobs:        make(chan transcriber.Job, queueCapacity),
		events:      newEventHub(),
		inboxSettle: inbox.DefaultSettle,
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches workers, the API server, the
// inbox watcher and the cleanup loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribed instance is already running")
	}

	if reset, err := d.store.ResetInterrupted(ctx); err != nil {
		d.logger.Warn("failed to reset interrupted jobs",
			logging.Error(err),
			logging.String(logging.FieldEventType, "history_reset_failed"),
			logging.String(logging.FieldErrorHint, "check the history database"),
			logging.String(logging.FieldImpact, "stale jobs may show as running"),
		)
	} else if reset > 0 {
		d.logger.Info("marked interrupted jobs failed", logging.Int64("count", reset))
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the path or permissions in the config"),
			logging.String(logging.FieldImpact, "jobs touching this path will fail"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	workers := d.workerCount()
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(runCtx, i)
	}
	if d.cfg.Performance.AutoCleanupTempFiles {
		d.wg.Add(1)
		go d.cleanupLoop(runCtx)
	}
	if d.cfg.Paths.InboxDir != "" {
		d.wg.Add(1)
		go d.watchInbox(runCtx)
	}

	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", workers),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop cancels background work, waits for it to finish and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if the next start fails"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

// Close stops the daemon and releases models and the history store.
func (d *Daemon) Close() error {
	d.Stop()
	err := d.svc.Close()
	if closeErr := d.store.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Enqueue records job and hands it to the worker pool.
func (d *Daemon) Enqueue(ctx context.Context, job transcriber.Job) (transcriber.Job, error) {
	if !d.running.Load() {
		return job, services.Wrap(services.ErrTransient, "daemon", "enqueue", "daemon not running", nil)
	}
	submitted, err := d.svc.Submit(ctx, job)
	if err != nil {
		return job, err
	}
	select {
	case d.jobs <- submitted:
		d.events.publish(Event{JobID: submitted.ID, Status: history.StatusPending, Message: "queued"})
		return submitted, nil
	default:
		cause := services.Wrap(services.ErrTransient, "daemon", "enqueue", "job queue is full", nil)
		_ = d.store.Fail(ctx, submitted.ID, cause)
		if submitted.RemoveSource {
			intake.Remove(submitted.Path, d.logger)
		}
		return submitted, cause
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary, err := d.store.Summary(ctx)
	if err != nil {
		d.logger.Debug("history summary failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		HistoryPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Workers:      d.workerCount(),
		ActiveJobs:   int(d.active.Load()),
		QueuedJobs:   len(d.jobs),
		Jobs:         summary,
		Device:       d.svc.Profile(ctx),
		LoadedModels: d.svc.LoadedModels(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
		Preflight:    preflight.RunAll(ctx, d.cfg),
	}
}

func (d *Daemon) workerCount() int {
	if n := d.cfg.Performance.MaxConcurrentJobs; n > 0 {
		return n
	}
	return 1
}

func (d *Daemon) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	logger := d.logger.With(logging.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			d.process(ctx, logger, job)
		}
	}
}

func (d *Daemon) process(ctx context.Context, logger *slog.Logger, job transcriber.Job) {
	d.active.Add(1)
	defer d.active.Add(-1)

	d.events.publish(Event{JobID: job.ID, Status: history.StatusRunning, Message: "transcribing " + job.Source})
	result, err := d.svc.Run(ctx, job)
	if err != nil {
		d.events.publish(Event{
			JobID:     job.ID,
			Status:    history.StatusFailed,
			Error:     err.Error(),
			ErrorKind: services.Kind(err),
		})
		logging.WithContext(services.WithJobID(ctx, job.ID), logger).Error("job failed",
			logging.String("source", job.Source),
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_failed"),
		)
		return
	}
	d.events.publish(Event{
		JobID:   job.ID,
		Status:  history.StatusCompleted,
		Message: fmt.Sprintf("%d segments, model %s", len(result.Result.Segments), result.Model),
	})
}

func (d *Daemon) cleanupLoop(ctx context.Context) {
	defer d.wg.Done()
	maxAge := time.Duration(d.cfg.Performance.TempFileMaxAgeHours) * time.Hour
	sweep := func() {
		intake.CleanStale(ctx, d.cfg.Paths.StagingDir, maxAge, d.logger)
	}
	sweep()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func (d *Daemon) watchInbox(ctx context.Context) {
	defer d.wg.Done()
	handler := func(ctx context.Context, path, name string) error {
		_, err := d.Enqueue(ctx, transcriber.Job{
			Source:       name,
			Path:         path,
			OutputDir:    d.cfg.Paths.OutputDir,
			Formats:      d.cfg.Export.Formats,
			RemoveSource: true,
		})
		return err
	}
	watcher := inbox.New(d.cfg.Paths.InboxDir, d.cfg.Paths.StagingDir,
		intake.NewValidator(intake.LimitsFromConfig(d.cfg)), handler, d.logger,
		inbox.WithSettle(d.inboxSettle))
	if err := watcher.Run(ctx); err != nil {
		logging.ErrorWithContext(d.logger, "inbox watcher stopped", "inbox_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check inbox_dir exists and is writable"),
			logging.String(logging.FieldImpact, "dropped files will not be transcribed"),
		)
	}
}
