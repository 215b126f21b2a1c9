package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"scribe/internal/config"
	"scribe/internal/device"
	"scribe/internal/enrich"
	"scribe/internal/estimate"
	"scribe/internal/history"
	"scribe/internal/intake"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/models"
	"scribe/internal/options"
	"scribe/internal/preset"
	"scribe/internal/services"
	"scribe/internal/transcriber"
)

const (
	defaultListLimit = 50

	// multipartOverhead allows for boundaries and form fields around the file.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 1 << 10
	wsWriteTimeout    = 10 * time.Second
)

type apiServer struct {
	cfg    *config.Config
	daemon *Daemon
	logger *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener

	upgrader websocket.Upgrader
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	return &apiServer{
		cfg:    cfg,
		daemon: d,
		logger: logging.NewComponentLogger(logger, "api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/device", s.handleDevice)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/estimate", s.handleEstimate)
	mux.HandleFunc("POST /api/transcriptions", s.handleTranscribe)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /api/jobs/{id}/srt", s.handleJobSRT)
	mux.HandleFunc("GET /api/jobs/{id}/txt", s.handleJobText)
	mux.HandleFunc("GET /api/jobs/{id}/events", s.handleJobEvents)
	return authMiddleware(s.cfg.Paths.APIToken, mux)
}

func (s *apiServer) start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", bind, err)
	}
	srv := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server failed", "api_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api_bind in the config"),
				logging.String(logging.FieldImpact, "uploads and job queries are unavailable"),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()
	s.logger.Info("api server listening", logging.String("addr", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.svc.Profile(r.Context()))
}

func (s *apiServer) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": preset.All(), "default": s.cfg.Whisper.DefaultPreset})
}

func (s *apiServer) handleModels(w http.ResponseWriter, r *http.Request) {
	profile := s.daemon.svc.Profile(r.Context())
	type modelView struct {
		models.Info
		Recommended bool `json:"recommended"`
		Loaded      bool `json:"loaded"`
	}
	loaded := make(map[models.ID]bool)
	for _, id := range s.daemon.svc.LoadedModels() {
		loaded[id] = true
	}
	all := models.All()
	out := make([]modelView, 0, len(all))
	for _, info := range all {
		out = append(out, modelView{Info: info, Recommended: profile.Recommends(info.ID), Loaded: loaded[info.ID]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out, "default": s.cfg.Whisper.DefaultModel})
}

func (s *apiServer) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": language.Options()})
}

func (s *apiServer) handleEstimate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sizeMB, err := strconv.ParseFloat(query.Get("size_mb"), 64)
	if err != nil || sizeMB <= 0 {
		writeError(w, services.Wrap(services.ErrValidation, "api", "estimate", "size_mb must be a positive number", nil))
		return
	}
	profile := s.daemon.svc.Profile(r.Context())
	model, err := s.estimateModel(query.Get("model"), sizeMB, profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":          model,
		"device":         profile.Kind,
		"estimate":       s.daemon.svc.EstimateDuration(sizeMB, model, profile.Kind),
		"audio_duration": estimate.AudioDuration(sizeMB, estimate.DefaultBitrateKbps),
	})
}

func (s *apiServer) estimateModel(value string, sizeMB float64, profile device.Profile) (models.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = s.cfg.Whisper.DefaultModel
	}
	if value == transcriber.ModelAuto {
		return models.Recommend(sizeMB, profile.Accelerated()), nil
	}
	id, err := models.Parse(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "api", "estimate", err.Error(), nil)
	}
	return id, nil
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	ctx := services.WithRequestID(r.Context(), requestID(r))
	maxBody := s.cfg.MaxFileSizeBytes() + multipartOverhead
	if r.ContentLength > maxBody {
		writeError(w, services.Wrap(services.ErrValidation, "api", "validate upload",
			fmt.Sprintf("file too large (maximum: %dMB)", s.cfg.Intake.MaxFileSizeMB), nil))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, services.Wrap(services.ErrValidation, "api", "parse upload", err.Error(), nil))
		return
	}

	var (
		staged, fileName string
		size             int64
	)
	fail := func(err error) {
		if staged != "" {
			intake.Remove(staged, s.logger)
		}
		writeError(w, err)
	}

	fields := url.Values{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(services.Wrap(services.ErrValidation, "api", "parse upload", err.Error(), nil))
			return
		}
		if part.FormName() == "file" && part.FileName() != "" {
			if staged != "" {
				_ = part.Close()
				fail(services.Wrap(services.ErrValidation, "api", "parse upload", "only one file per upload", nil))
				return
			}
			fileName = part.FileName()
			staged, size, err = s.daemon.svc.StageStream(ctx, fileName, part.Header.Get("Content-Type"), part)
			_ = part.Close()
			if err != nil {
				fail(err)
				return
			}
			continue
		}
		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		_ = part.Close()
		if err != nil || len(value) > maxFieldBytes {
			fail(services.Wrap(services.ErrValidation, "api", "parse upload",
				fmt.Sprintf("form field %q too large", part.FormName()), nil))
			return
		}
		fields.Add(part.FormName(), string(value))
	}
	if staged == "" {
		fail(services.Wrap(services.ErrValidation, "api", "parse upload", "missing file field", nil))
		return
	}

	req, err := requestFromForm(fields)
	if err != nil {
		fail(err)
		return
	}

	job, err := s.daemon.Enqueue(ctx, transcriber.Job{
		Source:       fileName,
		Path:         staged,
		Request:      req,
		RemoveSource: true,
	})
	if err != nil {
		if job.ID != "" {
			// Enqueue already failed the job and removed its source.
			staged = ""
		}
		fail(err)
		return
	}

	sizeMB := float64(size) / (1024 * 1024)
	profile := s.daemon.svc.Profile(ctx)
	resp := map[string]any{
		"job_id": job.ID,
		"status": history.StatusPending,
		"size":   intake.FormatFileSize(size),
	}
	if model, err := s.estimateModel(req.Model, sizeMB, profile); err == nil {
		resp["estimate"] = s.daemon.svc.EstimateDuration(sizeMB, model, profile.Kind)
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), s.logger).Info("upload accepted",
		logging.String("file", fileName),
		logging.Bytes("size", size),
	)
	writeJSON(w, http.StatusAccepted, resp)
}

func requestFromForm(form url.Values) (transcriber.Request, error) {
	field := func(name string) string { return strings.TrimSpace(form.Get(name)) }
	req := transcriber.Request{
		Model: field("model"),
		Request: options.Request{
			Language: field("language"),
			Task:     field("task"),
			Preset:   field("preset"),
		},
	}
	if v := field("temperature"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, invalidField("temperature", v)
		}
		req.Overrides.Temperature = options.Float(f)
	}
	if v := field("beam_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, invalidField("beam_size", v)
		}
		req.Overrides.BeamSize = options.Int(n)
	}
	if v := field("best_of"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, invalidField("best_of", v)
		}
		req.Overrides.BestOf = options.Int(n)
	}
	if v := field("confidence_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, invalidField("confidence_threshold", v)
		}
		req.ConfidenceThreshold = f
	}
	return req, nil
}

func invalidField(name, value string) error {
	return services.Wrap(services.ErrValidation, "api", "parse form", fmt.Sprintf("invalid %s %q", name, value), nil)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := defaultListLimit
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, invalidField("limit", v))
			return
		}
		limit = n
	}
	var statuses []history.Status
	for _, raw := range query["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := history.ParseStatus(part)
			if !ok {
				writeError(w, invalidField("status", part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	jobs, err := s.daemon.store.List(r.Context(), limit, statuses...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"job": job}
	if job.Status == history.StatusCompleted {
		var result enrich.Result
		if err := s.daemon.store.Result(r.Context(), id, &result); err == nil {
			resp["result"] = result
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleJobSRT(w http.ResponseWriter, r *http.Request) {
	s.writeTranscript(w, r, "srt", func(result enrich.Result) string {
		return s.daemon.svc.ExportSRT(result.Segments)
	})
}

func (s *apiServer) handleJobText(w http.ResponseWriter, r *http.Request) {
	s.writeTranscript(w, r, "txt", s.daemon.svc.ExportText)
}

func (s *apiServer) writeTranscript(w http.ResponseWriter, r *http.Request, ext string, render func(enrich.Result) string) {
	job, result, err := s.daemon.svc.JobResultFromStore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if job.Status != history.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job not completed", "status": string(job.Status)})
		return
	}
	name := intake.CleanFilename(job.SourceName)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" {
		name = job.ID
	}
	contentType := "text/plain; charset=utf-8"
	if ext == "srt" {
		contentType = "application/x-subrip; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+ext))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, render(result))
}

func (s *apiServer) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Subscribe before reading the snapshot so no transition is missed.
	events, unsubscribe := s.daemon.events.subscribe(id)
	defer unsubscribe()

	job, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := Event{
		JobID:     job.ID,
		Status:    job.Status,
		Error:     job.ErrorMessage,
		ErrorKind: job.ErrorKind,
		Timestamp: job.UpdatedAt,
	}
	if !s.sendEvent(conn, snapshot) || job.Status.Terminal() {
		s.closeSocket(conn)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case evt := <-events:
			if !s.sendEvent(conn, evt) || evt.Status.Terminal() {
				s.closeSocket(conn)
				return
			}
		}
	}
}

func (s *apiServer) sendEvent(conn *websocket.Conn, evt Event) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(evt); err != nil {
		s.logger.Debug("websocket write failed", logging.Error(err))
		return false
	}
	return true
}

func (s *apiServer) closeSocket(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, services.HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"kind":  services.Kind(err),
	})
}
