// Package modelcache keeps loaded recognition models for the life of the
// process.
//
// Handles live in an append-only arena indexed by model identifier. Each
// identifier has its own load mutex so concurrent requests for one model
// trigger a single load, while lookups of an already loaded handle only take
// a read lock. A failed load of any model other than tiny falls back to tiny
// once; the tiny handle is then cached under both identifiers.
package modelcache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"scribe/internal/device"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/models"
	"scribe/internal/services"
)

// Handle is a cached, loaded model.
type Handle struct {
	model    engine.Model
	id       models.ID
	kind     device.Kind
	loadedAt time.Time
}

// Model returns the loaded engine model.
func (h *Handle) Model() engine.Model { return h.model }

// ID returns the identifier of the model actually loaded, which is tiny when
// a fallback occurred.
func (h *Handle) ID() models.ID { return h.id }

// Kind returns the device kind the model was loaded for.
func (h *Handle) Kind() device.Kind { return h.kind }

// LoadedAt returns when the model finished loading.
func (h *Handle) LoadedAt() time.Time { return h.loadedAt }

// Cache is a keyed store of loaded models.
type Cache struct {
	engine engine.Engine
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	handles []*Handle
	index   map[models.ID]int

	locksMu   sync.Mutex
	loadLocks map[models.ID]*sync.Mutex
}

// New constructs an empty cache backed by eng.
func New(eng engine.Engine, logger *slog.Logger) *Cache {
	return &Cache{
		engine:    eng,
		logger:    logging.NewComponentLogger(logger, "modelcache"),
		now:       time.Now,
		index:     make(map[models.ID]int),
		loadLocks: make(map[models.ID]*sync.Mutex),
	}
}

// GetOrLoad returns the cached handle for id, loading it on first use.
func (c *Cache) GetOrLoad(ctx context.Context, id models.ID, profile device.Profile) (*Handle, error) {
	if !id.Valid() {
		return nil, services.Wrap(services.ErrValidation, "model_cache", "resolve model", fmt.Sprintf("unknown model %q", id), nil)
	}
	if h, ok := c.lookup(id); ok {
		return h, nil
	}

	lock := c.loadLock(id)
	lock.Lock()
	defer lock.Unlock()

	if h, ok := c.lookup(id); ok {
		return h, nil
	}

	logger := logging.WithContext(ctx, c.logger)
	h, err := c.load(ctx, id, profile.Kind)
	if err == nil {
		c.store(id, h)
		logger.Info("model loaded", logging.String("model", string(id)), logging.String("device", string(profile.Kind)))
		return h, nil
	}

	if id == models.Tiny {
		return nil, services.Wrap(services.ErrModelLoad, "model_cache", "load model", "model tiny unavailable", err)
	}

	logging.WarnWithContext(logger, "model load failed; falling back to tiny", "model_fallback",
		logging.String("model", string(id)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "transcripts use the tiny model until restart"),
		logging.String(logging.FieldErrorHint, "check the model is downloaded and the device has enough memory"),
	)

	tiny, tinyErr := c.getOrLoadTiny(ctx, profile.Kind)
	if tinyErr != nil {
		return nil, services.Wrap(services.ErrModelLoad, "model_cache", "load model",
			fmt.Sprintf("model %s unavailable and tiny fallback failed", id), tinyErr)
	}
	c.alias(id, tiny)
	return tiny, nil
}

func (c *Cache) getOrLoadTiny(ctx context.Context, kind device.Kind) (*Handle, error) {
	if h, ok := c.lookup(models.Tiny); ok {
		return h, nil
	}
	lock := c.loadLock(models.Tiny)
	lock.Lock()
	defer lock.Unlock()
	if h, ok := c.lookup(models.Tiny); ok {
		return h, nil
	}
	h, err := c.load(ctx, models.Tiny, kind)
	if err != nil {
		return nil, err
	}
	c.store(models.Tiny, h)
	return h, nil
}

func (c *Cache) load(ctx context.Context, id models.ID, kind device.Kind) (*Handle, error) {
	m, err := c.engine.Load(ctx, id, kind)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("engine returned no model for %s", id)
	}
	return &Handle{model: m, id: id, kind: kind, loadedAt: c.now()}, nil
}

func (c *Cache) lookup(id models.ID) (*Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.handles[idx], true
}

func (c *Cache) store(id models.ID, h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = append(c.handles, h)
	c.index[id] = len(c.handles) - 1
}

func (c *Cache) alias(id models.ID, h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, candidate := range c.handles {
		if candidate == h {
			c.index[id] = idx
			return
		}
	}
}

func (c *Cache) loadLock(id models.ID) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	lock, ok := c.loadLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.loadLocks[id] = lock
	}
	return lock
}

// Loaded lists the identifiers with a cached handle, including fallback aliases.
func (c *Cache) Loaded() []models.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]models.ID, 0, len(c.index))
	for id := range c.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close releases every loaded model. It is intended for process teardown.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, h := range c.handles {
		if err := h.model.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.handles = nil
	c.index = make(map[models.ID]int)
	return firstErr
}
