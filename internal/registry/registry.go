// Package registry maps model keys to descriptors and owns the lazily loaded embedding backend
// for each key. The set of keys is fixed when the Registry is created.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/formbricks/plagiarism-detector/internal/detecterrors"
	"github.com/formbricks/plagiarism-detector/internal/embeddings"
	"github.com/formbricks/plagiarism-detector/internal/observability"
	"github.com/formbricks/plagiarism-detector/pkg/cache"
)

// DefaultLoadTimeout bounds a single backend load when Params.LoadTimeout is zero.
const DefaultLoadTimeout = 60 * time.Second

// State is the lifecycle state of a model backend.
type State string

// Backend states.
const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

var (
	// ErrNoModels is returned when a Registry is created without models.
	ErrNoModels = errors.New("registry: at least one model is required")
	// ErrInvalidModel is returned for a malformed model definition.
	ErrInvalidModel = errors.New("registry: invalid model definition")
	// ErrNilBackend is returned when a loader succeeds without a backend.
	ErrNilBackend = errors.New("registry: loader returned nil backend")
)

// Model defines one supported key and how to materialize its backend.
type Model struct {
	Key         string
	DisplayName string
	Description string
	// Backend names the implementation family (ollama, openai, ...), informational only.
	Backend    string
	Dimensions int
	Load       embeddings.Loader
}

// ModelDescriptor is the public view of a model key.
type ModelDescriptor struct {
	Key         string `json:"key"`
	DisplayName string `json:"name"`
	Description string `json:"description,omitempty"`
	Backend     string `json:"backend"`
	Dimensions  int    `json:"dimensions"`
	Loaded      bool   `json:"loaded"`
	State       State  `json:"state"`
	LastError   string `json:"last_error,omitempty"`
}

type status struct {
	state   State
	lastErr error
	// gen is bumped by Unload and Clear; a load started under an older gen is not kept.
	gen uint64
}

// Registry owns the backends for a fixed set of model keys. Loads happen on first acquisition,
// at most one at a time per key; ready backends are shared and served without locking.
type Registry struct {
	models      []Model
	index       map[string]int
	backends    *cache.LoaderCache[string, embeddings.Backend]
	loadTimeout time.Duration
	metrics     observability.ModelMetrics
	logger      *slog.Logger

	mu     sync.RWMutex
	status map[string]*status
}

// Params configures a Registry. Metrics and Logger may be nil.
type Params struct {
	Models      []Model
	LoadTimeout time.Duration
	Metrics     observability.ModelMetrics
	Logger      *slog.Logger
}

// New creates a Registry for p.Models, in listing order. No backend is loaded.
func New(p Params) (*Registry, error) {
	if len(p.Models) == 0 {
		return nil, ErrNoModels
	}

	index := make(map[string]int, len(p.Models))
	statuses := make(map[string]*status, len(p.Models))

	for i, m := range p.Models {
		switch {
		case m.Key == "":
			return nil, fmt.Errorf("%w: model %d has no key", ErrInvalidModel, i)
		case m.Dimensions <= 0:
			return nil, fmt.Errorf("%w: model %q has non-positive dimensions", ErrInvalidModel, m.Key)
		case m.Load == nil:
			return nil, fmt.Errorf("%w: model %q has no loader", ErrInvalidModel, m.Key)
		}

		if _, dup := index[m.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidModel, m.Key)
		}

		index[m.Key] = i
		statuses[m.Key] = &status{state: StateUnloaded}
	}

	// One slot per key: loaded backends are never evicted, only unloaded explicitly.
	backends, err := cache.NewLoaderCache[string, embeddings.Backend](len(p.Models), func(k string) string { return k })
	if err != nil {
		return nil, fmt.Errorf("create backend cache: %w", err)
	}

	timeout := p.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		models:      append([]Model(nil), p.Models...),
		index:       index,
		backends:    backends,
		loadTimeout: timeout,
		metrics:     p.Metrics,
		logger:      logger,
		status:      statuses,
	}, nil
}

// Describe returns the descriptor for key.
func (r *Registry) Describe(key string) (ModelDescriptor, error) {
	i, ok := r.index[key]
	if !ok {
		return ModelDescriptor{}, detecterrors.NewUnknownModelError(key)
	}

	return r.describe(r.models[i]), nil
}

// ListAvailable returns every descriptor in listing order with its current state.
func (r *Registry) ListAvailable() []ModelDescriptor {
	out := make([]ModelDescriptor, len(r.models))
	for i, m := range r.models {
		out[i] = r.describe(m)
	}

	return out
}

// Keys returns the supported model keys in listing order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.models))
	for i, m := range r.models {
		keys[i] = m.Key
	}

	return keys
}

// Acquire returns the ready backend for key, loading it first if needed. Concurrent callers for
// an unloaded key share one load bounded by the load timeout; a failed load is reported as
// ModelLoadError and retried by the next Acquire.
func (r *Registry) Acquire(ctx context.Context, key string) (embeddings.Backend, error) {
	i, ok := r.index[key]
	if !ok {
		return nil, detecterrors.NewUnknownModelError(key)
	}

	if b, ok := r.backends.Peek(key); ok {
		return b, nil
	}

	model := r.models[i]

	b, src, err := r.backends.FetchManaged(ctx, key, func(loadCtx context.Context, _ string) (embeddings.Backend, error) {
		return r.load(loadCtx, model)
	})
	if err != nil {
		return nil, err
	}

	if src != cache.SourceCache {
		r.reportLoaded()
	}

	return b, nil
}

// Warmup loads the backend for key if it is not loaded yet.
func (r *Registry) Warmup(ctx context.Context, key string) error {
	_, err := r.Acquire(ctx, key)

	return err
}

// IsLoaded reports whether key has a ready backend.
func (r *Registry) IsLoaded(key string) bool {
	_, ok := r.backends.Peek(key)

	return ok
}

// LoadedCount returns the number of ready backends.
func (r *Registry) LoadedCount() int {
	return r.backends.Len()
}

// Unload drops the backend for key; the next Acquire loads it again. A load in flight for key
// completes for its callers but its backend is not kept. Reports whether a backend was loaded.
func (r *Registry) Unload(key string) bool {
	if _, ok := r.index[key]; !ok {
		return false
	}

	r.mu.Lock()
	st := r.status[key]
	st.gen++
	removed := r.backends.Invalidate(key)

	if removed {
		st.state = StateUnloaded
		st.lastErr = nil
	}
	r.mu.Unlock()

	if removed {
		r.reportLoaded()
		r.logger.Info("model unloaded", "model", key)
	}

	return removed
}

// Clear unloads every backend. Loads in flight complete for their callers but their backends
// are discarded, so the registry is empty once Clear returns.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.backends.InvalidateAll()

	for _, st := range r.status {
		st.gen++
		if st.state == StateReady {
			st.state = StateUnloaded
		}
	}
	r.mu.Unlock()

	r.reportLoaded()
}

func (r *Registry) load(ctx context.Context, model Model) (embeddings.Backend, error) {
	r.mu.Lock()
	st := r.status[model.Key]
	gen := st.gen
	st.state = StateLoading
	st.lastErr = nil
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "loading model", "model", model.Key, "backend", model.Backend, "timeout", r.loadTimeout)

	start := time.Now()
	b, err := r.runLoader(ctx, model)
	elapsed := time.Since(start)

	if err != nil {
		outcome := "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}

		r.setStatus(model.Key, StateFailed, err)
		r.recordLoad(ctx, model.Key, outcome, elapsed)
		r.logger.WarnContext(ctx, "model load failed",
			"model", model.Key, "outcome", outcome, "duration", elapsed, "error", err)

		return nil, detecterrors.NewModelLoadError(model.Key, err)
	}

	r.mu.Lock()
	kept := st.gen == gen
	if kept {
		r.backends.Add(model.Key, b)
		st.state = StateReady
	} else {
		st.state = StateUnloaded
	}
	r.mu.Unlock()

	r.recordLoad(ctx, model.Key, "success", elapsed)

	if !kept {
		r.logger.InfoContext(ctx, "model unloaded during load, backend discarded", "model", model.Key)

		return b, nil
	}

	r.logger.InfoContext(ctx, "model loaded", "model", model.Key, "dimensions", b.Dimensions(), "duration", elapsed)

	return b, nil
}

// runLoader runs the loader under the load timeout. The loader runs in its own goroutine so a
// loader that ignores its context still cannot hold callers past the deadline.
func (r *Registry) runLoader(ctx context.Context, model Model) (embeddings.Backend, error) {
	loadCtx, cancel := context.WithTimeout(ctx, r.loadTimeout)
	defer cancel()

	type result struct {
		backend embeddings.Backend
		err     error
	}

	done := make(chan result, 1)

	go func() {
		b, err := model.Load(loadCtx)
		done <- result{backend: b, err: err}
	}()

	var res result

	select {
	case res = <-done:
	case <-loadCtx.Done():
		return nil, fmt.Errorf("load timed out after %s: %w", r.loadTimeout, loadCtx.Err())
	}

	switch {
	case res.err != nil:
		return nil, res.err
	case res.backend == nil:
		return nil, ErrNilBackend
	case res.backend.Dimensions() != model.Dimensions:
		return nil, detecterrors.NewDimensionMismatchError(
			"backend for %q produces %d dimensions, catalog declares %d",
			model.Key, res.backend.Dimensions(), model.Dimensions)
	}

	return res.backend, nil
}

func (r *Registry) describe(m Model) ModelDescriptor {
	d := ModelDescriptor{
		Key:         m.Key,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Backend:     m.Backend,
		Dimensions:  m.Dimensions,
	}

	r.mu.RLock()
	st := r.status[m.Key]
	d.State = st.state

	if st.lastErr != nil {
		d.LastError = st.lastErr.Error()
	}
	r.mu.RUnlock()

	d.Loaded = d.State == StateReady

	return d
}

func (r *Registry) setStatus(key string, state State, err error) {
	r.mu.Lock()
	st := r.status[key]
	st.state = state
	st.lastErr = err
	r.mu.Unlock()
}

func (r *Registry) reportLoaded() {
	if r.metrics != nil {
		r.metrics.SetLoadedModels(r.backends.Len())
	}
}

func (r *Registry) recordLoad(ctx context.Context, key, outcome string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordLoad(ctx, key, outcome, d)
	}
}
