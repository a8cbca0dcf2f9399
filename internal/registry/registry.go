// Package registry holds the in-memory map of tracked downloads. It is the
// single source of truth for what is currently being followed and the only
// mutable state shared between pollers.
package registry

import (
	"log/slog"
	"sync"

	"vidtrack/internal/entity"
	"vidtrack/internal/observability"
)

// Renderer receives the full record list after every visible change.
type Renderer interface {
	Render(records []entity.DownloadRecord)
}

// Registry is an injectable store of download records keyed by identifier.
type Registry struct {
	log      *slog.Logger
	renderer Renderer
	metrics  *observability.Metrics

	mu      sync.RWMutex
	records map[string]*entity.DownloadRecord
	order   []string // insertion order for stable rendering
}

// New creates an empty registry. The renderer and metrics may be nil.
func New(log *slog.Logger, renderer Renderer, metrics *observability.Metrics) *Registry {
	return &Registry{
		log:      log.With(slog.String("package", "registry")),
		renderer: renderer,
		metrics:  metrics,
		records:  make(map[string]*entity.DownloadRecord),
	}
}

// Add inserts a new pending record under the given identifier and triggers a
// render. It reports false, without rendering, if the identifier is already
// present.
func (r *Registry) Add(id, initialTitle string) bool {
	r.mu.Lock()

	if _, exists := r.records[id]; exists {
		r.mu.Unlock()

		return false
	}

	r.records[id] = &entity.DownloadRecord{
		ID:     id,
		Title:  initialTitle,
		Status: entity.StatusPending,
	}
	r.order = append(r.order, id)
	r.gauge()

	r.mu.Unlock()

	r.log.Debug("record added", slog.String("id", id), slog.String("title", initialTitle))
	r.render()

	return true
}

// Update sticky-merges a snapshot into the record for id and triggers a
// render. It reports false, without rendering, when the identifier is
// unknown (the record may have been removed from view by the user).
func (r *Registry) Update(id string, snap entity.ProgressSnapshot) bool {
	r.mu.Lock()

	rec, exists := r.records[id]
	if !exists {
		r.mu.Unlock()

		return false
	}

	rec.Apply(snap)

	r.mu.Unlock()

	r.render()

	return true
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (entity.DownloadRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return entity.DownloadRecord{}, false
	}

	return *rec, true
}

// All returns copies of every record in insertion order.
func (r *Registry) All() []entity.DownloadRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.DownloadRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}

	return out
}

// Remove drops a record from view. The identifier's poller, if still armed,
// keeps running so a terminal event is not missed; its writes become no-ops.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()

	if _, exists := r.records[id]; !exists {
		r.mu.Unlock()

		return false
	}

	delete(r.records, id)
	for i, known := range r.order {
		if known == id {
			r.order = append(r.order[:i], r.order[i+1:]...)

			break
		}
	}
	r.gauge()

	r.mu.Unlock()

	r.render()

	return true
}

// Len returns the number of records currently in view.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// gauge publishes the record count. Callers hold the write lock.
func (r *Registry) gauge() {
	if r.metrics != nil {
		r.metrics.ActiveRecords.Set(float64(len(r.records)))
	}
}

func (r *Registry) render() {
	if r.renderer == nil {
		return
	}

	r.renderer.Render(r.All())
}
