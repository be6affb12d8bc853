package alert

import (
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// entry tracks one open episode. windowEnd is kept separately from the
// stored alert because suppressed re-triggers extend the episode without
// emitting a new record.
type entry struct {
	alert     domain.Alert
	windowEnd time.Time
}

// Registry holds the currently open alerts keyed by episode. It is the
// dispatcher's dedup memory; the HTTP surface reads it concurrently, hence
// the mutex.
type Registry struct {
	mu   sync.Mutex
	open map[domain.DedupKey]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{open: make(map[domain.DedupKey]entry)}
}

// Lookup returns the open alert for key, if any.
func (r *Registry) Lookup(key domain.DedupKey) (domain.Alert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.open[key]
	return e.alert, ok
}

// Put records a as the open alert for its episode, replacing any prior
// record for the same key.
func (r *Registry) Put(a domain.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[a.DedupKey()] = entry{alert: a, windowEnd: a.WindowEnd.UTC()}
}

// Extend pushes an open episode's window end later. Earlier ends are kept.
func (r *Registry) Extend(key domain.DedupKey, windowEnd time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.open[key]
	if !ok {
		return
	}
	if end := windowEnd.UTC(); end.After(e.windowEnd) {
		e.windowEnd = end
		r.open[key] = e
	}
}

// Sweep removes and returns the alerts whose episode has expired: the key
// was not re-triggered this cycle and its window end lies before now.
func (r *Registry) Sweep(now time.Time, touched map[domain.DedupKey]struct{}) []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closed []domain.Alert
	for key, e := range r.open {
		if _, active := touched[key]; active {
			continue
		}
		if e.windowEnd.Before(now) {
			closed = append(closed, e.alert)
			delete(r.open, key)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID < closed[j].ID })
	return closed
}

// Open returns a snapshot of the open alerts ordered by region, type and
// window start.
func (r *Registry) Open() []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Alert, 0, len(r.open))
	for _, e := range r.open {
		out = append(out, e.alert)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.WindowStart.Before(b.WindowStart)
	})
	return out
}

// Len reports the number of open episodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// Seed loads alerts recovered from the archive, typically at startup so
// open episodes survive a restart. Existing entries for the same key are
// replaced.
func (r *Registry) Seed(alerts []domain.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range alerts {
		r.open[a.DedupKey()] = entry{alert: a, windowEnd: a.WindowEnd.UTC()}
	}
}

// Reset drops all open episodes.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = make(map[domain.DedupKey]entry)
}
