package health

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RefreshFunc re-checks one entity.
type RefreshFunc func(ctx context.Context) error

// ErrNotRegistered is returned by Refresh for an unknown id.
var ErrNotRegistered = errors.New("no refresh registered")

// Handle identifies one registration. Unregistering a handle that has been
// replaced by a newer Register for the same id has no effect.
type Handle struct {
	id  string
	seq uint64
}

func (h Handle) ID() string {
	return h.id
}

type entry struct {
	seq uint64
	fn  RefreshFunc
}

// Registry maps entity ids to refresh callbacks, for bulk refresh of every
// model currently on screen.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	seq     uint64
	limit   int
}

func NewRegistry(concurrency int) *Registry {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Registry{entries: make(map[string]entry), limit: concurrency}
}

// Register installs fn for id, replacing any earlier registration.
func (r *Registry) Register(id string, fn RefreshFunc) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.entries[id] = entry{seq: r.seq, fn: fn}
	return Handle{id: id, seq: r.seq}
}

// Unregister removes h's registration. It reports whether anything was
// removed.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h.id]
	if !ok || e.seq != h.seq {
		return false
	}
	delete(r.entries, h.id)
	return true
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Refresh runs the callback registered for id.
func (r *Registry) Refresh(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("refresh %s: %w", id, ErrNotRegistered)
	}
	return e.fn(ctx)
}

// RefreshAll runs every registered callback concurrently. One failing
// refresh does not cancel the others; all failures are joined.
func (r *Registry) RefreshAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	fns := make([]RefreshFunc, 0, len(r.entries))
	for id, e := range r.entries {
		ids = append(ids, id)
		fns = append(fns, e.fn)
	}
	r.mu.Unlock()

	errs := make([]error, len(fns))
	var g errgroup.Group
	g.SetLimit(r.limit)
	for i, fn := range fns {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				errs[i] = fmt.Errorf("refresh %s: %w", ids[i], err)
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}
