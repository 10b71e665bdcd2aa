package relay

import (
	"sort"
	"sync"
)

// historyLimit bounds the ended-call ring. Nothing is persisted; this
// exists so the API can show what just happened.
const historyLimit = 50

// Registry tracks live calls by SID and keeps a short history of
// ended ones.
type Registry struct {
	mu      sync.RWMutex
	active  map[string]*Call
	history []*Call
}

// NewRegistry creates an empty call registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*Call),
	}
}

// Add registers a live call.
func (r *Registry) Add(c *Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[c.SID]; exists {
		return ErrCallExists
	}
	r.active[c.SID] = c
	return nil
}

// Get returns a live call by SID.
func (r *Registry) Get(sid string) (*Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.active[sid]
	return c, ok
}

// Complete moves a call from the active set into the history ring.
func (r *Registry) Complete(c *Call) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, c.SID)
	r.history = append(r.history, c)
	if len(r.history) > historyLimit {
		r.history = r.history[len(r.history)-historyLimit:]
	}
}

// Active returns snapshots of all live calls, ordered by start time.
func (r *Registry) Active() []CallInfo {
	r.mu.RLock()
	calls := make([]*Call, 0, len(r.active))
	for _, c := range r.active {
		calls = append(calls, c)
	}
	r.mu.RUnlock()

	sort.Slice(calls, func(i, j int) bool {
		return calls[i].StartedAt.Before(calls[j].StartedAt)
	})

	infos := make([]CallInfo, len(calls))
	for i, c := range calls {
		infos[i] = c.Info()
	}
	return infos
}

// Recent returns snapshots of recently ended calls, newest first.
func (r *Registry) Recent() []CallInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]CallInfo, 0, len(r.history))
	for i := len(r.history) - 1; i >= 0; i-- {
		infos = append(infos, r.history[i].Info())
	}
	return infos
}

// Count returns the number of live calls.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
