package pipeline

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultIdleTTL = 30 * time.Minute

// Registry binds browser cookies to in-memory sessions. Sessions that are
// idle longer than the TTL are abandoned, unless a stage is still running.
type Registry struct {
	orch  *Orchestrator
	items *cache.Cache
}

func NewRegistry(orch *Orchestrator, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	r := &Registry{orch: orch, items: cache.New(idleTTL, idleTTL/2)}
	r.items.OnEvicted(r.evicted)
	return r
}

func (r *Registry) evicted(id string, v any) {
	s, ok := v.(*Session)
	if !ok || s.Closed() {
		return
	}
	if s.Busy() {
		r.items.Set(id, s, cache.DefaultExpiration)
		return
	}
	s.Abandon()
}

// Create starts a new session at the capture step.
func (r *Registry) Create(lang string) *Session {
	s := r.orch.NewSession(lang)
	r.items.Set(s.ID(), s, cache.DefaultExpiration)
	return s
}

// Get returns a live session and extends its idle timeout.
func (r *Registry) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := r.items.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	if s.Closed() {
		r.items.Delete(id)
		return nil, false
	}
	r.items.Set(id, s, cache.DefaultExpiration)
	return s, true
}

// Remove abandons the session and forgets it.
func (r *Registry) Remove(id string) {
	if v, ok := r.items.Get(id); ok {
		v.(*Session).Abandon()
	}
	r.items.Delete(id)
}

func (r *Registry) Len() int {
	return r.items.ItemCount()
}

// Close abandons every session. Used on shutdown.
func (r *Registry) Close() {
	for id := range r.items.Items() {
		r.Remove(id)
	}
}
