package ws

import (
	"sync"

	"github.com/vsocial/minichat/messaging"
)

// Registry maps a user id to its single live connection. It is the only
// shared mutable structure in the messaging core; all access goes through
// the mutex here.
type Registry struct {
	sync.RWMutex
	handlers map[int64]*Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[int64]*Handler),
	}
}

// Register installs h as the live channel for uid, atomically replacing
// any previous one. Returns the evicted handler, if any; the caller is
// responsible for closing it.
func (r *Registry) Register(uid int64, h *Handler) *Handler {
	r.Lock()
	old := r.handlers[uid]
	r.handlers[uid] = h
	r.Unlock()
	if old == h {
		return nil
	}
	return old
}

// Unregister removes the entry for uid only when h is still the registered
// handler, so a stale close racing a newer registration cannot drop the
// new entry. Reports whether an entry was removed.
func (r *Registry) Unregister(uid int64, h *Handler) bool {
	r.Lock()
	defer r.Unlock()
	if r.handlers[uid] == h {
		delete(r.handlers, uid)
		return true
	}
	return false
}

// Lookup implements `messaging.Registry`.
func (r *Registry) Lookup(uid int64) (messaging.Channel, bool) {
	r.RLock()
	h := r.handlers[uid]
	r.RUnlock()
	if h == nil {
		return nil, false
	}
	return h, true
}

// CloseAll asks every live connection to shut down, for server stop.
// Each connection's send loop performs its own close write.
func (r *Registry) CloseAll() {
	r.RLock()
	out := make([]*Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	r.RUnlock()

	for _, h := range out {
		h.stop(serverStop)
	}
}
