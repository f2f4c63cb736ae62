// Package fswatch provides filesystem change subscriptions over a
// workspace tree.
//
// A Subscription reports change, create and delete events to registered
// handlers. Filtering beyond the glob is left to the caller; the
// subscription does not exclude any directories on its own.
package fswatch

import (
	"sync"
)

// Handler receives the path of a changed file.
type Handler func(path string)

// Registration is a handler registration owned by the caller.
type Registration interface {
	// Release unregisters the handler. It is safe to call more than once.
	Release()
}

// Subscription is a live watch over a tree.
type Subscription interface {
	OnChange(h Handler) Registration
	OnCreate(h Handler) Registration
	OnDelete(h Handler) Registration

	// Release stops the watch. It is safe to call more than once.
	Release()
}

// Watcher creates subscriptions.
type Watcher interface {
	// Subscribe watches every path under root matching glob. When
	// ignoreCreate is set, create events are not delivered.
	Subscribe(root, glob string, ignoreCreate bool) (Subscription, error)
}

// EventKind identifies which handler list an event is delivered to.
type EventKind int

const (
	EventChange EventKind = iota
	EventCreate
	EventDelete
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventChange:
		return "change"
	case EventCreate:
		return "create"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// handlers is the registration bookkeeping shared by the real and fake
// subscriptions.
type handlers struct {
	mu       sync.Mutex
	next     int
	lists    [3]map[int]Handler
	released bool
}

func newHandlers() *handlers {
	h := &handlers{}
	for i := range h.lists {
		h.lists[i] = make(map[int]Handler)
	}
	return h
}

func (h *handlers) add(kind EventKind, fn Handler) Registration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return &registration{}
	}
	h.next++
	id := h.next
	h.lists[kind][id] = fn
	return &registration{release: func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.lists[kind], id)
	}}
}

// snapshot copies the handlers for kind so they can be called unlocked.
func (h *handlers) snapshot(kind EventKind) []Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	out := make([]Handler, 0, len(h.lists[kind]))
	for id := 1; id <= h.next; id++ {
		if fn, ok := h.lists[kind][id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (h *handlers) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, l := range h.lists {
		n += len(l)
	}
	return n
}

// releaseAll drops every registration and reports whether this call did it.
func (h *handlers) releaseAll() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	for i := range h.lists {
		h.lists[i] = make(map[int]Handler)
	}
	return true
}

type registration struct {
	once    sync.Once
	release func()
}

func (r *registration) Release() {
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}
