package fswatch

import (
	"errors"
	"sync"
)

// FakeWatcher implements Watcher for tests. Events are injected with Emit.
type FakeWatcher struct {
	mu   sync.Mutex
	subs []*FakeSubscription
	err  error
}

// NewFakeWatcher creates a new FakeWatcher.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{}
}

// SetError makes the next Subscribe calls fail with err.
func (w *FakeWatcher) SetError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

// Subscribe records a new subscription.
func (w *FakeWatcher) Subscribe(root, glob string, ignoreCreate bool) (Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	sub := &FakeSubscription{
		handlers:     newHandlers(),
		Root:         root,
		Glob:         glob,
		IgnoreCreate: ignoreCreate,
	}
	w.subs = append(w.subs, sub)
	return sub, nil
}

// Subscriptions returns every subscription created so far.
func (w *FakeWatcher) Subscriptions() []*FakeSubscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*FakeSubscription(nil), w.subs...)
}

// Active returns the number of subscriptions not yet released.
func (w *FakeWatcher) Active() int {
	n := 0
	for _, s := range w.Subscriptions() {
		if !s.Released() {
			n++
		}
	}
	return n
}

// Emit delivers an event to every live subscription.
func (w *FakeWatcher) Emit(kind EventKind, path string) {
	for _, s := range w.Subscriptions() {
		s.Emit(kind, path)
	}
}

// ErrFakeSubscribe is a convenience error for SetError.
var ErrFakeSubscribe = errors.New("subscribe failed")

// FakeSubscription is the Subscription returned by FakeWatcher.
type FakeSubscription struct {
	*handlers

	Root         string
	Glob         string
	IgnoreCreate bool
}

func (s *FakeSubscription) OnChange(h Handler) Registration { return s.add(EventChange, h) }
func (s *FakeSubscription) OnCreate(h Handler) Registration { return s.add(EventCreate, h) }
func (s *FakeSubscription) OnDelete(h Handler) Registration { return s.add(EventDelete, h) }

// Release marks the subscription released.
func (s *FakeSubscription) Release() {
	s.releaseAll()
}

// Released reports whether Release was called.
func (s *FakeSubscription) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Registrations returns the number of live handler registrations.
func (s *FakeSubscription) Registrations() int {
	return s.count()
}

// Emit calls the handlers registered for kind.
func (s *FakeSubscription) Emit(kind EventKind, path string) {
	if kind == EventCreate && s.IgnoreCreate {
		return
	}
	for _, h := range s.snapshot(kind) {
		h(path)
	}
}
