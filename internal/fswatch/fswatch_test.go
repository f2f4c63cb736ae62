package fswatch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collector struct {
	mu     sync.Mutex
	events map[EventKind][]string
}

func newCollector() *collector {
	return &collector{events: make(map[EventKind][]string)}
}

func (c *collector) handler(kind EventKind) Handler {
	return func(path string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events[kind] = append(c.events[kind], path)
	}
}

func (c *collector) has(kind EventKind, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.events[kind] {
		if p == path {
			return true
		}
	}
	return false
}

func (c *collector) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.events {
		n += len(l)
	}
	return n
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "change", EventChange.String())
	assert.Equal(t, "create", EventCreate.String())
	assert.Equal(t, "delete", EventDelete.String())
	assert.Equal(t, "unknown", EventKind(42).String())
}

func TestNotifyWatcher_DeliversEvents(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(existing, []byte("package main\n"), 0644))

	sub, err := NewNotifyWatcher(zap.NewNop()).Subscribe(root, "**/*", false)
	require.NoError(t, err)
	defer sub.Release()

	c := newCollector()
	sub.OnChange(c.handler(EventChange))
	sub.OnCreate(c.handler(EventCreate))
	sub.OnDelete(c.handler(EventDelete))

	require.NoError(t, os.WriteFile(existing, []byte("package main\n\nfunc main() {}\n"), 0644))
	require.Eventually(t, func() bool { return c.has(EventChange, existing) }, 5*time.Second, 10*time.Millisecond)

	created := filepath.Join(root, "util.go")
	require.NoError(t, os.WriteFile(created, []byte("package main\n"), 0644))
	require.Eventually(t, func() bool { return c.has(EventCreate, created) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(created))
	require.Eventually(t, func() bool { return c.has(EventDelete, created) }, 5*time.Second, 10*time.Millisecond)
}

func TestNotifyWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	sub, err := NewNotifyWatcher(zap.NewNop()).Subscribe(root, "**/*", false)
	require.NoError(t, err)
	defer sub.Release()

	c := newCollector()
	sub.OnCreate(c.handler(EventCreate))
	sub.OnChange(c.handler(EventChange))

	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.Eventually(t, func() bool { return c.has(EventCreate, dir) }, 5*time.Second, 10*time.Millisecond)

	nested := filepath.Join(dir, "lib.go")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(nested, []byte("package pkg\n"), 0644)
		return c.has(EventCreate, nested) || c.has(EventChange, nested)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestNotifyWatcher_GlobFilters(t *testing.T) {
	root := t.TempDir()
	sub, err := NewNotifyWatcher(zap.NewNop()).Subscribe(root, "**/*.go", false)
	require.NoError(t, err)
	defer sub.Release()

	c := newCollector()
	sub.OnCreate(c.handler(EventCreate))

	txt := filepath.Join(root, "notes.txt")
	gofile := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(gofile, []byte("package main\n"), 0644))

	require.Eventually(t, func() bool { return c.has(EventCreate, gofile) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, c.has(EventCreate, txt))
}

func TestNotifyWatcher_IgnoreCreate(t *testing.T) {
	root := t.TempDir()
	sub, err := NewNotifyWatcher(zap.NewNop()).Subscribe(root, "**/*", true)
	require.NoError(t, err)
	defer sub.Release()

	c := newCollector()
	sub.OnCreate(c.handler(EventCreate))
	sub.OnChange(c.handler(EventChange))

	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0644))

	require.Eventually(t, func() bool { return c.has(EventChange, path) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, c.has(EventCreate, path))
}

func TestNotifyWatcher_InvalidInputs(t *testing.T) {
	w := NewNotifyWatcher(nil)

	_, err := w.Subscribe(t.TempDir(), "[", false)
	assert.Error(t, err)

	_, err = w.Subscribe(filepath.Join(t.TempDir(), "missing"), "**/*", false)
	assert.Error(t, err)
}

func TestNotifyWatcher_ReleaseStopsDelivery(t *testing.T) {
	root := t.TempDir()
	sub, err := NewNotifyWatcher(zap.NewNop()).Subscribe(root, "**/*", false)
	require.NoError(t, err)

	c := newCollector()
	sub.OnCreate(c.handler(EventCreate))
	sub.Release()
	sub.Release()

	require.NoError(t, os.WriteFile(filepath.Join(root, "late.go"), []byte("package late\n"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, c.total())
}

func TestRegistration_Release(t *testing.T) {
	w := NewFakeWatcher()
	s, err := w.Subscribe("/repo", "**/*", false)
	require.NoError(t, err)
	sub := s.(*FakeSubscription)

	c := newCollector()
	reg := sub.OnChange(c.handler(EventChange))
	sub.OnDelete(c.handler(EventDelete))
	assert.Equal(t, 2, sub.Registrations())

	reg.Release()
	reg.Release()
	assert.Equal(t, 1, sub.Registrations())

	w.Emit(EventChange, "/repo/a.go")
	w.Emit(EventDelete, "/repo/b.go")
	assert.False(t, c.has(EventChange, "/repo/a.go"))
	assert.True(t, c.has(EventDelete, "/repo/b.go"))
}

func TestFakeWatcher(t *testing.T) {
	w := NewFakeWatcher()

	w.SetError(ErrFakeSubscribe)
	_, err := w.Subscribe("/repo", "**/*", false)
	require.ErrorIs(t, err, ErrFakeSubscribe)
	w.SetError(nil)

	s, err := w.Subscribe("/repo", "**/*", true)
	require.NoError(t, err)
	c := newCollector()
	s.OnCreate(c.handler(EventCreate))

	w.Emit(EventCreate, "/repo/x.go")
	assert.Zero(t, c.total(), "create events are suppressed when ignoreCreate is set")
	assert.Equal(t, 1, w.Active())

	s.Release()
	assert.Equal(t, 0, w.Active())
	assert.Equal(t, 0, s.(*FakeSubscription).Registrations())
	assert.NotNil(t, s.OnChange(c.handler(EventChange)), "registering after release returns an inert handle")
}
