package fswatch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// NotifyWatcher implements Watcher with fsnotify. Directories are
// registered recursively and directories created later are added as they
// appear.
type NotifyWatcher struct {
	log *zap.Logger
}

// NewNotifyWatcher creates a NotifyWatcher.
func NewNotifyWatcher(log *zap.Logger) *NotifyWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifyWatcher{log: log}
}

// Subscribe starts watching root.
func (n *NotifyWatcher) Subscribe(root, glob string, ignoreCreate bool) (Subscription, error) {
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid watch glob %q", glob)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	sub := &notifySubscription{
		handlers:     newHandlers(),
		watcher:      w,
		root:         absRoot,
		glob:         glob,
		ignoreCreate: ignoreCreate,
		log:          n.log,
		done:         make(chan struct{}),
	}

	if err := sub.addRecursive(absRoot); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", absRoot, err)
	}

	go sub.loop()
	return sub, nil
}

type notifySubscription struct {
	*handlers

	watcher      *fsnotify.Watcher
	root         string
	glob         string
	ignoreCreate bool
	log          *zap.Logger

	done chan struct{}
	once sync.Once
}

func (s *notifySubscription) OnChange(h Handler) Registration { return s.add(EventChange, h) }
func (s *notifySubscription) OnCreate(h Handler) Registration { return s.add(EventCreate, h) }
func (s *notifySubscription) OnDelete(h Handler) Registration { return s.add(EventDelete, h) }

// Release closes the underlying watcher.
func (s *notifySubscription) Release() {
	s.once.Do(func() {
		s.releaseAll()
		close(s.done)
		if err := s.watcher.Close(); err != nil {
			s.log.Debug("watcher close failed", zap.Error(err))
		}
	})
}

// addRecursive registers dir and every directory below it. Only a failure
// on dir itself is returned; subdirectories that cannot be added are logged.
func (s *notifySubscription) addRecursive(dir string) error {
	if err := s.watcher.Add(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir || !d.IsDir() {
			return nil
		}
		if err := s.watcher.Add(path); err != nil {
			s.log.Debug("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (s *notifySubscription) loop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (s *notifySubscription) handle(ev fsnotify.Event) {
	var kind EventKind
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.addRecursive(ev.Name); err != nil {
				s.log.Debug("failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
		if s.ignoreCreate {
			return
		}
		kind = EventCreate
	case ev.Has(fsnotify.Write):
		kind = EventChange
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = EventDelete
	default:
		// Chmod only.
		return
	}

	if !s.matches(ev.Name) {
		return
	}
	for _, h := range s.snapshot(kind) {
		h(ev.Name)
	}
}

func (s *notifySubscription) matches(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(s.glob, filepath.ToSlash(rel))
	return err == nil && ok
}
