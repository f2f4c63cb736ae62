package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Subscription delivers change notifications for the configuration file
// until it is released.
type Subscription struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Watch calls onChange whenever the file at path is written, created,
// renamed or removed. The parent directory is watched so editors that
// replace the file through a rename are still seen.
func Watch(path string, log *zap.Logger, onChange func()) (*Subscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	sub := &Subscription{watcher: w, done: make(chan struct{})}
	target := filepath.Clean(path)

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		for {
			select {
			case <-sub.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op == fsnotify.Chmod {
					continue
				}
				log.Debug("config file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return sub, nil
}

// Release stops delivering notifications. It is safe to call more than once.
func (s *Subscription) Release() {
	s.once.Do(func() {
		close(s.done)
		_ = s.watcher.Close()
		s.wg.Wait()
	})
}
