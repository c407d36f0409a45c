package creature

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceWindow is the quiet period after which a changed file is reported.
const debounceWindow = 100 * time.Millisecond

// Watcher reports changed creature template files.
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

// NewWatcher watches dirs for template file changes.
//
// Postcondition: the caller must Close the returned Watcher.
func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

// run emits a path once no further events for it arrive within debounceWindow,
// so a truncate-then-write save is reported once with the final contents.
func (w *Watcher) run() {
	defer close(w.Events)
	defer close(w.Errors)
	pending := make(map[string]time.Time)
	flush := time.NewTicker(debounceWindow / 2)
	defer flush.Stop()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isTemplateFile(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()
		case now := <-flush.C:
			for name, last := range pending {
				if now.Sub(last) < debounceWindow {
					continue
				}
				delete(pending, name)
				select {
				case w.Events <- name:
				case <-w.closeCh:
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

// Follow applies template file changes from w to reg until ctx is done or w closes.
//
// A changed file that fails to load leaves the previous template in place.
// A removed file drops the templates it defined. Actors already spawned keep
// the blueprint they were built from; the spawner reads the registry again on
// the next respawn.
func Follow(ctx context.Context, w *Watcher, reg *Registry, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-w.Events:
			if !ok {
				return
			}
			reload(path, reg, logger)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("creature watcher error", zap.Error(err))
		}
	}
}

func reload(path string, reg *Registry, logger *zap.Logger) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		removed := reg.RemoveSource(path)
		logger.Info("creature template removed", zap.String("path", path), zap.Strings("creatures", removed))
		return
	}
	tmpl, err := LoadTemplateFile(path)
	if err != nil {
		logger.Warn("creature template reload failed; keeping previous version",
			zap.String("path", path), zap.Error(err))
		return
	}
	reg.Put(tmpl)
	logger.Info("creature template reloaded", zap.String("path", path), zap.String("creature", tmpl.ID))
}
