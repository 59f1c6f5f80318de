package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/rover/logging"
	"go.viam.com/rover/utils"
)

// A Watcher rereads the config file whenever it changes and publishes the avoidance threshold
// from the newest valid version. Other settings only take effect on restart.
type Watcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	threshold atomic.Float64
	reloads   atomic.Uint64
	workers   utils.StoppableWorkers
	logger    logging.Logger

	mu        sync.Mutex
	callbacks []func(*Config)
}

// NewWatcher starts watching path. initial is the config already read from it.
func NewWatcher(path string, initial *Config, logger logging.Logger) (*Watcher, error) {
	if initial == nil {
		return nil, errors.New("config watcher needs an initial config")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file rather than write it, so watch the directory.
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		goutils.UncheckedError(fsWatcher.Close())
		return nil, errors.Wrapf(err, "cannot watch %q", path)
	}

	w := &Watcher{path: absPath, fsWatcher: fsWatcher, logger: logger}
	w.threshold.Store(initial.AvoidanceThresholdCm)
	w.workers = utils.NewStoppableWorkers(w.watch)
	return w, nil
}

// AvoidanceThresholdCm returns the threshold of the newest valid config.
func (w *Watcher) AvoidanceThresholdCm() float64 {
	return w.threshold.Load()
}

// OnReload registers fn to be called with every valid config read after a change.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Reloads returns how many valid configs have been read since the watcher started.
func (w *Watcher) Reloads() uint64 {
	return w.reloads.Load()
}

func (w *Watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	conf, err := Read(w.path)
	if err != nil {
		w.logger.Warnw("ignoring invalid config", "path", w.path, "error", err)
		return
	}
	w.reloads.Inc()
	if previous := w.threshold.Load(); previous != conf.AvoidanceThresholdCm {
		w.threshold.Store(conf.AvoidanceThresholdCm)
		w.logger.Infow("avoidance threshold updated", "from_cm", previous, "to_cm", conf.AvoidanceThresholdCm)
	}

	w.mu.Lock()
	callbacks := append(([]func(*Config))(nil), w.callbacks...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(conf)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.workers.Stop()
	return w.fsWatcher.Close()
}
