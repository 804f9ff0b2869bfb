package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize weights watcher")

// WeightsWatcher reloads the weights file when it changes on disk and
// publishes validated snapshots. A snapshot that fails to load keeps the
// previous one in effect.
type WeightsWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan *Weights
	stop    chan struct{}
	logger  *zap.Logger
}

// NewWeightsWatcher creates a watcher for the given weights file path.
func NewWeightsWatcher(path string, logger *zap.Logger) (*WeightsWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("weights watcher requires a file path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &WeightsWatcher{
		path:    path,
		watcher: watcher,
		updates: make(chan *Weights, 1),
		stop:    make(chan struct{}),
		logger:  logger.Named("weights_watcher"),
	}, nil
}

// Start begins watching. Editors replace files by rename, so the parent
// directory is watched and events are filtered by base name.
func (w *WeightsWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go w.processEvents(ctx)
	return nil
}

// Updates returns the channel carrying new weight snapshots.
func (w *WeightsWatcher) Updates() <-chan *Weights {
	return w.updates
}

// Stop stops the watcher and releases resources.
func (w *WeightsWatcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *WeightsWatcher) processEvents(ctx context.Context) {
	target := filepath.Clean(w.path)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("weights watcher error", zap.Error(err))
		}
	}
}

func (w *WeightsWatcher) reload() {
	weights, err := LoadWeights(w.path)
	if err != nil {
		w.logger.Warn("weights reload failed, keeping previous snapshot",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	// Drop the stale pending snapshot if the consumer is behind.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- weights:
		w.logger.Info("weights reloaded", zap.String("path", w.path))
	default:
	}
}
