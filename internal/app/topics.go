package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/mosaic/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mosaic/internal/core/domain"
	"github.com/custodia-labs/mosaic/internal/logger"
)

const topicReloadDebounce = 300 * time.Millisecond

// Topics serves the topic list for scheduled batches. With a topic file
// configured the parsed list is cached and reloaded when the file
// changes; a file that fails to parse keeps the last good list.
type Topics struct {
	path     string
	template string

	mu     sync.RWMutex
	topics []string
	err    error
}

// NewTopics creates a topic source. An empty path serves the built-in
// topics; test selects the short built-in list.
func NewTopics(path, template string, test bool) *Topics {
	t := &Topics{path: path, template: template}
	if path == "" {
		if test {
			t.topics = domain.TestTopics()
		} else {
			t.topics = domain.DefaultTopics()
		}
		return t
	}
	t.reload()
	return t
}

// Topics returns the current topics and the query template in effect.
func (t *Topics) Topics() ([]string, string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.topics) == 0 {
		return nil, "", t.err
	}
	return append([]string(nil), t.topics...), t.template, nil
}

func (t *Topics) reload() {
	tf, err := file.LoadTopics(t.path)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.err = err
		if len(t.topics) > 0 {
			logger.Warn("Keeping previous topics: %v", err)
		}
		return
	}
	t.topics = tf.Topics
	t.err = nil
	if tf.QueryTemplate != "" {
		t.template = tf.QueryTemplate
	}
	logger.Info("Loaded %d topic(s) from %s", len(tf.Topics), t.path)
}

// Watch reloads the topic file on change until ctx is cancelled. The
// parent directory is watched so editors that replace the file are seen.
func (t *Topics) Watch(ctx context.Context) error {
	if t.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(t.path)
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(topicReloadDebounce, t.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Debug("topic watcher: %v", err)
			}
		}
	}()
	return nil
}
