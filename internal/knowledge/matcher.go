package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/miradorstack/mirador-yield/internal/models"
)

// DefaultDebounce coalesces editor save sequences into one reload.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc observes the outcome of a reload attempt; err is nil on success.
type ReloadFunc func(err error)

// Matcher serves queries from the current Base and can swap in a new one when
// the backing file changes. Readers never observe a partially built index.
type Matcher struct {
	current atomic.Pointer[Base]
	logger  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewMatcher wraps base; a nil base means the built-in table.
func NewMatcher(base *Base, logger *slog.Logger) *Matcher {
	if base == nil {
		base = Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{logger: logger}
	m.current.Store(base)
	return m
}

// Query delegates to the current Base.
func (m *Matcher) Query(keywords []string) []models.KBMatch {
	return m.current.Load().Query(keywords)
}

// Base returns the index currently in use.
func (m *Matcher) Base() *Base {
	return m.current.Load()
}

// Reload parses path and swaps it in. On failure the previous index stays.
func (m *Matcher) Reload(path string) error {
	base, err := Load(path)
	if err != nil {
		return fmt.Errorf("reload knowledge base %s: %w", path, err)
	}
	m.current.Store(base)
	return nil
}

// Watch reloads path whenever it changes until ctx is cancelled. The directory
// is watched rather than the file so atomic rename-into-place saves are seen.
// Watch returns once the watcher is registered.
func (m *Matcher) Watch(ctx context.Context, path string, debounce time.Duration, onReload ReloadFunc) error {
	if path == "" {
		return fmt.Errorf("knowledge base path cannot be empty")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	m.logger.Info("watching knowledge base", slog.String("path", target), slog.Duration("debounce", debounce))

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				m.stopTimer()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				m.schedule(ctx, target, debounce, onReload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("knowledge base watcher error", slog.Any("error", err))
			}
		}
	}()
	return nil
}

func (m *Matcher) schedule(ctx context.Context, path string, debounce time.Duration, onReload ReloadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(debounce, func() {
		if ctx.Err() != nil {
			return
		}
		err := m.Reload(path)
		if err != nil {
			m.logger.Warn("knowledge base reload failed, keeping previous table", slog.Any("error", err))
		} else {
			m.logger.Info("knowledge base reloaded", slog.String("path", path), slog.Int("entries", m.Base().Len()))
		}
		if onReload != nil {
			onReload(err)
		}
	})
}

func (m *Matcher) stopTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
}
