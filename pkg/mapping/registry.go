package mapping

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Registry holds the live form table. Readers always see a complete table.
type Registry struct {
	table atomic.Pointer[Table]
}

func NewRegistry(t *Table) *Registry {
	r := &Registry{}
	r.table.Store(t)
	return r
}

// Current returns the table in use
func (r *Registry) Current() *Table {
	return r.table.Load()
}

// Swap replaces the table in use
func (r *Registry) Swap(t *Table) {
	r.table.Store(t)
}

// Reload parses path and swaps it in. On error the current table is kept.
func (r *Registry) Reload(path string) error {
	t, err := LoadFile(path)
	if err != nil {
		return err
	}
	r.Swap(t)
	return nil
}

// Watch reloads the registry whenever the forms file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are picked up.
func Watch(ctx context.Context, path string, r *Registry, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating forms watcher: %w", err)
	}

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("error watching forms file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := r.Reload(target); err != nil {
					logger.Warn("Forms file reload failed, keeping previous mapping", zap.Error(err))
					continue
				}
				logger.Info("Reloaded forms file", zap.Strings("forms", r.Current().Names()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Forms watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
