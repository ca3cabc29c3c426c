package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"diver/internal/walker"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher triggers a full re-index when source files under a root change.
// It does not patch the index incrementally; every trigger is a rebuild.
type Watcher struct {
	root       string
	extensions map[string]bool
	debounce   time.Duration
	logger     *slog.Logger
}

// NewWatcher watches root for changes to files with the given extensions.
func NewWatcher(root string, exts []string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[strings.ToLower(e)] = true
	}
	return &Watcher{root: root, extensions: m, debounce: debounce, logger: logger}
}

// Run blocks until ctx is done, calling onChange once per settled burst of
// relevant file events. Errors from onChange are logged, not returned.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dirs, err := walker.Dirs(w.root)
	if err != nil {
		return fmt.Errorf("list directories: %w", err)
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			w.logger.Debug("cannot watch directory", "dir", d, "err", err)
		}
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !w.ignored(ev.Name) {
					_ = fw.Add(ev.Name)
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("source changed", "path", ev.Name, "op", ev.Op.String())
			pending = true
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := onChange(ctx); err != nil {
				w.logger.Error("re-index failed", "err", err)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if w.ignored(ev.Name) {
		return false
	}
	return len(w.extensions) == 0 || w.extensions[strings.ToLower(filepath.Ext(ev.Name))]
}

func (w *Watcher) ignored(path string) bool {
	absRoot, err := filepath.Abs(w.root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return false
	}
	return walker.Ignored(w.root, rel)
}
