package fs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"vaultrag/internal/logger"
)

// Watcher reports batches of changed vault files. Events are debounced so a
// burst of writes to the same file yields one entry.
type Watcher struct {
	root     string
	walker   *Walker
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher watches every directory under root that the walker does not
// exclude.
func NewWatcher(root string, walker *Walker, debounce time.Duration) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, walker: walker, debounce: debounce, fsw: fsw}
	if _, err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every non-excluded directory below it, and
// returns the indexable files already present.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if w.indexable(p) {
				files = append(files, p)
			}
			return nil
		}
		if p != w.root && w.excludedDir(p) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
	return files, err
}

func (w *Watcher) excludedDir(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return true
	}
	return w.walker.shouldExclude(filepath.ToSlash(rel) + "/")
}

// Run delivers changed paths to onChange until ctx is done. onChange runs on
// the watcher goroutine; events arriving meanwhile are batched for the next
// call.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// A directory moved into the vault arrives with its files.
					if !w.excludedDir(ev.Name) {
						files, err := w.addTree(ev.Name)
						if err != nil {
							logger.Warn("failed to watch %s: %v", ev.Name, err)
						}
						for _, f := range files {
							pending[f] = struct{}{}
						}
						if len(files) > 0 {
							timer.Reset(w.debounce)
						}
					}
					continue
				}
			}
			if w.handleEvent(ev) {
				pending[ev.Name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})
			onChange(paths)
		}
	}
}

// handleEvent reports whether ev concerns an indexable file. Directories
// and chmod-only events are ignored.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if !w.indexable(ev.Name) {
		return false
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		return err != nil || !info.IsDir()
	default:
		return false
	}
}

// indexable reports whether p lies under the root, is not hidden and
// matches the include patterns.
func (w *Watcher) indexable(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	return !strings.HasPrefix(filepath.Base(rel), ".") && w.walker.Matches(rel)
}
