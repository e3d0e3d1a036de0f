package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// renameSettleDelay defers the tombstone for a rename's source path so the
// destination's create event is processed first; a document must never be
// transiently absent from search during a move.
const renameSettleDelay = 100 * time.Millisecond

// treeWatcher wraps fsnotify, which watches single directories, with
// recursive registration over a root's subtree.
type treeWatcher struct {
	fw       *fsnotify.Watcher
	excludes map[string]bool
}

func newTreeWatcher(excludes map[string]bool) (*treeWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &treeWatcher{fw: fw, excludes: excludes}, nil
}

// addTree registers root and every non-excluded directory beneath it.
// Per-directory failures are reported but don't abort the registration.
func (t *treeWatcher) addTree(root string, onError func(string, error)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && t.excludes[strings.ToLower(d.Name())] {
			return filepath.SkipDir
		}
		if err := t.fw.Add(path); err != nil {
			onError(path, err)
		}
		return nil
	})
}

func (t *treeWatcher) Close() error {
	return t.fw.Close()
}

// startWatching subscribes to filesystem change notifications recursively
// under each root. Subscription failures surface as status, never a crash.
func (s *Service) startWatching() error {
	w, err := newTreeWatcher(s.cfg.ExcludeDirs)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	for _, root := range s.cfg.Roots {
		w.addTree(root, func(dir string, err error) {
			s.emitStatus(fmt.Sprintf("Cannot watch %s: %v", dir, err))
		})
	}
	return nil
}

// eventLoop consumes watcher events until Stop closes the watcher.
func (s *Service) eventLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.fw.Events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		case err, ok := <-s.watcher.fw.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error", "error", err)
		}
	}
}

func (s *Service) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		fi, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if fi.IsDir() {
			if !s.cfg.ExcludeDirs[strings.ToLower(filepath.Base(ev.Name))] {
				s.watcher.addTree(ev.Name, func(dir string, err error) {
					s.log.Warn("cannot watch new directory", "dir", dir, "error", err)
				})
				// Files may have landed before the watch was in place.
				s.scanNewTree(ev.Name)
			}
			return
		}
		if !fi.Mode().IsRegular() {
			return
		}
		s.upsertAndEnqueue(ev.Name)
		s.emitQueueStatus()

	case ev.Op.Has(fsnotify.Write):
		// Some platforms deliver Write on a directory when its contents
		// change; only regular files belong in the catalog.
		fi, err := os.Stat(ev.Name)
		if err != nil || !fi.Mode().IsRegular() {
			return
		}
		s.upsertAndEnqueue(ev.Name)
		s.emitQueueStatus()

	case ev.Op.Has(fsnotify.Remove):
		if err := s.cat.MarkDeleted(ev.Name); err != nil {
			s.log.Warn("mark deleted failed", "path", ev.Name, "error", err)
		}

	case ev.Op.Has(fsnotify.Rename):
		// A move surfaces as Rename on the source and Create on the
		// destination. Tombstone the source only after a short delay, and
		// only if nothing re-appeared at that path, so the destination's
		// insert always lands first. Stop waits for pending tombstones so
		// none fires against a closed catalog.
		name := ev.Name
		s.tombstones.Add(1)
		time.AfterFunc(renameSettleDelay, func() {
			defer s.tombstones.Done()
			if s.stopRequested() {
				return
			}
			if _, err := os.Stat(name); err == nil {
				return
			}
			if err := s.cat.MarkDeleted(name); err != nil {
				s.log.Warn("mark deleted failed", "path", name, "error", err)
			}
		})
	}
}

// scanNewTree catalogs files under a directory that appeared after the
// initial scan (e.g. a moved-in subtree).
func (s *Service) scanNewTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && s.cfg.ExcludeDirs[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			s.upsertAndEnqueue(path)
		}
		return nil
	})
	s.emitQueueStatus()
}

func (s *Service) upsertAndEnqueue(path string) {
	id, err := s.cat.UpsertDocument(path, s.cfg.Roots)
	if err != nil {
		s.log.Warn("upsert failed", "path", path, "error", err)
		return
	}
	if id != 0 {
		s.pool.Enqueue(path)
	}
}
