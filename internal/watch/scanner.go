package watch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// errScanStopped aborts the walk early when Stop is requested; the root is
// left incomplete so the next start re-walks it.
var errScanStopped = fmt.Errorf("scan stopped")

// scanRoot performs the initial recursive walk for one root. Discovered
// files are upserted in transactional batches and enqueued for extraction;
// progress is checkpointed and reported at batch granularity.
func (s *Service) scanRoot(root string) error {
	s.emitStatus(fmt.Sprintf("Indexing %s…", root))

	incomplete, zero := false, 0
	if err := s.cat.UpdateScanState(root, &incomplete, &zero); err != nil {
		return fmt.Errorf("init scan state: %w", err)
	}

	scanned := 0
	batch := make([]string, 0, scanBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := s.cat.UpsertBatch(batch, s.cfg.Roots); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		for _, p := range batch {
			s.pool.Enqueue(p)
		}
		scanned += len(batch)
		batch = batch[:0]

		count := scanned
		if err := s.cat.UpdateScanState(root, nil, &count); err != nil {
			s.log.Warn("scan checkpoint failed", "root", root, "error", err)
		}
		s.emitStatus(fmt.Sprintf("Indexing %s… %d files", root, scanned))
		s.emitQueueStatus()
		return nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, never fatal.
			return nil
		}
		if d.IsDir() {
			if path != root && s.cfg.ExcludeDirs[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		batch = append(batch, path)
		if len(batch) >= scanBatchSize {
			if err := flush(); err != nil {
				return err
			}
			if s.stopRequested() {
				return errScanStopped
			}
		}
		return nil
	})
	if err == errScanStopped {
		s.emitQueueStatus()
		return nil
	}
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	s.emitQueueStatus()

	complete := true
	count := scanned
	if err := s.cat.UpdateScanState(root, &complete, &count); err != nil {
		return fmt.Errorf("finalize scan state: %w", err)
	}
	s.emitStatus(fmt.Sprintf("Indexing complete for %s (%d files)", root, scanned))
	return nil
}
