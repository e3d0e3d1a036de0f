package catalog

import (
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Catalog owns the locations, docs, and content_fts entities. All other
// components mutate the catalog only through its methods; each method is a
// single logical write that commits fully or not at all.
type Catalog struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the catalog database at dbPath and initializes the
// schema. The parent directory is created if needed.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Catalog{db: db, log: slog.Default()}, nil
}

// SetLogger replaces the catalog's logger. Useful in tests.
func (c *Catalog) SetLogger(l *slog.Logger) { c.log = l }

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// EnsureLocation returns the id for a location path, creating the row with
// zeroed scan state if it does not exist.
func (c *Catalog) EnsureLocation(path string) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := ensureLocationTx(tx, path)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func ensureLocationTx(tx *sql.Tx, path string) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM locations WHERE path = ?", path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := tx.Exec("INSERT INTO locations(path) VALUES(?)", path)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// resolveLocation picks the longest candidate root that is a prefix of the
// file's path, falling back to the immediate parent directory.
func resolveLocation(path string, candidateRoots []string) string {
	roots := append([]string(nil), candidateRoots...)
	sort.Slice(roots, func(i, j int) bool { return len(roots[i]) > len(roots[j]) })
	for _, root := range roots {
		if strings.HasPrefix(path, root) {
			return root
		}
	}
	return filepath.Dir(path)
}

// UpsertDocument stats the file and inserts or updates its document row by
// path identity, always clearing the deleted flag. Stat races (not found,
// permission denied) return id 0 with a nil error; they are expected and
// never fatal.
func (c *Catalog) UpsertDocument(path string, candidateRoots []string) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := upsertDocumentTx(tx, path, candidateRoots)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// UpsertBatch upserts a batch of discovered paths in a single transaction.
// A failure mid-batch rolls back the whole batch; previously committed
// batches are untouched. Stat-raced paths are skipped silently.
func (c *Catalog) UpsertBatch(paths []string, candidateRoots []string) ([]int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(paths))
	for _, p := range paths {
		id, err := upsertDocumentTx(tx, p, candidateRoots)
		if err != nil {
			return nil, err
		}
		if id != 0 {
			ids = append(ids, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func upsertDocumentTx(tx *sql.Tx, path string, candidateRoots []string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))
	mtime := fi.ModTime().UnixNano()

	locID, err := ensureLocationTx(tx, resolveLocation(path, candidateRoots))
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(`
		INSERT INTO docs(path, name, name_norm, parent, ext, size_bytes, mtime_ns, ctime_ns,
		                 filetype, size_bucket, date_bucket, location_id, deleted)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(path) DO UPDATE SET
		  name=excluded.name,
		  name_norm=excluded.name_norm,
		  parent=excluded.parent,
		  ext=excluded.ext,
		  size_bytes=excluded.size_bytes,
		  mtime_ns=excluded.mtime_ns,
		  ctime_ns=excluded.ctime_ns,
		  filetype=excluded.filetype,
		  size_bucket=excluded.size_bucket,
		  date_bucket=excluded.date_bucket,
		  location_id=excluded.location_id,
		  deleted=0`,
		path, name, NormalizeName(name), filepath.Dir(path), ext,
		fi.Size(), mtime, ctimeNS(fi),
		ClassifyFiletype(ext), SizeBucket(fi.Size()), DateBucket(mtime), locID,
	)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRow("SELECT id FROM docs WHERE path = ?", path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// MarkDeleted tombstones the document for path and removes its content-index
// entry. Unknown paths are a no-op.
func (c *Catalog) MarkDeleted(path string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow("SELECT id FROM docs WHERE path = ?", path).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE docs SET deleted=1 WHERE id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM content_fts WHERE rowid = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateScanState upserts the location's scan-state fields. last_scan_ts is
// always refreshed; complete and lastScanCount overwrite their fields only
// when non-nil.
func (c *Catalog) UpdateScanState(path string, complete *bool, lastScanCount *int) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := ensureLocationTx(tx, path)
	if err != nil {
		return err
	}

	var completeArg, countArg any
	if complete != nil {
		v := 0
		if *complete {
			v = 1
		}
		completeArg = v
	}
	if lastScanCount != nil {
		countArg = *lastScanCount
	}
	_, err = tx.Exec(`
		UPDATE locations SET
		  last_scan_ts = ?,
		  initial_scan_complete = COALESCE(?, initial_scan_complete),
		  last_scan_count = COALESCE(?, last_scan_count)
		WHERE id = ?`,
		time.Now().UnixNano(), completeArg, countArg, id,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// IsInitialScanComplete reports whether the location's initial scan finished.
// Unknown locations report false.
func (c *Catalog) IsInitialScanComplete(path string) (bool, error) {
	var complete bool
	err := c.db.QueryRow("SELECT initial_scan_complete FROM locations WHERE path = ?", path).Scan(&complete)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return complete, nil
}

// CountDocuments counts non-deleted documents under any of the given
// location paths.
func (c *Catalog) CountDocuments(locationPaths []string) (int, error) {
	if len(locationPaths) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM docs
		WHERE deleted=0 AND location_id IN
		  (SELECT id FROM locations WHERE path IN (%s))`,
		placeholders(len(locationPaths)))
	var n int
	if err := c.db.QueryRow(query, stringArgs(locationPaths)...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LocationIDsForPaths returns the ids of the locations matching the given
// paths. Unknown paths are omitted.
func (c *Catalog) LocationIDsForPaths(paths []string) ([]int64, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT id FROM locations WHERE path IN (%s)", placeholders(len(paths)))
	rows, err := c.db.Query(query, stringArgs(paths)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PathsMissingContent lazily produces batches of non-deleted document paths
// under the given roots that have no content-index entry. Each batch holds at
// most batchSize paths; the sequence is finite and consumed once.
func (c *Catalog) PathsMissingContent(roots []string, batchSize int) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		if len(roots) == 0 || batchSize <= 0 {
			return
		}
		query := fmt.Sprintf(`
			SELECT path FROM docs
			WHERE deleted=0
			  AND path > ?
			  AND location_id IN (SELECT id FROM locations WHERE path IN (%s))
			  AND id NOT IN (SELECT rowid FROM content_fts)
			ORDER BY path
			LIMIT ?`,
			placeholders(len(roots)))

		last := ""
		for {
			args := append([]any{last}, stringArgs(roots)...)
			args = append(args, batchSize)
			batch, err := c.queryPaths(query, args...)
			if err != nil {
				c.log.Warn("paths missing content query failed", "error", err)
				return
			}
			if len(batch) == 0 {
				return
			}
			if !yield(batch) {
				return
			}
			last = batch[len(batch)-1]
			if len(batch) < batchSize {
				return
			}
		}
	}
}

func (c *Catalog) queryPaths(query string, args ...any) ([]string, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// UpsertContent replaces the content-index entry for a document.
func (c *Catalog) UpsertContent(docID int64, text string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM content_fts WHERE rowid = ?", docID); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO content_fts(rowid, content) VALUES(?, ?)", docID, text); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteContent removes the content-index entry, tolerating absence.
func (c *Catalog) DeleteContent(docID int64) error {
	_, err := c.db.Exec("DELETE FROM content_fts WHERE rowid = ?", docID)
	return err
}

// HasContent reports whether a content-index entry exists for the document.
func (c *Catalog) HasContent(docID int64) (bool, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM content_fts WHERE rowid = ?", docID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// DocumentByPath looks up a document row by path identity, deleted or not.
func (c *Catalog) DocumentByPath(path string) (*Document, error) {
	row := c.db.QueryRow(`
		SELECT id, path, name, name_norm, parent, ext, size_bytes, mtime_ns, ctime_ns,
		       filetype, size_bucket, date_bucket, COALESCE(location_id, 0), deleted
		FROM docs WHERE path = ?`, path)
	var d Document
	err := row.Scan(&d.ID, &d.Path, &d.Name, &d.NameNorm, &d.Parent, &d.Ext,
		&d.SizeBytes, &d.MtimeNS, &d.CtimeNS,
		&d.Filetype, &d.SizeBucket, &d.DateBucket, &d.LocationID, &d.Deleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
