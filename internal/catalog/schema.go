package catalog

import "database/sql"

// The content_fts virtual table requires the FTS5 extension; build with
// -tags sqlite_fts5 so the bundled SQLite includes it.
const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS locations (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    path                  TEXT NOT NULL UNIQUE,
    initial_scan_complete INTEGER NOT NULL DEFAULT 0,
    last_scan_ts          INTEGER NOT NULL DEFAULT 0,
    last_scan_count       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS docs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    path        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    name_norm   TEXT NOT NULL,
    parent      TEXT NOT NULL,
    ext         TEXT NOT NULL DEFAULT '',
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    mtime_ns    INTEGER NOT NULL DEFAULT 0,
    ctime_ns    INTEGER NOT NULL DEFAULT 0,
    filetype    TEXT NOT NULL DEFAULT 'Other',
    size_bucket TEXT NOT NULL DEFAULT '',
    date_bucket TEXT NOT NULL DEFAULT '',
    location_id INTEGER REFERENCES locations(id),
    deleted     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_docs_name_norm ON docs(name_norm);
CREATE INDEX IF NOT EXISTS idx_docs_location ON docs(location_id);
CREATE INDEX IF NOT EXISTS idx_docs_mtime ON docs(mtime_ns);
CREATE INDEX IF NOT EXISTS idx_docs_facets ON docs(filetype, size_bucket, date_bucket);

CREATE VIRTUAL TABLE IF NOT EXISTS content_fts USING fts5(content);
`

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
