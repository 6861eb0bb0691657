// Package catalog is the SQLite persistence layer for the lucien pipeline:
// files, runs, extractions, labels, and plans, plus the work-queue queries
// that drive the extract and label phases.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is bumped whenever schemaDDL changes incompatibly.
// Migrations run forward only; a catalog written by a newer engine
// refuses to open.
const schemaVersion = 1

// Catalog is the data access layer over a single SQLite file.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at dbPath with WAL mode and a
// 30-second busy timeout, then applies the schema.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions and tests.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// migrate applies the versioned schema. Opening an already-current catalog is
// a no-op; an older catalog is migrated inside a single transaction; a newer
// catalog is an error.
func (c *Catalog) migrate() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER DEFAULT (strftime('%s', 'now'))
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	err := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case current == schemaVersion:
		return nil
	case current > schemaVersion:
		return fmt.Errorf("catalog schema version %d is newer than supported version %d", current, schemaVersion)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

const schemaDDL = `
-- Run history and provenance

CREATE TABLE IF NOT EXISTS runs (
  id            INTEGER PRIMARY KEY,
  run_type      TEXT NOT NULL,
  config        TEXT,
  started_at    INTEGER DEFAULT (strftime('%s', 'now')),
  completed_at  INTEGER,
  status        TEXT DEFAULT 'running',
  error         TEXT
);

-- File inventory from the source tree

CREATE TABLE IF NOT EXISTS files (
  id            INTEGER PRIMARY KEY,
  path          TEXT NOT NULL UNIQUE,
  sha256        TEXT NOT NULL,
  size          INTEGER NOT NULL,
  mime_type     TEXT,
  mtime         INTEGER,
  ctime         INTEGER,
  scan_run_id   INTEGER REFERENCES runs(id),
  created_at    INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_files_sha256 ON files(sha256);
CREATE INDEX IF NOT EXISTS idx_files_scan_run_id ON files(scan_run_id);

-- Text extraction results

CREATE TABLE IF NOT EXISTS extractions (
  id                 INTEGER PRIMARY KEY,
  file_id            INTEGER NOT NULL REFERENCES files(id),
  method             TEXT NOT NULL,
  status             TEXT NOT NULL,
  output_path        TEXT,
  error              TEXT,
  extraction_run_id  INTEGER REFERENCES runs(id),
  created_at         INTEGER DEFAULT (strftime('%s', 'now')),
  UNIQUE(file_id, extraction_run_id)
);

CREATE INDEX IF NOT EXISTS idx_extractions_file_id ON extractions(file_id);
CREATE INDEX IF NOT EXISTS idx_extractions_status ON extractions(status);

-- LLM labeling results

CREATE TABLE IF NOT EXISTS labels (
  id                 INTEGER PRIMARY KEY,
  file_id            INTEGER NOT NULL REFERENCES files(id),
  doc_type           TEXT NOT NULL,
  title              TEXT,
  canonical_filename TEXT,
  suggested_tags     TEXT,
  target_group_path  TEXT,
  date               TEXT,
  issuer             TEXT,
  source             TEXT,
  confidence         REAL,
  why                TEXT,
  model_name         TEXT NOT NULL,
  prompt_hash        TEXT NOT NULL,
  labeling_run_id    INTEGER REFERENCES runs(id),
  created_at         INTEGER DEFAULT (strftime('%s', 'now')),
  UNIQUE(file_id, labeling_run_id)
);

CREATE INDEX IF NOT EXISTS idx_labels_file_id ON labels(file_id);
CREATE INDEX IF NOT EXISTS idx_labels_doc_type ON labels(doc_type);

-- Materialization plans

CREATE TABLE IF NOT EXISTS plans (
  id               INTEGER PRIMARY KEY,
  file_id          INTEGER NOT NULL REFERENCES files(id),
  label_id         INTEGER REFERENCES labels(id),
  operation        TEXT NOT NULL,
  source_path      TEXT NOT NULL,
  target_path      TEXT NOT NULL,
  target_filename  TEXT NOT NULL,
  tags             TEXT,
  needs_review     BOOLEAN DEFAULT 0,
  plan_run_id      INTEGER REFERENCES runs(id),
  created_at       INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_plans_file_id ON plans(file_id);
CREATE INDEX IF NOT EXISTS idx_plans_plan_run_id ON plans(plan_run_id);
`
