package catalog

import (
	"database/sql"
	"fmt"
)

// UpsertFile inserts a file row by path or, on conflict, refreshes digest,
// size, MIME, timestamps, and the scan run that last saw it. This is what
// makes re-scans idempotent. Returns the file id.
func (c *Catalog) UpsertFile(f *File) (int64, error) {
	var id int64
	err := c.db.QueryRow(
		`INSERT INTO files (path, sha256, size, mime_type, mtime, ctime, scan_run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   sha256 = excluded.sha256,
		   size = excluded.size,
		   mime_type = excluded.mime_type,
		   mtime = excluded.mtime,
		   ctime = excluded.ctime,
		   scan_run_id = excluded.scan_run_id
		 RETURNING id`,
		f.Path, f.SHA256, f.Size, f.MimeType, f.Mtime, f.Ctime, f.ScanRunID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert file: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileColumns = "id, path, sha256, size, mime_type, mtime, ctime, scan_run_id, created_at"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	if err := scanner.Scan(
		&f.ID, &f.Path, &f.SHA256, &f.Size, &f.MimeType, &f.Mtime, &f.Ctime, &f.ScanRunID, &f.CreatedAt,
	); err != nil {
		return nil, err
	}
	return f, nil
}

// FileByPath returns the file row for an absolute path, or nil when absent.
func (c *Catalog) FileByPath(path string) (*File, error) {
	row := c.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE path = ?", path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FileByID returns the file row by id, or nil when absent.
func (c *Catalog) FileByID(id int64) (*File, error) {
	row := c.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// FilesByRun returns every file last touched by the given scan run.
func (c *Catalog) FilesByRun(runID int64) ([]*File, error) {
	rows, err := c.db.Query("SELECT "+fileColumns+" FROM files WHERE scan_run_id = ? ORDER BY path", runID)
	if err != nil {
		return nil, fmt.Errorf("files by run: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CountFiles returns the total file inventory size.
func (c *Catalog) CountFiles() (int64, error) {
	var n int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}
