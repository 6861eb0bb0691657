package catalog

import (
	"database/sql"
	"fmt"
)

// RecordExtraction upserts an extraction outcome keyed on
// (file_id, extraction_run_id), so retrying a file within a run overwrites
// the earlier attempt instead of violating the uniqueness constraint.
func (c *Catalog) RecordExtraction(fileID, runID int64, method, status string, outputPath, errMsg *string) (int64, error) {
	var id int64
	err := c.db.QueryRow(
		`INSERT INTO extractions (file_id, method, status, output_path, error, extraction_run_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_id, extraction_run_id) DO UPDATE SET
		   method = excluded.method,
		   status = excluded.status,
		   output_path = excluded.output_path,
		   error = excluded.error
		 RETURNING id`,
		fileID, method, status, outputPath, errMsg, runID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record extraction: %w", err)
	}
	return id, nil
}

// ExtractionByFileRun returns the extraction row for a (file, run) pair, or
// nil when absent.
func (c *Catalog) ExtractionByFileRun(fileID, runID int64) (*Extraction, error) {
	e := &Extraction{}
	err := c.db.QueryRow(
		`SELECT id, file_id, method, status, output_path, error, extraction_run_id, created_at
		 FROM extractions WHERE file_id = ? AND extraction_run_id = ?`,
		fileID, runID,
	).Scan(&e.ID, &e.FileID, &e.Method, &e.Status, &e.OutputPath, &e.Error, &e.ExtractionRunID, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extraction by file and run: %w", err)
	}
	return e, nil
}

// ExtractionStats returns extraction counts by status, optionally scoped to
// one run (runID = 0 means all runs). All three statuses are always present
// in the result.
func (c *Catalog) ExtractionStats(runID int64) (map[string]int64, error) {
	query := "SELECT status, COUNT(*) FROM extractions GROUP BY status"
	var args []any
	if runID != 0 {
		query = "SELECT status, COUNT(*) FROM extractions WHERE extraction_run_id = ? GROUP BY status"
		args = append(args, runID)
	}
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("extraction stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int64{ExtractionSuccess: 0, ExtractionFailed: 0, ExtractionSkipped: 0}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan extraction stat: %w", err)
		}
		stats[status] = n
	}
	return stats, rows.Err()
}

// CountPreviouslyExtracted counts distinct files that already have a
// successful extraction from any run.
func (c *Catalog) CountPreviouslyExtracted() (int64, error) {
	var n int64
	err := c.db.QueryRow(
		`SELECT COUNT(DISTINCT f.id)
		 FROM files f
		 INNER JOIN extractions e ON f.id = e.file_id AND e.status = 'success'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count previously extracted: %w", err)
	}
	return n, nil
}

// CountSkipExtensionFiles counts files whose suffix is in the skip list,
// for the extract command's diagnostic summary.
func (c *Catalog) CountSkipExtensionFiles(skipExtensions []string) (int64, error) {
	clause := matchExtensionClause(skipExtensions)
	if clause == "" {
		return 0, nil
	}
	var n int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM files f WHERE " + clause).Scan(&n); err != nil {
		return 0, fmt.Errorf("count skip extension files: %w", err)
	}
	return n, nil
}
