package catalog

import "fmt"

// ExtractionQueue filters the "files needing extraction" work queue.
// Force includes files that already have a successful extraction.
// BatchSize/Offset page the queue for the pool's lazy iterator; Limit caps
// the total when BatchSize is zero.
type ExtractionQueue struct {
	Force          bool
	SkipExtensions []string
	Limit          int
	BatchSize      int
	Offset         int
}

func (q ExtractionQueue) baseQuery(selectCols string) (string, bool) {
	hasWhere := false
	query := "SELECT " + selectCols + " FROM files f"
	if !q.Force {
		query = "SELECT " + selectCols + ` FROM files f
			LEFT JOIN extractions e ON f.id = e.file_id AND e.status = 'success'
			WHERE e.id IS NULL`
		hasWhere = true
	}
	if clause := skipExtensionClause(q.SkipExtensions); clause != "" {
		if hasWhere {
			query += " AND " + clause
		} else {
			query += " WHERE " + clause
			hasWhere = true
		}
	}
	return query, hasWhere
}

// FilesNeedingExtraction returns the next page of files with no successful
// extraction, ordered by path for stable batching.
func (c *Catalog) FilesNeedingExtraction(q ExtractionQueue) ([]*ExtractionTask, error) {
	query, _ := q.baseQuery("f.id, f.path, f.sha256")
	query += " ORDER BY f.path"

	var args []any
	switch {
	case q.BatchSize > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.BatchSize, q.Offset)
	case q.Limit > 0:
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("files needing extraction: %w", err)
	}
	defer rows.Close()

	var tasks []*ExtractionTask
	for rows.Next() {
		t := &ExtractionTask{}
		if err := rows.Scan(&t.FileID, &t.Path, &t.SHA256); err != nil {
			return nil, fmt.Errorf("scan extraction task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountFilesNeedingExtraction is the count variant of FilesNeedingExtraction,
// used for progress totals.
func (c *Catalog) CountFilesNeedingExtraction(q ExtractionQueue) (int64, error) {
	query, _ := q.baseQuery("COUNT(*)")
	var n int64
	if err := c.db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files needing extraction: %w", err)
	}
	return n, nil
}

// FilesNeedingLabeling returns files with a successful extraction and no
// label, one row per file. When several success rows exist across extraction
// runs, MAX(output_path) picks the sidecar; digests are stable per file so
// every success row points at the same content-addressed path.
func (c *Catalog) FilesNeedingLabeling(force bool, limit int) ([]*LabelingCandidate, error) {
	query := `
		SELECT f.id, f.path, f.sha256, f.size, f.mime_type, f.mtime,
		       MAX(e.output_path), MAX(e.method)
		FROM files f
		INNER JOIN extractions e ON f.id = e.file_id AND e.status = 'success'
		LEFT JOIN labels l ON f.id = l.file_id
		WHERE l.id IS NULL
		GROUP BY f.id
		ORDER BY f.path`
	if force {
		query = `
			SELECT f.id, f.path, f.sha256, f.size, f.mime_type, f.mtime,
			       MAX(e.output_path), MAX(e.method)
			FROM files f
			INNER JOIN extractions e ON f.id = e.file_id AND e.status = 'success'
			GROUP BY f.id
			ORDER BY f.path`
	}

	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("files needing labeling: %w", err)
	}
	defer rows.Close()

	var cands []*LabelingCandidate
	for rows.Next() {
		cand := &LabelingCandidate{}
		if err := rows.Scan(
			&cand.FileID, &cand.Path, &cand.SHA256, &cand.Size, &cand.MimeType,
			&cand.Mtime, &cand.ExtractionPath, &cand.ExtractionMethod,
		); err != nil {
			return nil, fmt.Errorf("scan labeling candidate: %w", err)
		}
		cands = append(cands, cand)
	}
	return cands, rows.Err()
}

// CountFilesNeedingLabeling is the count variant of FilesNeedingLabeling.
func (c *Catalog) CountFilesNeedingLabeling(force bool) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT f.id)
		FROM files f
		INNER JOIN extractions e ON f.id = e.file_id AND e.status = 'success'
		LEFT JOIN labels l ON f.id = l.file_id
		WHERE l.id IS NULL`
	if force {
		query = `
			SELECT COUNT(DISTINCT f.id)
			FROM files f
			INNER JOIN extractions e ON f.id = e.file_id AND e.status = 'success'`
	}
	var n int64
	if err := c.db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files needing labeling: %w", err)
	}
	return n, nil
}

// Stats is the coarse inventory shown by the stats command.
type Stats struct {
	TotalFiles       int64
	TotalExtractions int64 // successful only
	TotalLabels      int64
	TotalPlans       int64
	TotalRuns        int64
	RunsByType       map[string]int64 // completed runs only
}

func (c *Catalog) GetStats() (*Stats, error) {
	s := &Stats{RunsByType: map[string]int64{}}
	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM files", &s.TotalFiles},
		{"SELECT COUNT(*) FROM extractions WHERE status = 'success'", &s.TotalExtractions},
		{"SELECT COUNT(*) FROM labels", &s.TotalLabels},
		{"SELECT COUNT(*) FROM plans", &s.TotalPlans},
		{"SELECT COUNT(*) FROM runs", &s.TotalRuns},
	}
	for _, cq := range counts {
		if err := c.db.QueryRow(cq.query).Scan(cq.dst); err != nil {
			return nil, fmt.Errorf("stats query: %w", err)
		}
	}

	rows, err := c.db.Query("SELECT run_type, COUNT(*) FROM runs WHERE status = 'completed' GROUP BY run_type")
	if err != nil {
		return nil, fmt.Errorf("runs by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan run type stat: %w", err)
		}
		s.RunsByType[k] = n
	}
	return s, rows.Err()
}
