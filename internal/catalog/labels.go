package catalog

import (
	"database/sql"
	"fmt"
)

// RecordLabel upserts a label keyed on (file_id, labeling_run_id) and
// returns the label id.
func (c *Catalog) RecordLabel(l *Label) (int64, error) {
	var id int64
	err := c.db.QueryRow(
		`INSERT INTO labels (
		   file_id, doc_type, title, canonical_filename, suggested_tags,
		   target_group_path, date, issuer, source, confidence, why,
		   model_name, prompt_hash, labeling_run_id
		 )
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_id, labeling_run_id) DO UPDATE SET
		   doc_type = excluded.doc_type,
		   title = excluded.title,
		   canonical_filename = excluded.canonical_filename,
		   suggested_tags = excluded.suggested_tags,
		   target_group_path = excluded.target_group_path,
		   date = excluded.date,
		   issuer = excluded.issuer,
		   source = excluded.source,
		   confidence = excluded.confidence,
		   why = excluded.why,
		   model_name = excluded.model_name,
		   prompt_hash = excluded.prompt_hash
		 RETURNING id`,
		l.FileID, l.DocType, l.Title, l.CanonicalFilename, marshalTags(l.SuggestedTags),
		l.TargetGroupPath, l.Date, l.Issuer, l.Source, l.Confidence, l.Why,
		l.ModelName, l.PromptHash, l.LabelingRunID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record label: %w", err)
	}
	l.ID = id
	return id, nil
}

const labelColumns = `id, file_id, doc_type, title, canonical_filename, suggested_tags,
	target_group_path, date, issuer, source, confidence, why,
	model_name, prompt_hash, labeling_run_id, created_at`

func scanLabel(scanner interface{ Scan(...any) error }) (*Label, error) {
	l := &Label{}
	var tags sql.NullString
	if err := scanner.Scan(
		&l.ID, &l.FileID, &l.DocType, &l.Title, &l.CanonicalFilename, &tags,
		&l.TargetGroupPath, &l.Date, &l.Issuer, &l.Source, &l.Confidence, &l.Why,
		&l.ModelName, &l.PromptHash, &l.LabelingRunID, &l.CreatedAt,
	); err != nil {
		return nil, err
	}
	l.SuggestedTags = unmarshalTags(tags.String)
	return l, nil
}

// LabelByFileRun returns the label for a (file, run) pair, or nil.
func (c *Catalog) LabelByFileRun(fileID, runID int64) (*Label, error) {
	row := c.db.QueryRow(
		"SELECT "+labelColumns+" FROM labels WHERE file_id = ? AND labeling_run_id = ?",
		fileID, runID,
	)
	l, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("label by file and run: %w", err)
	}
	return l, nil
}

// LatestLabel returns the most recently created label for a file, or nil.
func (c *Catalog) LatestLabel(fileID int64) (*Label, error) {
	row := c.db.QueryRow(
		"SELECT "+labelColumns+" FROM labels WHERE file_id = ? ORDER BY created_at DESC, id DESC LIMIT 1",
		fileID,
	)
	l, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest label: %w", err)
	}
	return l, nil
}

// LabelsByRun returns all labels from one labeling run, ordered by file path
// so planner output is deterministic.
func (c *Catalog) LabelsByRun(runID int64) ([]*Label, error) {
	rows, err := c.db.Query(
		`SELECT `+labelColumns+` FROM labels
		 WHERE labeling_run_id = ?
		 ORDER BY (SELECT path FROM files WHERE files.id = labels.file_id)`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("labels by run: %w", err)
	}
	defer rows.Close()
	var labels []*Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan label row: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// LabelingStats summarizes labels, optionally scoped to one run (runID = 0
// means all runs): totals, doc-type and model breakdowns, and the confidence
// distribution.
type LabelingStats struct {
	Total              int64
	ByDocType          map[string]int64
	ByModel            map[string]int64
	ConfidenceAvg      float64
	ConfidenceMin      float64
	ConfidenceMax      float64
	LowConfidenceCount int64 // confidence < 0.7
}

func (c *Catalog) GetLabelingStats(runID int64) (*LabelingStats, error) {
	filter := ""
	var args []any
	if runID != 0 {
		filter = " WHERE labeling_run_id = ?"
		args = append(args, runID)
	}

	stats := &LabelingStats{ByDocType: map[string]int64{}, ByModel: map[string]int64{}}

	if err := c.db.QueryRow("SELECT COUNT(*) FROM labels"+filter, args...).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count labels: %w", err)
	}

	rows, err := c.db.Query("SELECT doc_type, COUNT(*) FROM labels"+filter+" GROUP BY doc_type", args...)
	if err != nil {
		return nil, fmt.Errorf("labels by doc type: %w", err)
	}
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan doc type stat: %w", err)
		}
		stats.ByDocType[k] = n
	}
	rows.Close()

	rows, err = c.db.Query("SELECT model_name, COUNT(*) FROM labels"+filter+" GROUP BY model_name", args...)
	if err != nil {
		return nil, fmt.Errorf("labels by model: %w", err)
	}
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan model stat: %w", err)
		}
		stats.ByModel[k] = n
	}
	rows.Close()

	var avg, min, max sql.NullFloat64
	err = c.db.QueryRow(
		"SELECT AVG(confidence), MIN(confidence), MAX(confidence) FROM labels"+filter, args...,
	).Scan(&avg, &min, &max)
	if err != nil {
		return nil, fmt.Errorf("confidence stats: %w", err)
	}
	stats.ConfidenceAvg, stats.ConfidenceMin, stats.ConfidenceMax = avg.Float64, min.Float64, max.Float64

	lowFilter := " WHERE confidence < 0.7"
	if runID != 0 {
		lowFilter += " AND labeling_run_id = ?"
	}
	if err := c.db.QueryRow("SELECT COUNT(*) FROM labels"+lowFilter, args...).Scan(&stats.LowConfidenceCount); err != nil {
		return nil, fmt.Errorf("low confidence count: %w", err)
	}

	return stats, nil
}
