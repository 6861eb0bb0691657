package catalog

import (
	"database/sql"
	"fmt"
)

// InsertPlan records a proposed materialization and returns the plan id.
func (c *Catalog) InsertPlan(p *Plan) (int64, error) {
	res, err := c.db.Exec(
		`INSERT INTO plans (
		   file_id, label_id, operation, source_path, target_path,
		   target_filename, tags, needs_review, plan_run_id
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FileID, p.LabelID, p.Operation, p.SourcePath, p.TargetPath,
		p.TargetFilename, marshalTags(p.Tags), p.NeedsReview, p.PlanRunID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

// PlansByRun returns all plan rows from one plan run, ordered by target.
func (c *Catalog) PlansByRun(runID int64) ([]*Plan, error) {
	rows, err := c.db.Query(
		`SELECT id, file_id, label_id, operation, source_path, target_path,
		        target_filename, tags, needs_review, plan_run_id, created_at
		 FROM plans WHERE plan_run_id = ?
		 ORDER BY target_path, target_filename`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("plans by run: %w", err)
	}
	defer rows.Close()
	var plans []*Plan
	for rows.Next() {
		p := &Plan{}
		var tags sql.NullString
		if err := rows.Scan(
			&p.ID, &p.FileID, &p.LabelID, &p.Operation, &p.SourcePath, &p.TargetPath,
			&p.TargetFilename, &tags, &p.NeedsReview, &p.PlanRunID, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		p.Tags = unmarshalTags(tags.String)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
