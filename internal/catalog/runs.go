package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// CreateRun inserts a run row in state "running" and returns its id. The
// config snapshot is stored as JSON for provenance; nil is allowed.
func (c *Catalog) CreateRun(runType string, config any) (int64, error) {
	var cfg *string
	if config != nil {
		b, err := json.Marshal(config)
		if err != nil {
			return 0, fmt.Errorf("marshal run config: %w", err)
		}
		s := string(b)
		cfg = &s
	}
	res, err := c.db.Exec("INSERT INTO runs (run_type, config) VALUES (?, ?)", runType, cfg)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// CompleteRun marks a run terminal: failed when errMsg is non-empty,
// completed otherwise. Status and completed_at are set in one statement.
func (c *Catalog) CompleteRun(runID int64, errMsg string) error {
	status := RunStatusCompleted
	var e *string
	if errMsg != "" {
		status = RunStatusFailed
		e = &errMsg
	}
	_, err := c.db.Exec(
		"UPDATE runs SET completed_at = strftime('%s', 'now'), status = ?, error = ? WHERE id = ?",
		status, e, runID,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run of a type, or nil when none exist.
func (c *Catalog) LatestRun(runType string) (*Run, error) {
	r := &Run{}
	var cfg sql.NullString
	err := c.db.QueryRow(
		`SELECT id, run_type, COALESCE(config, ''), started_at, completed_at, status, error
		 FROM runs WHERE run_type = ? ORDER BY id DESC LIMIT 1`,
		runType,
	).Scan(&r.ID, &r.RunType, &cfg, &r.StartedAt, &r.CompletedAt, &r.Status, &r.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	r.Config = cfg.String
	return r, nil
}

// RunByID returns the run row, or nil when absent.
func (c *Catalog) RunByID(runID int64) (*Run, error) {
	r := &Run{}
	var cfg sql.NullString
	err := c.db.QueryRow(
		"SELECT id, run_type, COALESCE(config, ''), started_at, completed_at, status, error FROM runs WHERE id = ?",
		runID,
	).Scan(&r.ID, &r.RunType, &cfg, &r.StartedAt, &r.CompletedAt, &r.Status, &r.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	r.Config = cfg.String
	return r, nil
}
