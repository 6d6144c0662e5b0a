package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// ListLimitDefault is the number of runs returned when no limit is set.
	ListLimitDefault = 20

	timeFormat = time.RFC3339
)

var (
	insertRun = `INSERT INTO run (
			id, version, metric, count, weak_pct, strong_pct, promoted,
			counter_updated, degraded, best_version, report_key, location, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRuns = `SELECT
			id, version, metric, count, weak_pct, strong_pct, promoted,
			counter_updated, degraded, best_version, report_key, location, created_at
		FROM run
		ORDER BY created_at DESC, version DESC
		LIMIT ?`
)

// Run is a single recorded pipeline run.
type Run struct {
	ID             string    `json:"id" yaml:"id"`
	Version        int       `json:"version" yaml:"version"`
	Metric         float64   `json:"metric" yaml:"metric"`
	Count          int       `json:"count" yaml:"count"`
	WeakPct        float64   `json:"weak_pct" yaml:"weakPct"`
	StrongPct      float64   `json:"strong_pct" yaml:"strongPct"`
	Promoted       bool      `json:"promoted" yaml:"promoted"`
	CounterUpdated bool      `json:"counter_updated" yaml:"counterUpdated"`
	Degraded       bool      `json:"degraded" yaml:"degraded"`
	BestVersion    int       `json:"best_version" yaml:"bestVersion"`
	ReportKey      string    `json:"report_key" yaml:"reportKey"`
	Location       string    `json:"location" yaml:"location"`
	CreatedAt      time.Time `json:"created_at" yaml:"createdAt"`
}

// NewRunID returns a new random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun inserts the run. Missing ID and creation time are filled in.
func SaveRun(db *sql.DB, r *Run) error {
	if db == nil {
		return errDBNotInitialized
	}
	if r == nil {
		return errors.New("run required")
	}
	if r.ID == "" {
		r.ID = NewRunID()
	} else if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", r.ID, err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	stmt, err := db.Prepare(insertRun)
	if err != nil {
		return fmt.Errorf("failed to prepare run insert statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(r.ID, r.Version, r.Metric, r.Count, r.WeakPct, r.StrongPct,
		r.Promoted, r.CounterUpdated, r.Degraded, r.BestVersion, r.ReportKey, r.Location,
		r.CreatedAt.UTC().Format(timeFormat)); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = ListLimitDefault
	}

	rows, err := db.Query(selectRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r := &Run{}
		var created string
		if err := rows.Scan(&r.ID, &r.Version, &r.Metric, &r.Count, &r.WeakPct, &r.StrongPct,
			&r.Promoted, &r.CounterUpdated, &r.Degraded, &r.BestVersion, &r.ReportKey, &r.Location,
			&created); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if r.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
			return nil, fmt.Errorf("failed to parse run time %q: %w", created, err)
		}
		list = append(list, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run rows: %w", err)
	}

	return list, nil
}
