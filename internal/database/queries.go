package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type Run struct {
	ID          int64     `json:"id" yaml:"id"`
	Pipeline    string    `json:"pipeline" yaml:"pipeline"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`
	ItemCount   int       `json:"item_count" yaml:"item_count"`
	FailedCount int       `json:"failed_count" yaml:"failed_count"`
	Status      RunStatus `json:"status" yaml:"status"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func (d *Database) AddRun(ctx context.Context, run *Run) (int64, error) {
	pipeline := strings.TrimSpace(run.Pipeline)
	if pipeline == "" {
		return 0, errors.New("pipeline is empty")
	}

	query := `insert into runs
	(pipeline, started_at, finished_at, item_count, failed_count, status, error)
	values (?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		pipeline,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.ItemCount,
		run.FailedCount,
		string(run.Status),
		run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("execute query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert ID: %w", err)
	}

	return id, nil
}

func (d *Database) GetRecentRuns(ctx context.Context, pipeline string, limit int) ([]Run, error) {
	query := `select id, pipeline, started_at, finished_at, item_count, failed_count, status, error
	from runs
	where pipeline = ?
	order by started_at desc, id desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, strings.TrimSpace(pipeline), limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"pipeline", pipeline,
				"operation", "GetRecentRuns")
		}
	}()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		if err = rows.Scan(
			&r.ID,
			&r.Pipeline,
			&r.StartedAt,
			&r.FinishedAt,
			&r.ItemCount,
			&r.FailedCount,
			&status,
			&r.Error,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.Status = RunStatus(status)
		runs = append(runs, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}
