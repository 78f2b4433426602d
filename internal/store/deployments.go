package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tt-studio/console/internal/model"
)

// Deployments is the local history of deployment attempts.
type Deployments struct {
	db *sql.DB
}

// Record inserts rec, or replaces the row with the same job id. Synchronous
// deployments have no job id; callers give them a generated one.
func (s *Deployments) Record(ctx context.Context, rec *model.DeploymentRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (job_id, model_id, weights_id, status, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (job_id) DO UPDATE SET
		   model_id = excluded.model_id, weights_id = excluded.weights_id,
		   status = excluded.status, message = excluded.message, updated_at = excluded.updated_at`,
		rec.JobID, rec.ModelID, rec.WeightsID, rec.Status, rec.Message, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("record deployment %s: %w", rec.JobID, err)
	}
	return nil
}

// UpdateStatus sets the status and message of an existing record.
func (s *Deployments) UpdateStatus(ctx context.Context, jobID, status, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ?, message = ?, updated_at = ? WHERE job_id = ?`,
		status, message, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("update deployment %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deployment %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("update deployment %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// Get returns the record for jobID.
func (s *Deployments) Get(ctx context.Context, jobID string) (*model.DeploymentRecord, error) {
	var r model.DeploymentRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, model_id, weights_id, status, message, created_at, updated_at
		 FROM deployments WHERE job_id = ?`, jobID,
	).Scan(&r.JobID, &r.ModelID, &r.WeightsID, &r.Status, &r.Message, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get deployment %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", jobID, err)
	}
	return &r, nil
}

// Recent returns up to limit records, newest first.
func (s *Deployments) Recent(ctx context.Context, limit int) ([]model.DeploymentRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, model_id, weights_id, status, message, created_at, updated_at
		 FROM deployments ORDER BY created_at DESC, job_id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var records []model.DeploymentRecord
	for rows.Next() {
		var r model.DeploymentRecord
		if err := rows.Scan(&r.JobID, &r.ModelID, &r.WeightsID, &r.Status, &r.Message, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return records, nil
}
