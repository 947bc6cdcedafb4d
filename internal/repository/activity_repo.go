// Package repository provides data access for persisted records.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/commhub/backend/internal/model"
)

// ActivityRepository stores activity log entries. It implements the hub's
// ActivityRecorder contract; recording is fire-and-forget from the hub's
// perspective, so write failures are logged rather than propagated.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// RecordActivity inserts one activity event. Errors are logged and swallowed.
func (r *ActivityRepository) RecordActivity(ctx context.Context, module, event, status, details string) {
	query := `
		INSERT INTO activity_log (module, event, status, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query, module, event, status, details, time.Now()); err != nil {
		log.Printf("Failed to record activity %s/%s: %v", module, event, err)
	}
}

// GetByID retrieves a single activity record.
func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*model.ActivityRecord, error) {
	query := `
		SELECT id, module, event, status, details, created_at
		FROM activity_log
		WHERE id = ?
	`

	record := &model.ActivityRecord{}
	var details sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.Module,
		&record.Event,
		&record.Status,
		&details,
		&record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity record: %w", err)
	}

	if details.Valid {
		record.Details = details.String
	}

	return record, nil
}

// List retrieves the most recent activity records, newest first.
func (r *ActivityRepository) List(ctx context.Context, limit int) ([]*model.ActivityRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, module, event, status, details, created_at
		FROM activity_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var records []*model.ActivityRecord
	for rows.Next() {
		record := &model.ActivityRecord{}
		var details sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.Module,
			&record.Event,
			&record.Status,
			&details,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}

		if details.Valid {
			record.Details = details.String
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity records: %w", err)
	}

	return records, nil
}
