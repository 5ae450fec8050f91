package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voyago/internal/models"
)

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
         FROM sync_queue
         WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at ASC LIMIT ?`,
		time.Now(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		var payload, lastError sql.NullString
		var processedAt, nextRetryAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.TaskType, &t.BookingID, &payload, &t.Status, &t.RetryCount, &lastError, &t.CreatedAt, &processedAt, &nextRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		t.Payload = payload.String
		t.LastError = lastError.String
		if processedAt.Valid {
			t.ProcessedAt = &processedAt.Time
		}
		if nextRetryAt.Valid {
			t.NextRetryAt = &nextRetryAt.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) MarkSyncTaskDone(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'done', processed_at = ? WHERE id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark sync task done: %w", err)
	}
	return nil
}

func (db *DB) MarkSyncTaskRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'retry', retry_count = ?, last_error = ?, next_retry_at = ? WHERE id = ?`,
		retryCount, lastError, nextRetryAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark sync task for retry: %w", err)
	}
	return nil
}

func (db *DB) MarkSyncTaskDead(ctx context.Context, id int64, lastError string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'dead', last_error = ?, processed_at = ? WHERE id = ?`,
		lastError, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark sync task dead: %w", err)
	}
	return nil
}
