package postgres

import (
	"context"
	"fmt"

	"rainout-go/internal/domain"
)

// AuditLogRepository implements store.AuditLogRepository using PostgreSQL.
type AuditLogRepository struct {
	db *DB
}

// NewAuditLogRepository creates a new PostgreSQL-backed audit log.
func NewAuditLogRepository(db *DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Write stores an audit record.
func (r *AuditLogRepository) Write(ctx context.Context, record *domain.AuditRecord) error {
	query := `
		INSERT INTO audit_logs (
			id, run_id, correlation_id, tenant_id, zip, status, error_class,
			events_seen, changed_events, skipped_unchanged_events,
			notifications_sent, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.pool.Exec(ctx, query,
		record.ID,
		record.RunID,
		record.CorrelationID,
		record.TenantID,
		record.Zip,
		record.Status,
		record.ErrorClass,
		record.EventsSeen,
		record.ChangedEvents,
		record.SkippedUnchangedEvents,
		record.NotificationsSent,
		record.DurationMs,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	return nil
}

// List retrieves audit records matching the filter, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, run_id, correlation_id, tenant_id, zip, status, error_class,
			   events_seen, changed_events, skipped_unchanged_events,
			   notifications_sent, duration_ms, created_at
		FROM audit_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argNum)
		args = append(args, filter.TenantID)
		argNum++
	}

	if filter.RunID != "" {
		query += fmt.Sprintf(" AND run_id = $%d", argNum)
		args = append(args, filter.RunID)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := []*domain.AuditRecord{}
	for rows.Next() {
		var record domain.AuditRecord
		err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.CorrelationID,
			&record.TenantID,
			&record.Zip,
			&record.Status,
			&record.ErrorClass,
			&record.EventsSeen,
			&record.ChangedEvents,
			&record.SkippedUnchangedEvents,
			&record.NotificationsSent,
			&record.DurationMs,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}
