package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rainout-go/internal/domain"
)

// RainoutEventRepository implements store.RainoutEventRepository using PostgreSQL.
type RainoutEventRepository struct {
	db *DB
}

// NewRainoutEventRepository creates a new PostgreSQL-backed change log.
func NewRainoutEventRepository(db *DB) *RainoutEventRepository {
	return &RainoutEventRepository{db: db}
}

// Create stores a change record.
func (r *RainoutEventRepository) Create(ctx context.Context, event *domain.RainoutEvent) error {
	query := `
		INSERT INTO rainout_events (
			id, run_id, correlation_id, state_key, idempotency_key,
			tenant_id, zip, facility_id, source_event_id, status,
			previous_status, updated_at, subscription_ids, user_ids, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.pool.Exec(ctx, query,
		event.ID,
		event.RunID,
		event.CorrelationID,
		event.StateKey,
		event.IdempotencyKey,
		event.TenantID,
		event.Zip,
		event.FacilityID,
		event.SourceEventID,
		event.Status,
		event.PreviousStatus,
		event.UpdatedAt,
		nonNil(event.SubscriptionIDs),
		nonNil(event.UserIDs),
		event.DetectedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create rainout event: %w", err)
	}

	return nil
}

// List retrieves change records matching the filter, newest first.
func (r *RainoutEventRepository) List(ctx context.Context, filter domain.RainoutEventFilter) ([]*domain.RainoutEvent, error) {
	query := `
		SELECT id, run_id, correlation_id, state_key, idempotency_key,
			   tenant_id, zip, facility_id, source_event_id, status,
			   previous_status, updated_at, subscription_ids, user_ids, detected_at
		FROM rainout_events
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argNum)
		args = append(args, filter.TenantID)
		argNum++
	}

	if filter.Zip != "" {
		query += fmt.Sprintf(" AND zip = $%d", argNum)
		args = append(args, filter.Zip)
		argNum++
	}

	query += " ORDER BY detected_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rainout events: %w", err)
	}
	defer rows.Close()

	return scanRainoutEvents(rows)
}

func scanRainoutEvents(rows pgx.Rows) ([]*domain.RainoutEvent, error) {
	events := []*domain.RainoutEvent{}

	for rows.Next() {
		var event domain.RainoutEvent
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.CorrelationID,
			&event.StateKey,
			&event.IdempotencyKey,
			&event.TenantID,
			&event.Zip,
			&event.FacilityID,
			&event.SourceEventID,
			&event.Status,
			&event.PreviousStatus,
			&event.UpdatedAt,
			&event.SubscriptionIDs,
			&event.UserIDs,
			&event.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rainout event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rainout events: %w", err)
	}

	return events, nil
}

// nonNil keeps NOT NULL array columns satisfied.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
