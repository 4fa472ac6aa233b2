package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

// AuditRepository is append-only: events are written once and never updated.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append writes one audit event.
func (r *AuditRepository) Append(ctx context.Context, e *models.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO portal.audit_events (
			id, event_type, status, request_ref, mvola_phone,
			client_mac, ap_mac, plan_id, pool_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.EventType, e.Status, e.RequestRef, e.MvolaPhone,
		e.ClientMAC, e.APMAC, e.PlanID, e.PoolID, e.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List queries audit events with optional filters and limit/offset paging.
func (r *AuditRepository) List(ctx context.Context, q *models.AuditListQuery) ([]*models.AuditEvent, error) {
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, event_type, status, request_ref, mvola_phone,
		       client_mac, ap_mac, plan_id, pool_id, metadata, created_at
		FROM portal.audit_events
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR client_mac = $3)
		  AND ($4 = '' OR plan_id::text = $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query, q.EventType, q.Status, q.ClientMAC, q.PlanID, limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		e := &models.AuditEvent{}
		err := rows.Scan(
			&e.ID, &e.EventType, &e.Status, &e.RequestRef, &e.MvolaPhone,
			&e.ClientMAC, &e.APMAC, &e.PlanID, &e.PoolID, &e.Metadata, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
