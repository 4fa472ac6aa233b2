package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

const apColumns = `ap_mac, pool_id, tanaza_label, tanaza_online,
	   tanaza_connected_clients, capacity_max, last_computed_at, created_at, updated_at`

type AccessPointRepository struct {
	pool *pgxpool.Pool
}

func NewAccessPointRepository(pool *pgxpool.Pool) *AccessPointRepository {
	return &AccessPointRepository{pool: pool}
}

// Upsert imports or refreshes an AP keyed by MAC. Pool assignment is only
// written on first import; reassignment goes through UpdateAssignment.
func (r *AccessPointRepository) Upsert(ctx context.Context, ap *models.AccessPoint) error {
	query := `
		INSERT INTO portal.access_points (
			ap_mac, pool_id, tanaza_label, tanaza_online,
			tanaza_connected_clients, capacity_max, last_computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ap_mac) DO UPDATE SET
			tanaza_label = EXCLUDED.tanaza_label,
			tanaza_online = EXCLUDED.tanaza_online,
			tanaza_connected_clients = EXCLUDED.tanaza_connected_clients,
			last_computed_at = EXCLUDED.last_computed_at,
			updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query,
		ap.APMAC, ap.PoolID, ap.TanazaLabel, ap.TanazaOnline,
		ap.TanazaConnectedClients, ap.CapacityMax, ap.LastComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert access point: %w", err)
	}
	return nil
}

// GetByMAC retrieves an AP by MAC.
func (r *AccessPointRepository) GetByMAC(ctx context.Context, apMAC string) (*models.AccessPoint, error) {
	query := `
		SELECT ` + apColumns + `
		FROM portal.access_points
		WHERE ap_mac = $1
	`
	return r.scanAP(r.pool.QueryRow(ctx, query, apMAC))
}

// List retrieves APs, optionally filtered by pool.
func (r *AccessPointRepository) List(ctx context.Context, poolID string) ([]*models.AccessPoint, error) {
	query := `
		SELECT ` + apColumns + `
		FROM portal.access_points
		WHERE ($1 = '' OR pool_id::text = $1)
		ORDER BY ap_mac
	`
	rows, err := r.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("query access points: %w", err)
	}
	defer rows.Close()

	var aps []*models.AccessPoint
	for rows.Next() {
		ap := &models.AccessPoint{}
		err := rows.Scan(
			&ap.APMAC, &ap.PoolID, &ap.TanazaLabel, &ap.TanazaOnline,
			&ap.TanazaConnectedClients, &ap.CapacityMax, &ap.LastComputedAt,
			&ap.CreatedAt, &ap.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan access point row: %w", err)
		}
		aps = append(aps, ap)
	}
	return aps, rows.Err()
}

// UpdateAssignment moves an AP between pools and/or resizes its capacity.
func (r *AccessPointRepository) UpdateAssignment(ctx context.Context, apMAC string, poolID *string, capacityMax *int) error {
	query := `
		UPDATE portal.access_points SET
			pool_id = COALESCE($2, pool_id),
			capacity_max = COALESCE($3, capacity_max),
			updated_at = now()
		WHERE ap_mac = $1
	`
	tag, err := r.pool.Exec(ctx, query, apMAC, poolID, capacityMax)
	if err != nil {
		return fmt.Errorf("update access point: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateControllerState refreshes the polled Tanaza fields.
func (r *AccessPointRepository) UpdateControllerState(ctx context.Context, apMAC string, online bool, connectedClients int, at time.Time) error {
	query := `
		UPDATE portal.access_points SET
			tanaza_online = $2,
			tanaza_connected_clients = $3,
			last_computed_at = $4,
			updated_at = now()
		WHERE ap_mac = $1
	`
	_, err := r.pool.Exec(ctx, query, apMAC, online, connectedClients, at)
	if err != nil {
		return fmt.Errorf("update controller state: %w", err)
	}
	return nil
}

// PoolStats aggregates AP counts and connected clients per pool for the
// saturation view.
func (r *AccessPointRepository) PoolStats(ctx context.Context) (map[string]struct{ APs, Clients int }, error) {
	query := `
		SELECT pool_id::text, COUNT(*), COALESCE(SUM(tanaza_connected_clients), 0)
		FROM portal.access_points
		WHERE pool_id IS NOT NULL
		GROUP BY pool_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pool stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]struct{ APs, Clients int }{}
	for rows.Next() {
		var poolID string
		var aps, clients int
		if err := rows.Scan(&poolID, &aps, &clients); err != nil {
			return nil, fmt.Errorf("scan pool stats row: %w", err)
		}
		stats[poolID] = struct{ APs, Clients int }{aps, clients}
	}
	return stats, rows.Err()
}

func (r *AccessPointRepository) scanAP(row pgx.Row) (*models.AccessPoint, error) {
	ap := &models.AccessPoint{}
	err := row.Scan(
		&ap.APMAC, &ap.PoolID, &ap.TanazaLabel, &ap.TanazaOnline,
		&ap.TanazaConnectedClients, &ap.CapacityMax, &ap.LastComputedAt,
		&ap.CreatedAt, &ap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan access point: %w", err)
	}
	return ap, nil
}
