package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

const poolColumns = `id, name, capacity_max, system, mikrotik_ip, radius_nas_id,
	   contact_phone, created_at, updated_at`

type PoolRepository struct {
	pool *pgxpool.Pool
}

func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return &PoolRepository{pool: pool}
}

// Create inserts a new pool.
func (r *PoolRepository) Create(ctx context.Context, p *models.Pool) error {
	query := `
		INSERT INTO portal.pools (
			id, name, capacity_max, system, mikrotik_ip, radius_nas_id, contact_phone
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.CapacityMax, p.System, p.MikrotikIP, p.RadiusNASID, p.ContactPhone,
	)
	if err != nil {
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// GetByID retrieves a pool by ID.
func (r *PoolRepository) GetByID(ctx context.Context, id string) (*models.Pool, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM portal.pools
		WHERE id = $1
	`
	return r.scanPool(r.pool.QueryRow(ctx, query, id))
}

// GetByAPMAC resolves the pool an access point belongs to, used by the
// activation path to decide the login contract (portal vs mikrotik).
func (r *PoolRepository) GetByAPMAC(ctx context.Context, apMAC string) (*models.Pool, error) {
	query := `
		SELECT p.id, p.name, p.capacity_max, p.system, p.mikrotik_ip,
		       p.radius_nas_id, p.contact_phone, p.created_at, p.updated_at
		FROM portal.pools p
		JOIN portal.access_points a ON a.pool_id = p.id
		WHERE a.ap_mac = $1
	`
	return r.scanPool(r.pool.QueryRow(ctx, query, apMAC))
}

// List retrieves all pools with optional free-text search on name.
func (r *PoolRepository) List(ctx context.Context, search string) ([]*models.Pool, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM portal.pools
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, search)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var pools []*models.Pool
	for rows.Next() {
		p := &models.Pool{}
		err := rows.Scan(
			&p.ID, &p.Name, &p.CapacityMax, &p.System, &p.MikrotikIP,
			&p.RadiusNASID, &p.ContactPhone, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// Update writes the mutable pool attributes.
func (r *PoolRepository) Update(ctx context.Context, p *models.Pool) error {
	query := `
		UPDATE portal.pools SET
			name = $1,
			capacity_max = $2,
			system = $3,
			mikrotik_ip = $4,
			radius_nas_id = $5,
			contact_phone = $6,
			updated_at = now()
		WHERE id = $7
	`
	tag, err := r.pool.Exec(ctx, query,
		p.Name, p.CapacityMax, p.System, p.MikrotikIP, p.RadiusNASID, p.ContactPhone, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a pool after unassigning its access points. AP rows are
// never cascaded away; they just lose their pool.
func (r *PoolRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete pool: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE portal.access_points SET pool_id = NULL, updated_at = now() WHERE pool_id = $1`, id); err != nil {
		return fmt.Errorf("unassign access points: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM portal.pools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *PoolRepository) scanPool(row pgx.Row) (*models.Pool, error) {
	p := &models.Pool{}
	err := row.Scan(
		&p.ID, &p.Name, &p.CapacityMax, &p.System, &p.MikrotikIP,
		&p.RadiusNASID, &p.ContactPhone, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	return p, nil
}
