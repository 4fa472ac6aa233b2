package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

const planColumns = `id, name, price_ar, duration_minutes, data_mb, max_devices,
	   is_visible, is_active, sort_order, created_at, updated_at`

type PlanRepository struct {
	pool *pgxpool.Pool
}

func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

// Create inserts a new plan.
func (r *PlanRepository) Create(ctx context.Context, p *models.Plan) error {
	query := `
		INSERT INTO portal.plans (
			id, name, price_ar, duration_minutes, data_mb, max_devices,
			is_visible, is_active, sort_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.PriceAr, p.DurationMinutes, p.DataMB, p.MaxDevices,
		p.IsVisible, p.IsActive, p.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// GetByID retrieves a plan by ID.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM portal.plans
		WHERE id = $1
	`
	return r.scanPlan(r.pool.QueryRow(ctx, query, id))
}

// ListVisible retrieves plans shown on the portal, in display order.
func (r *PlanRepository) ListVisible(ctx context.Context) ([]*models.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM portal.plans
		WHERE is_visible = true AND is_active = true
		ORDER BY sort_order, name
	`
	return r.queryPlans(ctx, query)
}

// ListAll retrieves every plan for the admin dashboard.
func (r *PlanRepository) ListAll(ctx context.Context) ([]*models.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM portal.plans
		ORDER BY sort_order, name
	`
	return r.queryPlans(ctx, query)
}

// Update writes the mutable plan attributes.
func (r *PlanRepository) Update(ctx context.Context, p *models.Plan) error {
	query := `
		UPDATE portal.plans SET
			name = $1,
			price_ar = $2,
			duration_minutes = $3,
			data_mb = $4,
			max_devices = $5,
			is_visible = $6,
			is_active = $7,
			sort_order = $8,
			updated_at = now()
		WHERE id = $9
	`
	tag, err := r.pool.Exec(ctx, query,
		p.Name, p.PriceAr, p.DurationMinutes, p.DataMB, p.MaxDevices,
		p.IsVisible, p.IsActive, p.SortOrder, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles the purchase gate for a plan.
func (r *PlanRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE portal.plans SET is_active = $1, updated_at = now() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("toggle plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PlanRepository) queryPlans(ctx context.Context, query string, args ...interface{}) ([]*models.Plan, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		p := &models.Plan{}
		err := rows.Scan(
			&p.ID, &p.Name, &p.PriceAr, &p.DurationMinutes, &p.DataMB, &p.MaxDevices,
			&p.IsVisible, &p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) scanPlan(row pgx.Row) (*models.Plan, error) {
	p := &models.Plan{}
	err := row.Scan(
		&p.ID, &p.Name, &p.PriceAr, &p.DurationMinutes, &p.DataMB, &p.MaxDevices,
		&p.IsVisible, &p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return p, nil
}
