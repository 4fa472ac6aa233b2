package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// ErrClaimMiss means the conditional claim updated zero rows: either the plan
// has no unassigned voucher left or one of the in-statement guards blocked
// the claim. The caller classifies which by re-reading.
var ErrClaimMiss = errors.New("claim matched no voucher")

// ErrActiveVoucherExists is surfaced when the partial unique index on
// (client_mac) over assigned/active vouchers rejects a concurrent claim.
var ErrActiveVoucherExists = errors.New("client already holds an assigned or active voucher")

const voucherColumns = `id, code, plan_id, status, paid_by, client_mac, ap_mac,
	   assigned_at, activated_at, expires_at, created_at, updated_at`

type VoucherRepository struct {
	pool *pgxpool.Pool
}

func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// Claim atomically binds one unassigned voucher of the plan to the purchaser.
// The statement re-verifies both purchase gates at the same atomicity
// boundary as the write:
//   - the single-active-voucher policy via NOT EXISTS, backed by the partial
//     unique index ux_vouchers_active_mac ON vouchers(client_mac) WHERE
//     status IN ('assigned','active'), which closes the remaining
//     read-committed window between two concurrent claims for the same MAC;
//   - the free-plan once-per-device rule via a second NOT EXISTS when
//     freePlan is set.
//
// FOR UPDATE SKIP LOCKED guarantees two concurrent buyers of the same plan
// never observe the same unassigned row.
func (r *VoucherRepository) Claim(ctx context.Context, planID, paidBy, clientMAC, apMAC string, freePlan bool) (*models.Voucher, error) {
	query := `
		UPDATE portal.vouchers v SET
			status = 'assigned',
			paid_by = $2,
			client_mac = $3,
			ap_mac = NULLIF($4, ''),
			assigned_at = now(),
			updated_at = now()
		WHERE v.id = (
			SELECT id FROM portal.vouchers
			WHERE plan_id = $1 AND status = 'unassigned'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND NOT EXISTS (
			SELECT 1 FROM portal.vouchers
			WHERE client_mac = $3 AND status IN ('assigned', 'active')
		)
	`
	if freePlan {
		query += `
		AND NOT EXISTS (
			SELECT 1 FROM portal.vouchers
			WHERE plan_id = $1 AND client_mac = $3
			  AND status IN ('assigned', 'active', 'expired')
		)
		`
	}
	query += `
		RETURNING ` + voucherColumns

	v, err := r.scanVoucher(r.pool.QueryRow(ctx, query, planID, paidBy, clientMAC, apMAC))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrClaimMiss
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrActiveVoucherExists
		}
		return nil, fmt.Errorf("claim voucher: %w", err)
	}
	return v, nil
}

// GetByCode retrieves a voucher by its redemption code.
func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	query := `
		SELECT ` + voucherColumns + `
		FROM portal.vouchers
		WHERE code = $1
	`
	return r.scanVoucher(r.pool.QueryRow(ctx, query, code))
}

// GetCurrentByClientMAC retrieves the device's assigned or active voucher, if
// any. Used to surface the existing code on repeat purchase attempts.
func (r *VoucherRepository) GetCurrentByClientMAC(ctx context.Context, clientMAC string) (*models.Voucher, error) {
	query := `
		SELECT ` + voucherColumns + `
		FROM portal.vouchers
		WHERE client_mac = $1 AND status IN ('assigned', 'active')
		ORDER BY assigned_at DESC
		LIMIT 1
	`
	return r.scanVoucher(r.pool.QueryRow(ctx, query, clientMAC))
}

// LastRedemption returns when the device last redeemed the given plan, or
// ErrNotFound. Revoked vouchers do not count as a redemption.
func (r *VoucherRepository) LastRedemption(ctx context.Context, planID, clientMAC string) (*models.Voucher, error) {
	query := `
		SELECT ` + voucherColumns + `
		FROM portal.vouchers
		WHERE plan_id = $1 AND client_mac = $2
		  AND status IN ('assigned', 'active', 'expired')
		ORDER BY assigned_at DESC
		LIMIT 1
	`
	return r.scanVoucher(r.pool.QueryRow(ctx, query, planID, clientMAC))
}

// ActivateAssigned performs the first assigned -> active transition, stamping
// activated_at and deriving expires_at from the plan duration. Zero rows
// means the voucher is not in assigned state (already active, or unknown);
// the caller decides whether that is idempotent success or an error.
func (r *VoucherRepository) ActivateAssigned(ctx context.Context, code string, durationMinutes int, clientMAC, apMAC string) (*models.Voucher, error) {
	query := `
		UPDATE portal.vouchers SET
			status = 'active',
			activated_at = now(),
			expires_at = now() + make_interval(mins => $2),
			client_mac = COALESCE(NULLIF($3, ''), client_mac),
			ap_mac = COALESCE(NULLIF($4, ''), ap_mac),
			updated_at = now()
		WHERE code = $1 AND status = 'assigned'
		RETURNING ` + voucherColumns

	return r.scanVoucher(r.pool.QueryRow(ctx, query, code, durationMinutes, clientMAC, apMAC))
}

// Revoke is the admin-only terminal transition.
func (r *VoucherRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE portal.vouchers SET status = 'revoked', updated_at = now()
		WHERE id = $1 AND status IN ('unassigned', 'assigned', 'active')
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoke voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireOverdue sweeps active vouchers whose validity window has closed.
func (r *VoucherRepository) ExpireOverdue(ctx context.Context) (int64, error) {
	query := `
		UPDATE portal.vouchers SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < now()
	`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("expire vouchers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnassignedByPlan reports remaining stock per plan for the dashboard.
func (r *VoucherRepository) CountUnassignedByPlan(ctx context.Context) (map[string]int64, error) {
	query := `
		SELECT plan_id, COUNT(*)
		FROM portal.vouchers
		WHERE status = 'unassigned'
		GROUP BY plan_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count unassigned: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var planID string
		var n int64
		if err := rows.Scan(&planID, &n); err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		counts[planID] = n
	}
	return counts, rows.Err()
}

// RevenueByDay aggregates paid allocations per calendar day.
func (r *VoucherRepository) RevenueByDay(ctx context.Context, days int) ([]*models.RevenuePoint, error) {
	if days <= 0 {
		days = 30
	}
	query := `
		SELECT to_char(date_trunc('day', v.assigned_at), 'YYYY-MM-DD') AS day,
		       COUNT(*), COALESCE(SUM(p.price_ar), 0)
		FROM portal.vouchers v
		JOIN portal.plans p ON p.id = v.plan_id
		WHERE v.status IN ('assigned', 'active', 'expired')
		  AND p.price_ar > 0
		  AND v.assigned_at >= now() - make_interval(days => $1)
		GROUP BY 1
		ORDER BY 1 DESC
	`
	rows, err := r.pool.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("revenue by day: %w", err)
	}
	defer rows.Close()

	var points []*models.RevenuePoint
	for rows.Next() {
		pt := &models.RevenuePoint{}
		if err := rows.Scan(&pt.Day, &pt.Vouchers, &pt.RevenueAr); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}

// RevenueByPlan aggregates paid allocations per plan.
func (r *VoucherRepository) RevenueByPlan(ctx context.Context, days int) ([]*models.RevenuePoint, error) {
	if days <= 0 {
		days = 30
	}
	query := `
		SELECT p.id, p.name, COUNT(*), COALESCE(SUM(p.price_ar), 0)
		FROM portal.vouchers v
		JOIN portal.plans p ON p.id = v.plan_id
		WHERE v.status IN ('assigned', 'active', 'expired')
		  AND p.price_ar > 0
		  AND v.assigned_at >= now() - make_interval(days => $1)
		GROUP BY p.id, p.name
		ORDER BY 4 DESC
	`
	rows, err := r.pool.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("revenue by plan: %w", err)
	}
	defer rows.Close()

	var points []*models.RevenuePoint
	for rows.Next() {
		pt := &models.RevenuePoint{}
		if err := rows.Scan(&pt.PlanID, &pt.PlanName, &pt.Vouchers, &pt.RevenueAr); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}

func (r *VoucherRepository) scanVoucher(row pgx.Row) (*models.Voucher, error) {
	v := &models.Voucher{}
	err := row.Scan(
		&v.ID, &v.Code, &v.PlanID, &v.Status, &v.PaidBy, &v.ClientMAC, &v.APMAC,
		&v.AssignedAt, &v.ActivatedAt, &v.ExpiresAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan voucher: %w", err)
	}
	return v, nil
}
