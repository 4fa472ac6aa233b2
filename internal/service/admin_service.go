package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/apperr"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/client"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/portal"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
)

// DeviceLookup queries the hotspot controller for an AP by MAC.
type DeviceLookup interface {
	GetDeviceByMAC(ctx context.Context, apMAC string) (*client.DeviceInfo, error)
}

// AdminService is the dashboard's CRUD and aggregation surface. No clever
// algorithms here; it owns the admin-only voucher revoke transition and keeps
// pool deletion from cascading into AP rows.
type AdminService struct {
	pools    *repository.PoolRepository
	plans    *repository.PlanRepository
	aps      *repository.AccessPointRepository
	vouchers *repository.VoucherRepository
	audit    *repository.AuditRepository
	tanaza   DeviceLookup
}

// NewAdminService creates a new admin service.
func NewAdminService(
	pools *repository.PoolRepository,
	plans *repository.PlanRepository,
	aps *repository.AccessPointRepository,
	vouchers *repository.VoucherRepository,
	audit *repository.AuditRepository,
	tanaza DeviceLookup,
) *AdminService {
	return &AdminService{
		pools:    pools,
		plans:    plans,
		aps:      aps,
		vouchers: vouchers,
		audit:    audit,
		tanaza:   tanaza,
	}
}

// ==================== Pools ====================

// CreatePool creates a capacity pool.
func (s *AdminService) CreatePool(ctx context.Context, req *models.CreatePoolRequest) (*models.Pool, error) {
	pool := &models.Pool{
		ID:           uuid.New().String(),
		Name:         req.Name,
		CapacityMax:  req.CapacityMax,
		System:       req.System,
		MikrotikIP:   req.MikrotikIP,
		RadiusNASID:  req.RadiusNASID,
		ContactPhone: req.ContactPhone,
	}
	if err := s.pools.Create(ctx, pool); err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// UpdatePool applies the non-nil fields of the request.
func (s *AdminService) UpdatePool(ctx context.Context, id string, req *models.UpdatePoolRequest) (*models.Pool, error) {
	pool, err := s.pools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "pool not found")
		}
		return nil, fmt.Errorf("load pool: %w", err)
	}

	if req.Name != nil {
		pool.Name = *req.Name
	}
	if req.CapacityMax != nil {
		pool.CapacityMax = req.CapacityMax
	}
	if req.System != nil {
		if *req.System != models.PoolSystemPortal && *req.System != models.PoolSystemMikrotik {
			return nil, apperr.New(apperr.KindInvalidRequest, "system must be portal or mikrotik")
		}
		pool.System = *req.System
	}
	if req.MikrotikIP != nil {
		pool.MikrotikIP = req.MikrotikIP
	}
	if req.RadiusNASID != nil {
		pool.RadiusNASID = req.RadiusNASID
	}
	if req.ContactPhone != nil {
		pool.ContactPhone = req.ContactPhone
	}

	if err := s.pools.Update(ctx, pool); err != nil {
		return nil, fmt.Errorf("update pool: %w", err)
	}
	return pool, nil
}

// DeletePool removes the pool; its APs are unassigned, never deleted.
func (s *AdminService) DeletePool(ctx context.Context, id string) error {
	if err := s.pools.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "pool not found")
		}
		return fmt.Errorf("delete pool: %w", err)
	}
	return nil
}

// ListPools returns pools with their derived saturation percentage.
func (s *AdminService) ListPools(ctx context.Context, search string) ([]*models.PoolInfo, error) {
	pools, err := s.pools.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	stats, err := s.aps.PoolStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool stats: %w", err)
	}

	infos := make([]*models.PoolInfo, 0, len(pools))
	for _, p := range pools {
		info := &models.PoolInfo{
			ID:           p.ID,
			Name:         p.Name,
			CapacityMax:  p.CapacityMax,
			System:       p.System,
			MikrotikIP:   p.MikrotikIP,
			RadiusNASID:  p.RadiusNASID,
			ContactPhone: p.ContactPhone,
		}
		if st, ok := stats[p.ID]; ok {
			info.AccessPoints = st.APs
			info.ConnectedClients = st.Clients
			if p.CapacityMax != nil && *p.CapacityMax > 0 {
				info.SaturationPercent = float64(st.Clients) / float64(*p.CapacityMax) * 100
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ==================== Plans ====================

// CreatePlan creates a service tier. New plans start inactive so vouchers can
// be loaded before the plan goes on sale.
func (s *AdminService) CreatePlan(ctx context.Context, req *models.CreatePlanRequest) (*models.Plan, error) {
	if req.DurationMinutes <= 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "duration_minutes must be positive")
	}
	maxDevices := req.MaxDevices
	if maxDevices <= 0 {
		maxDevices = 1
	}

	plan := &models.Plan{
		ID:              uuid.New().String(),
		Name:            req.Name,
		PriceAr:         req.PriceAr,
		DurationMinutes: req.DurationMinutes,
		DataMB:          req.DataMB,
		MaxDevices:      maxDevices,
		IsVisible:       req.IsVisible,
		IsActive:        false,
		SortOrder:       req.SortOrder,
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return plan, nil
}

// UpdatePlan applies the non-nil fields of the request.
func (s *AdminService) UpdatePlan(ctx context.Context, id string, req *models.UpdatePlanRequest) (*models.Plan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "plan not found")
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.PriceAr != nil {
		plan.PriceAr = *req.PriceAr
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return nil, apperr.New(apperr.KindInvalidRequest, "duration_minutes must be positive")
		}
		plan.DurationMinutes = *req.DurationMinutes
	}
	if req.DataMB != nil {
		plan.DataMB = req.DataMB
	}
	if req.MaxDevices != nil {
		plan.MaxDevices = *req.MaxDevices
	}
	if req.IsVisible != nil {
		plan.IsVisible = *req.IsVisible
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	if req.SortOrder != nil {
		plan.SortOrder = *req.SortOrder
	}

	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return plan, nil
}

// TogglePlan flips the purchase gate.
func (s *AdminService) TogglePlan(ctx context.Context, id string, active bool) error {
	if err := s.plans.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "plan not found")
		}
		return fmt.Errorf("toggle plan: %w", err)
	}
	return nil
}

// ListPlans returns every plan with its remaining voucher stock.
func (s *AdminService) ListPlans(ctx context.Context) ([]*models.Plan, map[string]int64, error) {
	plans, err := s.plans.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list plans: %w", err)
	}
	stock, err := s.vouchers.CountUnassignedByPlan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("voucher stock: %w", err)
	}
	return plans, stock, nil
}

// ==================== Access points ====================

// ListAccessPoints returns APs, optionally filtered by pool.
func (s *AdminService) ListAccessPoints(ctx context.Context, poolID string) ([]*models.AccessPoint, error) {
	return s.aps.List(ctx, poolID)
}

// UpdateAccessPoint reassigns or resizes an AP.
func (s *AdminService) UpdateAccessPoint(ctx context.Context, apMAC string, req *models.UpdateAccessPointRequest) error {
	mac, ok := portal.NormalizeMAC(apMAC)
	if !ok {
		return apperr.New(apperr.KindInvalidRequest, "ap_mac is malformed")
	}
	if err := s.aps.UpdateAssignment(ctx, mac, req.PoolID, req.CapacityMax); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "access point not found")
		}
		return fmt.Errorf("update access point: %w", err)
	}
	return nil
}

// ImportAccessPoint pulls an AP from the controller by MAC and registers it.
func (s *AdminService) ImportAccessPoint(ctx context.Context, req *models.ImportAccessPointRequest) (*models.AccessPoint, error) {
	mac, ok := portal.NormalizeMAC(req.APMAC)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "ap_mac is malformed")
	}

	device, err := s.tanaza.GetDeviceByMAC(ctx, mac)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "controller lookup failed", err)
	}

	now := time.Now()
	ap := &models.AccessPoint{
		APMAC:                  mac,
		PoolID:                 req.PoolID,
		TanazaLabel:            &device.Label,
		TanazaOnline:           device.Online,
		TanazaConnectedClients: device.ConnectedClients,
		LastComputedAt:         &now,
	}
	if err := s.aps.Upsert(ctx, ap); err != nil {
		return nil, fmt.Errorf("import access point: %w", err)
	}

	log.Printf("[Admin] Access point imported: mac=%s label=%s online=%t", mac, device.Label, device.Online)
	return ap, nil
}

// ==================== Vouchers / audit / revenue ====================

// RevokeVoucher is the only path allowed to perform the revoked transition.
func (s *AdminService) RevokeVoucher(ctx context.Context, id, revokedBy string) error {
	if err := s.vouchers.Revoke(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "voucher not found or already terminal")
		}
		return fmt.Errorf("revoke voucher: %w", err)
	}

	event := &models.AuditEvent{
		EventType: models.AuditEventRevoke,
		Status:    models.AuditStatusSuccess,
		Metadata: map[string]interface{}{
			"voucher_id": id,
			"revoked_by": revokedBy,
		},
	}
	if err := s.audit.Append(ctx, event); err != nil {
		log.Printf("[Admin] Failed to append revoke audit event: %v", err)
	}
	return nil
}

// ListAudit pages through the audit trail.
func (s *AdminService) ListAudit(ctx context.Context, q *models.AuditListQuery) ([]*models.AuditEvent, error) {
	return s.audit.List(ctx, q)
}

// RevenueByDay aggregates paid allocations per calendar day.
func (s *AdminService) RevenueByDay(ctx context.Context, days int) ([]*models.RevenuePoint, error) {
	return s.vouchers.RevenueByDay(ctx, days)
}

// RevenueByPlan aggregates paid allocations per plan.
func (s *AdminService) RevenueByPlan(ctx context.Context, days int) ([]*models.RevenuePoint, error) {
	return s.vouchers.RevenueByPlan(ctx, days)
}
