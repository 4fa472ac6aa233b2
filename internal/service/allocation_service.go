package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/apperr"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/portal"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
)

// AllocationService converts a confirmed payment (or a free-plan request)
// into exactly one claimed voucher. The purchase gates are pre-checked for
// fast, friendly failures and re-verified inside the store's atomic claim, so
// concurrent requests resolve at the database, not here.
type AllocationService struct {
	vouchers VoucherStore
	plans    PlanStore
	guard    *FreePlanGuard
	audit    AuditStore
}

// NewAllocationService creates a new allocation service.
func NewAllocationService(vouchers VoucherStore, plans PlanStore, guard *FreePlanGuard, audit AuditStore) *AllocationService {
	return &AllocationService{
		vouchers: vouchers,
		plans:    plans,
		guard:    guard,
		audit:    audit,
	}
}

// AllocateParams identifies the purchaser and the plan.
type AllocateParams struct {
	PlanID     string
	Phone      string
	ClientMAC  string
	APMAC      string
	RequestRef string
}

// Allocate claims one unused voucher for the plan and binds it to the
// purchaser. On a same-device repeat request the existing code is surfaced
// inside the Conflict error so the caller can keep making progress.
func (s *AllocationService) Allocate(ctx context.Context, params *AllocateParams) (resp *models.AllocateResponse, err error) {
	clientMAC, ok := portal.NormalizeMAC(params.ClientMAC)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "client_mac is missing or malformed")
	}
	apMAC := ""
	if params.APMAC != "" {
		if apMAC, ok = portal.NormalizeMAC(params.APMAC); !ok {
			return nil, apperr.New(apperr.KindInvalidRequest, "ap_mac is malformed")
		}
	}

	plan, err := s.plans.GetByID(ctx, params.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "plan not found")
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.IsActive {
		return nil, apperr.New(apperr.KindNotFound, "plan is not available")
	}

	// Every decision below this point is audited, success or failure.
	defer func() {
		s.appendAudit(params, clientMAC, apMAC, resp, err)
	}()

	// Single-active-voucher pre-check: surface the existing code instead of
	// burning a new voucher. The claim statement re-verifies this.
	if existing, lookupErr := s.vouchers.GetCurrentByClientMAC(ctx, clientMAC); lookupErr == nil {
		return nil, s.conflictWithExisting(existing, plan)
	}

	// Free-plan pre-check for a friendly "already used on <date>" message.
	// The claim statement re-verifies this too; the check here is not the
	// enforcement point.
	if plan.IsFree() {
		elig, guardErr := s.guard.CheckEligibility(ctx, plan.ID, clientMAC)
		if guardErr != nil {
			return nil, guardErr
		}
		if !elig.Eligible {
			return nil, apperr.New(apperr.KindConflict, "free plan already used by this device").
				WithDetail("last_used_at", elig.LastUsedAt)
		}
	}

	voucher, err := s.vouchers.Claim(ctx, plan.ID, params.Phone, clientMAC, apMAC, plan.IsFree())
	if err != nil {
		return nil, s.classifyClaimFailure(ctx, err, plan, clientMAC)
	}

	log.Printf("[Allocation] Voucher claimed: plan=%s mac=%s code_hash=%s", plan.ID, clientMAC, hashCode(voucher.Code))

	return &models.AllocateResponse{
		Code: voucher.Code,
		Plan: plan.Snapshot(),
	}, nil
}

// classifyClaimFailure turns a zero-row or unique-violation claim into the
// right error kind. The re-reads run after the atomic statement, so they can
// only see a newer state; that changes the message, never correctness.
func (s *AllocationService) classifyClaimFailure(ctx context.Context, claimErr error, plan *models.Plan, clientMAC string) error {
	if errors.Is(claimErr, repository.ErrActiveVoucherExists) || errors.Is(claimErr, repository.ErrClaimMiss) {
		if existing, err := s.vouchers.GetCurrentByClientMAC(ctx, clientMAC); err == nil {
			return s.conflictWithExisting(existing, plan)
		}
		if plan.IsFree() {
			if prior, err := s.vouchers.LastRedemption(ctx, plan.ID, clientMAC); err == nil {
				return apperr.New(apperr.KindConflict, "free plan already used by this device").
					WithDetail("last_used_at", formatTimePtr(prior.AssignedAt))
			}
		}
		if errors.Is(claimErr, repository.ErrClaimMiss) {
			return apperr.New(apperr.KindExhausted, "no voucher available for this plan")
		}
		return apperr.New(apperr.KindConflict, "device already holds a voucher")
	}
	return fmt.Errorf("claim voucher: %w", claimErr)
}

func (s *AllocationService) conflictWithExisting(existing *models.Voucher, plan *models.Plan) error {
	return apperr.New(apperr.KindConflict, "device already holds a voucher").
		WithDetail("existing_code", existing.Code).
		WithDetail("existing_plan_id", existing.PlanID).
		WithDetail("existing_status", existing.Status)
}

// appendAudit writes exactly one event per allocation decision. Codes are
// hashed; the clear code never reaches the audit trail.
func (s *AllocationService) appendAudit(params *AllocateParams, clientMAC, apMAC string, resp *models.AllocateResponse, outcome error) {
	event := &models.AuditEvent{
		EventType:  models.AuditEventAllocation,
		Status:     models.AuditStatusSuccess,
		RequestRef: strPtr(params.RequestRef),
		MvolaPhone: strPtr(params.Phone),
		ClientMAC:  strPtr(clientMAC),
		APMAC:      strPtr(apMAC),
		PlanID:     strPtr(params.PlanID),
		Metadata:   map[string]interface{}{},
	}
	if outcome != nil {
		event.Status = models.AuditStatusFailure
		event.Metadata["error_kind"] = string(apperr.KindOf(outcome))
		event.Metadata["error"] = outcome.Error()
	} else if resp != nil {
		event.Metadata["code_hash"] = hashCode(resp.Code)
	}

	// Audit uses its own context so an abandoned request still leaves a trace.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.Append(ctx, event); err != nil {
		log.Printf("[Allocation] Failed to append audit event: %v", err)
	}
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:8])
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
