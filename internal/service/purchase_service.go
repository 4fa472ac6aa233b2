package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/apperr"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/cache"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/portal"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
)

// PurchaseService drives the buyer-facing flow: initiate an MVola payment
// for paid plans (the client then polls until the confirmation lands), or
// allocate immediately for free plans. Poll state lives in Redis with a TTL;
// a cache miss falls back to the voucher table, which stays the source of
// truth.
type PurchaseService struct {
	plans      PlanStore
	vouchers   VoucherStore
	allocation *AllocationService
	audit      AuditStore
	payments   PaymentInitiator
	states     PurchaseStateStore
}

// NewPurchaseService creates a new purchase service.
func NewPurchaseService(plans PlanStore, vouchers VoucherStore, allocation *AllocationService, audit AuditStore, payments PaymentInitiator, states PurchaseStateStore) *PurchaseService {
	return &PurchaseService{
		plans:      plans,
		vouchers:   vouchers,
		allocation: allocation,
		audit:      audit,
		payments:   payments,
		states:     states,
	}
}

// Purchase starts a purchase and returns the ref the client polls with.
func (s *PurchaseService) Purchase(ctx context.Context, req *models.PurchaseRequest) (*models.PurchaseResponse, error) {
	clientMAC, ok := portal.NormalizeMAC(req.ClientMAC)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "client_mac is missing or malformed")
	}

	plan, err := s.plans.GetByID(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "plan not found")
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.IsActive || !plan.IsVisible {
		return nil, apperr.New(apperr.KindNotFound, "plan is not available")
	}

	requestRef := uuid.New().String()

	if plan.IsFree() {
		// No payment leg: allocate right away through the guarded claim.
		alloc, allocErr := s.allocation.Allocate(ctx, &AllocateParams{
			PlanID:     plan.ID,
			Phone:      req.Phone,
			ClientMAC:  clientMAC,
			APMAC:      req.APMAC,
			RequestRef: requestRef,
		})
		if allocErr != nil {
			return nil, allocErr
		}
		s.storeState(requestRef, &cache.PurchaseState{
			Status:    models.PurchaseStatusReady,
			Code:      alloc.Code,
			PlanID:    plan.ID,
			ClientMAC: clientMAC,
		})
		snapshot := alloc.Plan
		return &models.PurchaseResponse{
			RequestRef: requestRef,
			Status:     models.PurchaseStatusReady,
			Code:       alloc.Code,
			Plan:       &snapshot,
		}, nil
	}

	if req.Phone == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "phone is required for paid plans")
	}

	// Reject early when the device already holds a voucher; no point
	// prompting the buyer to pay for a claim that will be refused.
	if existing, lookupErr := s.vouchers.GetCurrentByClientMAC(ctx, clientMAC); lookupErr == nil {
		return nil, apperr.New(apperr.KindConflict, "device already holds a voucher").
			WithDetail("existing_code", existing.Code)
	}

	correlationID, err := s.payments.InitiatePayment(ctx, &PaymentOrder{
		AmountAr:    plan.PriceAr,
		DebitPhone:  req.Phone,
		Reference:   requestRef,
		Description: fmt.Sprintf("WiFi %s", plan.Name),
	})
	if err != nil {
		s.auditPurchase(requestRef, req.Phone, clientMAC, plan.ID, err)
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "payment gateway unavailable", err)
	}

	s.storeState(requestRef, &cache.PurchaseState{
		Status:    models.PurchaseStatusPending,
		PlanID:    plan.ID,
		Phone:     req.Phone,
		ClientMAC: clientMAC,
		APMAC:     req.APMAC,
	})
	s.auditPurchase(requestRef, req.Phone, clientMAC, plan.ID, nil)

	log.Printf("[Purchase] Payment initiated: ref=%s plan=%s correlation=%s", requestRef, plan.ID, correlationID)

	return &models.PurchaseResponse{
		RequestRef: requestRef,
		Status:     models.PurchaseStatusPending,
		Message:    "Confirm the payment on your phone, then wait for your code",
	}, nil
}

// Poll is the bounded client retry loop's read side. A timed-out or evicted
// ref is not terminal: if the allocation completed meanwhile, the voucher
// table still answers.
func (s *PurchaseService) Poll(ctx context.Context, requestRef, clientMAC string) (*models.PurchaseResponse, error) {
	state, err := s.states.Get(ctx, requestRef)
	if err != nil {
		log.Printf("[Purchase] Poll cache read failed: %v", err)
	}
	if state != nil {
		resp := &models.PurchaseResponse{
			RequestRef: requestRef,
			Status:     state.Status,
			Code:       state.Code,
			Message:    state.Message,
		}
		return resp, nil
	}

	// Cache miss: fall back to the source of truth.
	if mac, ok := portal.NormalizeMAC(clientMAC); ok {
		if voucher, lookupErr := s.vouchers.GetCurrentByClientMAC(ctx, mac); lookupErr == nil {
			return &models.PurchaseResponse{
				RequestRef: requestRef,
				Status:     models.PurchaseStatusReady,
				Code:       voucher.Code,
			}, nil
		}
	}

	return nil, apperr.New(apperr.KindNotFound, "purchase not found or expired, please retry")
}

// ConfirmPayment is invoked by the payment callback bridge once the MVola
// transaction is confirmed, and hands over to the allocation service. The
// "already holds a voucher" conflict is converted to forward progress: the
// existing code is what the buyer gets.
func (s *PurchaseService) ConfirmPayment(ctx context.Context, req *models.ConfirmPaymentRequest) (*models.AllocateResponse, error) {
	alloc, err := s.allocation.Allocate(ctx, &AllocateParams{
		PlanID:     req.PlanID,
		Phone:      req.Phone,
		ClientMAC:  req.ClientMAC,
		APMAC:      req.APMAC,
		RequestRef: req.RequestRef,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			if details := apperr.DetailsOf(err); details != nil {
				if code, ok := details["existing_code"].(string); ok && code != "" {
					s.storeState(req.RequestRef, &cache.PurchaseState{
						Status:    models.PurchaseStatusReady,
						Code:      code,
						PlanID:    req.PlanID,
						ClientMAC: req.ClientMAC,
					})
					plan, planErr := s.plans.GetByID(ctx, req.PlanID)
					if planErr != nil {
						return nil, err
					}
					return &models.AllocateResponse{
						Code:    code,
						Plan:    plan.Snapshot(),
						Reused:  true,
						Message: "existing voucher surfaced",
					}, nil
				}
			}
		}
		s.storeState(req.RequestRef, &cache.PurchaseState{
			Status:  models.PurchaseStatusFailed,
			PlanID:  req.PlanID,
			Message: err.Error(),
		})
		return nil, err
	}

	s.storeState(req.RequestRef, &cache.PurchaseState{
		Status:    models.PurchaseStatusReady,
		Code:      alloc.Code,
		PlanID:    req.PlanID,
		ClientMAC: req.ClientMAC,
	})
	return alloc, nil
}

// ListPlans returns the portal-visible catalog.
func (s *PurchaseService) ListPlans(ctx context.Context) ([]models.PlanSnapshot, error) {
	plans, err := s.plans.ListVisible(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	snapshots := make([]models.PlanSnapshot, 0, len(plans))
	for _, p := range plans {
		snapshots = append(snapshots, p.Snapshot())
	}
	return snapshots, nil
}

// storeState writes poll state best-effort; losing it only degrades the poll
// to the voucher-table fallback.
func (s *PurchaseService) storeState(requestRef string, state *cache.PurchaseState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.states.Set(ctx, requestRef, state); err != nil {
		log.Printf("[Purchase] Failed to store poll state for %s: %v", requestRef, err)
	}
}

func (s *PurchaseService) auditPurchase(requestRef, phone, clientMAC, planID string, outcome error) {
	event := &models.AuditEvent{
		EventType:  models.AuditEventPurchase,
		Status:     models.AuditStatusSuccess,
		RequestRef: strPtr(requestRef),
		MvolaPhone: strPtr(phone),
		ClientMAC:  strPtr(clientMAC),
		PlanID:     strPtr(planID),
		Metadata:   map[string]interface{}{},
	}
	if outcome != nil {
		event.Status = models.AuditStatusFailure
		event.Metadata["error"] = outcome.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.Append(ctx, event); err != nil {
		log.Printf("[Purchase] Failed to append audit event: %v", err)
	}
}
