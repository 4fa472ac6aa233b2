package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/apperr"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/portal"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
)

// ActivationService binds a claimed voucher to the network session and
// transitions it to active. Re-activation of an unexpired voucher is
// idempotent: the client re-submitting its code gets the same login target
// and activated_at never moves.
type ActivationService struct {
	vouchers VoucherStore
	plans    PlanStore
	pools    PoolStore
	audit    AuditStore
	portal   PortalLoginSubmitter
}

// NewActivationService creates a new activation service.
func NewActivationService(vouchers VoucherStore, plans PlanStore, pools PoolStore, audit AuditStore, portalLogin PortalLoginSubmitter) *ActivationService {
	return &ActivationService{
		vouchers: vouchers,
		plans:    plans,
		pools:    pools,
		audit:    audit,
		portal:   portalLogin,
	}
}

// Activate redeems a code against the network and returns the login target
// the portal page should drive the browser to.
func (s *ActivationService) Activate(ctx context.Context, req *models.ActivateRequest) (resp *models.ActivateResponse, err error) {
	clientMAC, ok := portal.NormalizeMAC(req.ClientMAC)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "client_mac is missing or malformed")
	}
	apMAC := ""
	if req.APMAC != "" {
		if apMAC, ok = portal.NormalizeMAC(req.APMAC); !ok {
			return nil, apperr.New(apperr.KindInvalidRequest, "ap_mac is malformed")
		}
	}

	defer func() {
		// Fire-and-forget: the audit write must never hold up the login
		// redirect the user is waiting on.
		go s.appendAudit(req.Code, clientMAC, apMAC, err)
	}()

	voucher, err := s.vouchers.GetByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "voucher not found")
		}
		return nil, fmt.Errorf("load voucher: %w", err)
	}

	switch voucher.Status {
	case models.VoucherStatusAssigned:
		// First activation: stamp activated_at/expires_at.
	case models.VoucherStatusActive:
		if voucher.Expired(time.Now()) {
			return nil, apperr.New(apperr.KindConflict, "voucher expired").
				WithDetail("expired_at", formatTimePtr(voucher.ExpiresAt))
		}
	case models.VoucherStatusExpired:
		return nil, apperr.New(apperr.KindConflict, "voucher expired").
			WithDetail("expired_at", formatTimePtr(voucher.ExpiresAt))
	default:
		// unassigned codes are not redeemable, revoked ones never again
		return nil, apperr.New(apperr.KindNotFound, "voucher not found")
	}

	plan, err := s.plans.GetByID(ctx, voucher.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	if voucher.Status == models.VoucherStatusAssigned {
		activated, actErr := s.vouchers.ActivateAssigned(ctx, voucher.Code, plan.DurationMinutes, clientMAC, apMAC)
		if actErr != nil {
			if !errors.Is(actErr, repository.ErrNotFound) {
				return nil, fmt.Errorf("activate voucher: %w", actErr)
			}
			// A concurrent activation won the assigned -> active transition;
			// re-read and continue, this request is idempotent.
			activated, actErr = s.vouchers.GetByCode(ctx, voucher.Code)
			if actErr != nil {
				return nil, fmt.Errorf("reload voucher: %w", actErr)
			}
		}
		voucher = activated
		log.Printf("[Activation] Voucher activated: mac=%s code_hash=%s expires_at=%s",
			clientMAC, hashCode(voucher.Code), formatTimePtr(voucher.ExpiresAt))
	}

	target, err := s.resolveLoginTarget(ctx, voucher, req, apMAC)
	if err != nil {
		return nil, err
	}

	return &models.ActivateResponse{
		LoginTarget: *target,
		ExpiresAt:   formatTimePtr(voucher.ExpiresAt),
	}, nil
}

// resolveLoginTarget derives the network login contract from the AP's pool.
// With no pool on record it falls back to what the redirect parameters carry.
func (s *ActivationService) resolveLoginTarget(ctx context.Context, voucher *models.Voucher, req *models.ActivateRequest, apMAC string) (*models.LoginTarget, error) {
	system := ""
	var mikrotikIP string

	if apMAC != "" {
		if pool, err := s.pools.GetByAPMAC(ctx, apMAC); err == nil {
			system = pool.System
			if pool.MikrotikIP != nil {
				mikrotikIP = *pool.MikrotikIP
			}
		}
	}
	if system == "" {
		// Unmanaged AP: infer the contract from the redirect parameters.
		switch {
		case req.LoginURL != "":
			system = models.PoolSystemPortal
		case req.GatewayIP != "":
			system = models.PoolSystemMikrotik
		default:
			return nil, apperr.New(apperr.KindUnresolvable, "no login target could be derived for this access point")
		}
	}

	switch system {
	case models.PoolSystemMikrotik:
		gateway := mikrotikIP
		if gateway == "" {
			gateway = req.GatewayIP
		}
		if gateway == "" || !portal.ValidIP(gateway) {
			return nil, apperr.New(apperr.KindUnresolvable, "no gateway ip available for mikrotik login")
		}
		// RADIUS contract: the voucher code is both username and password.
		params := map[string]string{
			"username": voucher.Code,
			"password": voucher.Code,
		}
		if req.ContinueURL != "" && portal.ValidURL(req.ContinueURL) {
			params["dst"] = req.ContinueURL
		}
		return &models.LoginTarget{
			Method: "GET",
			URL:    fmt.Sprintf("http://%s/login", gateway),
			Params: params,
		}, nil

	default: // portal
		if req.LoginURL == "" || !portal.ValidURL(req.LoginURL) {
			return nil, apperr.New(apperr.KindUnresolvable, "no usable login_url in redirect parameters")
		}
		// Submit server side as well; the browser still performs its own
		// login, a duplicate submit is harmless on the controller.
		if err := s.portal.SubmitLogin(ctx, req.LoginURL, voucher.Code, req.ContinueURL); err != nil {
			log.Printf("[Activation] Controller login submit failed: %v", err)
		}
		params := map[string]string{
			"voucher_code": voucher.Code,
		}
		if req.ContinueURL != "" && portal.ValidURL(req.ContinueURL) {
			params["continue_url"] = req.ContinueURL
		}
		return &models.LoginTarget{
			Method: "POST",
			URL:    req.LoginURL,
			Params: params,
		}, nil
	}
}

func (s *ActivationService) appendAudit(code, clientMAC, apMAC string, outcome error) {
	event := &models.AuditEvent{
		EventType: models.AuditEventActivation,
		Status:    models.AuditStatusSuccess,
		ClientMAC: strPtr(clientMAC),
		APMAC:     strPtr(apMAC),
		Metadata: map[string]interface{}{
			"code_hash": hashCode(code),
		},
	}
	if outcome != nil {
		event.Status = models.AuditStatusFailure
		event.Metadata["error_kind"] = string(apperr.KindOf(outcome))
		event.Metadata["error"] = outcome.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.Append(ctx, event); err != nil {
		log.Printf("[Activation] Failed to append audit event: %v", err)
	}
}
