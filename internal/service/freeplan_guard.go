package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
)

// FreePlanGuard enforces at most one redemption of a zero-price plan per
// device. The check here is advisory (it feeds UI messaging); the binding
// enforcement happens inside the voucher store's claim statement, which
// closes the check-then-act race between two simultaneous requests from the
// same device.
type FreePlanGuard struct {
	vouchers VoucherStore
}

// NewFreePlanGuard creates a new guard.
func NewFreePlanGuard(vouchers VoucherStore) *FreePlanGuard {
	return &FreePlanGuard{vouchers: vouchers}
}

// CheckEligibility reports whether the device may still claim the plan,
// including the prior redemption time when it may not.
func (g *FreePlanGuard) CheckEligibility(ctx context.Context, planID, clientMAC string) (*models.FreeEligibilityResponse, error) {
	prior, err := g.vouchers.LastRedemption(ctx, planID, clientMAC)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &models.FreeEligibilityResponse{Eligible: true}, nil
		}
		return nil, fmt.Errorf("check free plan eligibility: %w", err)
	}

	return &models.FreeEligibilityResponse{
		Eligible:   false,
		LastUsedAt: formatTimePtr(prior.AssignedAt),
	}, nil
}
