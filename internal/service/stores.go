package service

import (
	"context"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/cache"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

// Narrow store interfaces consumed by the allocation and activation paths.
// The pgx repositories satisfy them; tests drive the same claim semantics
// with in-memory implementations.

// VoucherStore is the persistence contract for voucher lifecycle writes.
// Claim and ActivateAssigned must be atomic conditional updates: a claim
// observed by one caller is never observed by another.
type VoucherStore interface {
	Claim(ctx context.Context, planID, paidBy, clientMAC, apMAC string, freePlan bool) (*models.Voucher, error)
	GetByCode(ctx context.Context, code string) (*models.Voucher, error)
	GetCurrentByClientMAC(ctx context.Context, clientMAC string) (*models.Voucher, error)
	LastRedemption(ctx context.Context, planID, clientMAC string) (*models.Voucher, error)
	ActivateAssigned(ctx context.Context, code string, durationMinutes int, clientMAC, apMAC string) (*models.Voucher, error)
}

// PlanStore reads the plan catalog.
type PlanStore interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	ListVisible(ctx context.Context) ([]*models.Plan, error)
}

// PoolStore resolves the pool an access point belongs to.
type PoolStore interface {
	GetByAPMAC(ctx context.Context, apMAC string) (*models.Pool, error)
}

// AuditStore appends decision records.
type AuditStore interface {
	Append(ctx context.Context, e *models.AuditEvent) error
}

// PaymentOrder carries the gateway initiation parameters.
type PaymentOrder struct {
	AmountAr    int64
	DebitPhone  string
	Reference   string
	Description string
}

// PaymentInitiator starts a gateway transaction and returns the gateway
// correlation ID.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, order *PaymentOrder) (string, error)
}

// PortalLoginSubmitter posts a voucher code to a controller login form.
type PortalLoginSubmitter interface {
	SubmitLogin(ctx context.Context, loginURL, code, continueURL string) error
}

// PurchaseStateStore keeps the TTL-bounded poll state for in-flight
// purchases. Never the source of truth.
type PurchaseStateStore interface {
	Set(ctx context.Context, requestRef string, state *cache.PurchaseState) error
	Get(ctx context.Context, requestRef string) (*cache.PurchaseState, error)
}
