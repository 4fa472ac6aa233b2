package models

import "time"

// Voucher status constants
const (
	VoucherStatusUnassigned = "unassigned"
	VoucherStatusAssigned   = "assigned"
	VoucherStatusActive     = "active"
	VoucherStatusExpired    = "expired"
	VoucherStatusRevoked    = "revoked"
)

// Voucher is a pre-generated access code. Codes are created in bulk out of
// band; this service only moves them through the lifecycle
// unassigned -> assigned -> active -> expired/revoked.
type Voucher struct {
	ID          string
	Code        string
	PlanID      string
	Status      string
	PaidBy      *string // purchaser phone, nil until assigned
	ClientMAC   *string
	APMAC       *string
	AssignedAt  *time.Time
	ActivatedAt *time.Time
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the voucher's validity window has closed.
func (v *Voucher) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}
