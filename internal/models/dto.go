package models

// ==================== Portal API DTOs ====================

// PurchaseRequest starts a paid purchase or claims a free plan directly.
type PurchaseRequest struct {
	PlanID    string `json:"plan_id" binding:"required"`
	Phone     string `json:"phone"`
	ClientMAC string `json:"client_mac" binding:"required"`
	APMAC     string `json:"ap_mac"`
}

// PurchaseResponse is returned after initiating a purchase. For free plans
// the code is present immediately; for paid plans the client polls with
// RequestRef until the payment confirmation lands.
type PurchaseResponse struct {
	RequestRef string        `json:"request_ref"`
	Status     string        `json:"status"` // pending, ready, failed
	Code       string        `json:"code,omitempty"`
	Plan       *PlanSnapshot `json:"plan,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// Purchase poll status constants
const (
	PurchaseStatusPending = "pending"
	PurchaseStatusReady   = "ready"
	PurchaseStatusFailed  = "failed"
)

// ConfirmPaymentRequest is posted by the payment callback bridge once the
// MVola transaction is confirmed. Authenticity is the bridge's problem; by
// the time this arrives the payment is trusted.
type ConfirmPaymentRequest struct {
	RequestRef string `json:"request_ref" binding:"required"`
	PlanID     string `json:"plan_id" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	ClientMAC  string `json:"client_mac" binding:"required"`
	APMAC      string `json:"ap_mac"`
}

// AllocateResponse carries a claimed code back to the purchaser.
type AllocateResponse struct {
	Code    string       `json:"code"`
	Plan    PlanSnapshot `json:"plan"`
	Reused  bool         `json:"reused"` // true when an existing voucher was surfaced
	Message string       `json:"message,omitempty"`
}

// ActivateRequest redeems a claimed code against the network. The portal
// redirect parameters (login_url, continue_url) come from the captive-portal
// query string and may be placeholder-polluted; they are re-validated server
// side.
type ActivateRequest struct {
	Code        string `json:"code" binding:"required"`
	ClientMAC   string `json:"client_mac" binding:"required"`
	APMAC       string `json:"ap_mac"`
	LoginURL    string `json:"login_url"`
	ContinueURL string `json:"continue_url"`
	GatewayIP   string `json:"gateway_ip"`
}

// LoginTarget tells the portal page how to perform the network login.
type LoginTarget struct {
	Method string            `json:"method"` // GET or POST
	URL    string            `json:"url"`
	Params map[string]string `json:"params"`
}

// ActivateResponse is returned on successful activation.
type ActivateResponse struct {
	LoginTarget LoginTarget `json:"login_target"`
	ExpiresAt   string      `json:"expires_at,omitempty"`
}

// FreeEligibilityResponse reports whether a device may still claim a free
// plan, with the prior redemption time for UI messaging.
type FreeEligibilityResponse struct {
	Eligible   bool   `json:"eligible"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

// ==================== Admin API DTOs ====================

// CreatePoolRequest creates a capacity pool.
type CreatePoolRequest struct {
	Name         string  `json:"name" binding:"required"`
	CapacityMax  *int    `json:"capacity_max"`
	System       string  `json:"system" binding:"required,oneof=portal mikrotik"`
	MikrotikIP   *string `json:"mikrotik_ip"`
	RadiusNASID  *string `json:"radius_nas_id"`
	ContactPhone *string `json:"contact_phone"`
}

// UpdatePoolRequest updates pool attributes; nil fields are left untouched.
type UpdatePoolRequest struct {
	Name         *string `json:"name"`
	CapacityMax  *int    `json:"capacity_max"`
	System       *string `json:"system"`
	MikrotikIP   *string `json:"mikrotik_ip"`
	RadiusNASID  *string `json:"radius_nas_id"`
	ContactPhone *string `json:"contact_phone"`
}

// PoolInfo is the admin view of a pool with derived saturation.
type PoolInfo struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	CapacityMax       *int    `json:"capacity_max"`
	System            string  `json:"system"`
	MikrotikIP        *string `json:"mikrotik_ip,omitempty"`
	RadiusNASID       *string `json:"radius_nas_id,omitempty"`
	ContactPhone      *string `json:"contact_phone,omitempty"`
	AccessPoints      int     `json:"access_points"`
	ConnectedClients  int     `json:"connected_clients"`
	SaturationPercent float64 `json:"saturation_percent"`
}

// CreatePlanRequest creates a service tier.
type CreatePlanRequest struct {
	Name            string `json:"name" binding:"required"`
	PriceAr         int64  `json:"price_ar"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	DataMB          *int64 `json:"data_mb"`
	MaxDevices      int    `json:"max_devices"`
	IsVisible       bool   `json:"is_visible"`
	SortOrder       int    `json:"sort_order"`
}

// UpdatePlanRequest updates plan attributes; nil fields are left untouched.
type UpdatePlanRequest struct {
	Name            *string `json:"name"`
	PriceAr         *int64  `json:"price_ar"`
	DurationMinutes *int    `json:"duration_minutes"`
	DataMB          *int64  `json:"data_mb"`
	MaxDevices      *int    `json:"max_devices"`
	IsVisible       *bool   `json:"is_visible"`
	IsActive        *bool   `json:"is_active"`
	SortOrder       *int    `json:"sort_order"`
}

// UpdateAccessPointRequest reassigns or resizes an AP.
type UpdateAccessPointRequest struct {
	PoolID      *string `json:"pool_id"`
	CapacityMax *int    `json:"capacity_max"`
}

// ImportAccessPointRequest imports an AP by MAC from the controller.
type ImportAccessPointRequest struct {
	APMAC  string  `json:"ap_mac" binding:"required"`
	PoolID *string `json:"pool_id"`
}

// RevenuePoint is one aggregation bucket of paid allocations.
type RevenuePoint struct {
	Day       string `json:"day,omitempty"`
	PlanID    string `json:"plan_id,omitempty"`
	PlanName  string `json:"plan_name,omitempty"`
	Vouchers  int64  `json:"vouchers"`
	RevenueAr int64  `json:"revenue_ar"`
}

// AuditListQuery filters the audit event listing.
type AuditListQuery struct {
	EventType string
	Status    string
	ClientMAC string
	PlanID    string
	Limit     int
	Offset    int
}
