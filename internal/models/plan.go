package models

import "time"

// Plan is a purchasable service tier. PriceAr is in Ariary; 0 means the plan
// is free and subject to the once-per-device guard.
type Plan struct {
	ID              string
	Name            string
	PriceAr         int64
	DurationMinutes int
	DataMB          *int64 // nil = unlimited
	MaxDevices      int
	IsVisible       bool
	IsActive        bool
	SortOrder       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsFree reports whether the plan is zero-price.
func (p *Plan) IsFree() bool {
	return p.PriceAr == 0
}

// PlanSnapshot is the subset of plan attributes returned to portal clients
// alongside a claimed code.
type PlanSnapshot struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceAr         int64  `json:"price_ar"`
	DurationMinutes int    `json:"duration_minutes"`
	DataMB          *int64 `json:"data_mb,omitempty"`
	MaxDevices      int    `json:"max_devices"`
}

// Snapshot builds the client-facing view of the plan.
func (p *Plan) Snapshot() PlanSnapshot {
	return PlanSnapshot{
		ID:              p.ID,
		Name:            p.Name,
		PriceAr:         p.PriceAr,
		DurationMinutes: p.DurationMinutes,
		DataMB:          p.DataMB,
		MaxDevices:      p.MaxDevices,
	}
}
