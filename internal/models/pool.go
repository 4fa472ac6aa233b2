package models

import "time"

// Pool system constants
const (
	PoolSystemPortal   = "portal"   // Tanaza-style controller login
	PoolSystemMikrotik = "mikrotik" // MikroTik gateway + RADIUS login
)

// Pool groups access points for capacity management. CapacityMax is
// advisory: it feeds the saturation percentage on the dashboard and is not
// enforced at the data layer.
type Pool struct {
	ID           string
	Name         string
	CapacityMax  *int
	System       string
	MikrotikIP   *string
	RadiusNASID  *string
	ContactPhone *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccessPoint is a controller-managed AP. Tanaza fields are refreshed by the
// sweeper from the controller API; staleness is derived from LastComputedAt.
type AccessPoint struct {
	APMAC                  string
	PoolID                 *string
	TanazaLabel            *string
	TanazaOnline           bool
	TanazaConnectedClients int
	CapacityMax            *int
	LastComputedAt         *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Stale reports whether the AP's controller data is older than maxAge.
func (a *AccessPoint) Stale(now time.Time, maxAge time.Duration) bool {
	return a.LastComputedAt == nil || now.Sub(*a.LastComputedAt) > maxAge
}
