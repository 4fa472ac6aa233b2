package models

import "time"

// Audit event type constants
const (
	AuditEventAllocation = "allocation"
	AuditEventActivation = "activation"
	AuditEventPurchase   = "purchase"
	AuditEventRevoke     = "revoke"
)

// Audit event status constants
const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

// AuditEvent is the append-only record of every allocation and activation
// decision. Events are immutable once written; voucher codes never appear in
// metadata in clear, only hashed.
type AuditEvent struct {
	ID         string
	EventType  string
	Status     string
	RequestRef *string
	MvolaPhone *string
	ClientMAC  *string
	APMAC      *string
	PlanID     *string
	PoolID     *string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}
