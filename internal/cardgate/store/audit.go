package store

import (
	"context"
	"time"
)

// Reason is the wire string recorded with every decision.
type Reason string

const (
	ReasonGranted              Reason = "granted"
	ReasonUnknownCard          Reason = "unknown_card"
	ReasonCardRevoked          Reason = "card_revoked"
	ReasonCardPending          Reason = "card_pending"
	ReasonUnknownAccessPoint   Reason = "unknown_access_point"
	ReasonNoGrant              Reason = "no_grant"
	ReasonInsufficientLevel    Reason = "insufficient_level"
	ReasonOutsideSchedule      Reason = "outside_schedule"
	ReasonAuditUnavailable     Reason = "audit_unavailable"
	ReasonDirectoryUnavailable Reason = "directory_unavailable"
)

// Decision is the durable outcome of evaluating one presentation event.
// CardID is empty when the presented UID resolved to no card; the raw
// UID is always kept so unknown-card attempts remain auditable.
type Decision struct {
	ID            string
	CardID        string
	CardUID       string
	AccessPointID string
	Granted       bool
	Reason        Reason
	OccurredAt    time.Time // event time, per the reader's clock
	DecidedAt     time.Time
}

// DecisionQuery filters the audit log. Zero time bounds are unbounded;
// Limit <= 0 falls back to the store default.
type DecisionQuery struct {
	CardID        string
	AccessPointID string
	From          time.Time
	To            time.Time
	Limit         int
	Offset        int
}

// AuditLog is an append-only decision sink. Once Record returns nil the
// decision must be durably retrievable via ListDecisions. No update or
// delete is exposed.
type AuditLog interface {
	Record(ctx context.Context, d Decision) error
	ListDecisions(ctx context.Context, q DecisionQuery) ([]Decision, error)
}
