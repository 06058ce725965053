package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardgate/cardgate/internal/cardgate/store"
	"github.com/cardgate/cardgate/internal/metrics"
)

var (
	ErrInvalidCardUID       = errors.New("card_uid is required")
	ErrInvalidAccessPointID = errors.New("access_point_id is required")

	// ErrAuditUnavailable signals that a decision could not be durably
	// recorded. The returned decision is always a deny in that case;
	// the error exists so callers can raise external alerting, since
	// the failure cannot log itself.
	ErrAuditUnavailable = errors.New("audit log unavailable")
)

const (
	defaultDirectoryTimeout = 2 * time.Second
	defaultAuditTimeout     = 2 * time.Second
)

// AuthorizerConfig bounds the two blocking operations on the decision
// path. A door must never hang on a slow store; past either timeout the
// engine fails closed.
type AuthorizerConfig struct {
	DirectoryTimeout time.Duration
	AuditTimeout     time.Duration
}

// PresentationEvent is one card read at one access point. OccurredAt is
// the reader's clock, carrying its zone; schedule windows are evaluated
// in that zone.
type PresentationEvent struct {
	CardUID       string
	AccessPointID string
	OccurredAt    time.Time
}

// Authorizer computes grant/deny for presentation events. It holds no
// per-event state, so any number of evaluations may run concurrently.
type Authorizer struct {
	directory store.Directory
	audit     store.AuditLog
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	cfg       AuthorizerConfig
}

func NewAuthorizer(
	dir store.Directory,
	audit store.AuditLog,
	logger zerolog.Logger,
	m *metrics.Metrics,
	cfg AuthorizerConfig,
) *Authorizer {
	if cfg.DirectoryTimeout <= 0 {
		cfg.DirectoryTimeout = defaultDirectoryTimeout
	}
	if cfg.AuditTimeout <= 0 {
		cfg.AuditTimeout = defaultAuditTimeout
	}
	return &Authorizer{
		directory: dir,
		audit:     audit,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
	}
}

// Evaluate runs the decision procedure for one event and records
// exactly one decision. The only error conditions are malformed input
// and an unreachable audit log (ErrAuditUnavailable); every operational
// failure inside the procedure maps to a deny decision, never a fault
// to the door.
func (a *Authorizer) Evaluate(ctx context.Context, ev PresentationEvent) (store.Decision, error) {
	now := time.Now().UTC()

	ev.CardUID = strings.TrimSpace(ev.CardUID)
	ev.AccessPointID = strings.TrimSpace(ev.AccessPointID)
	if ev.CardUID == "" {
		return store.Decision{}, ErrInvalidCardUID
	}
	if ev.AccessPointID == "" {
		return store.Decision{}, ErrInvalidAccessPointID
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}

	d := store.Decision{
		ID:            uuid.NewString(),
		CardUID:       ev.CardUID,
		AccessPointID: ev.AccessPointID,
		OccurredAt:    ev.OccurredAt,
		DecidedAt:     now,
	}
	d.Granted, d.Reason, d.CardID = a.decide(ctx, ev)

	if err := a.record(ctx, d); err != nil {
		// Fail closed: an unlogged grant must not open a door. The
		// substituted decision is returned but is itself unlogged,
		// which is why the caller gets a distinct error to alert on.
		a.logger.Error().
			Err(err).
			Str("card_uid", ev.CardUID).
			Str("access_point_id", ev.AccessPointID).
			Msg("audit write failed, failing closed")
		if a.metrics != nil {
			a.metrics.AuditFailures.Inc()
		}
		d.Granted = false
		d.Reason = store.ReasonAuditUnavailable
		a.observe(d)
		return d, ErrAuditUnavailable
	}

	if !d.Granted {
		a.logger.Info().
			Str("card_uid", ev.CardUID).
			Str("access_point_id", ev.AccessPointID).
			Str("reason", string(d.Reason)).
			Msg("access denied")
	}
	a.observe(d)
	return d, nil
}

// decide applies the rule chain in strict order. First failing rule
// wins; later rules run only when the earlier ones pass.
func (a *Authorizer) decide(ctx context.Context, ev PresentationEvent) (bool, store.Reason, string) {
	card, err := a.cardByUID(ctx, ev.CardUID)
	if errors.Is(err, store.ErrNotFound) {
		return false, store.ReasonUnknownCard, ""
	}
	if err != nil {
		a.logger.Error().Err(err).Str("card_uid", ev.CardUID).Msg("directory lookup failed")
		return false, store.ReasonDirectoryUnavailable, ""
	}

	switch card.Status {
	case store.CardActive:
		// proceed
	case store.CardRevoked:
		return false, store.ReasonCardRevoked, card.ID
	default:
		return false, store.ReasonCardPending, card.ID
	}

	ap, err := a.accessPointByID(ctx, ev.AccessPointID)
	if errors.Is(err, store.ErrNotFound) {
		return false, store.ReasonUnknownAccessPoint, card.ID
	}
	if err != nil {
		a.logger.Error().Err(err).Str("access_point_id", ev.AccessPointID).Msg("directory lookup failed")
		return false, store.ReasonDirectoryUnavailable, card.ID
	}

	grants, err := a.grantsFor(ctx, card.ID, ap.ID)
	if err != nil {
		a.logger.Error().Err(err).Str("card_id", card.ID).Msg("grant lookup failed")
		return false, store.ReasonDirectoryUnavailable, card.ID
	}
	if len(grants) == 0 {
		return false, store.ReasonNoGrant, card.ID
	}

	// Most-permissive-wins: any single active grant suffices. A card
	// whose every grant is below the point's level could never succeed
	// at any time, which is a distinct diagnostic from a schedule miss.
	levelSufficient := false
	for _, g := range grants {
		if grantActive(g, ap, ev.OccurredAt) {
			return true, store.ReasonGranted, card.ID
		}
		if g.Level >= ap.RequiredLevel {
			levelSufficient = true
		}
	}
	if !levelSufficient {
		return false, store.ReasonInsufficientLevel, card.ID
	}
	return false, store.ReasonOutsideSchedule, card.ID
}

func (a *Authorizer) cardByUID(ctx context.Context, uid string) (store.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DirectoryTimeout)
	defer cancel()
	return a.directory.CardByUID(ctx, uid)
}

func (a *Authorizer) accessPointByID(ctx context.Context, id string) (store.AccessPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DirectoryTimeout)
	defer cancel()
	return a.directory.AccessPointByID(ctx, id)
}

func (a *Authorizer) grantsFor(ctx context.Context, cardID, accessPointID string) ([]store.Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DirectoryTimeout)
	defer cancel()
	return a.directory.GrantsFor(ctx, cardID, accessPointID)
}

func (a *Authorizer) record(ctx context.Context, d store.Decision) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.AuditTimeout)
	defer cancel()
	return a.audit.Record(ctx, d)
}

func (a *Authorizer) observe(d store.Decision) {
	if a.metrics == nil {
		return
	}
	a.metrics.DecisionsTotal.WithLabelValues(string(d.Reason)).Inc()
}
