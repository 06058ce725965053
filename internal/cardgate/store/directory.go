package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by directory lookups for absent rows. The
// authorization path translates it into a deny, never into a fault.
var ErrNotFound = errors.New("not found")

type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardRevoked CardStatus = "revoked"
	CardPending CardStatus = "pending"
)

type Building struct {
	ID      string
	Name    string
	Address string
}

// AccessPoint is a controlled entry owned by exactly one building.
// RequiredLevel is the minimum grant level that can ever open it;
// higher values are more restricted.
type AccessPoint struct {
	ID            string
	BuildingID    string
	Name          string
	RequiredLevel int
}

type Card struct {
	ID          string
	UID         string // physical card UID, globally unique
	OwnerID     string
	DisplayName string
	Status      CardStatus
}

// TimeWindow is a daily window [Start, End) in minutes from local
// midnight. End < Start means the window wraps past midnight.
type TimeWindow struct {
	StartMin int
	EndMin   int
}

// Grant ties one card to one access point. A nil Window means any time
// of day; an empty Days set means every day of the week.
type Grant struct {
	ID            string
	CardID        string
	AccessPointID string
	Level         int
	Window        *TimeWindow
	Days          []time.Weekday
}

// Directory is the read contract the authorization engine depends on.
// Reads must reflect the latest committed administrative state; in
// particular a committed revoke must never be observed as active.
type Directory interface {
	CardByUID(ctx context.Context, uid string) (Card, error)
	AccessPointByID(ctx context.Context, id string) (AccessPoint, error)
	GrantsFor(ctx context.Context, cardID, accessPointID string) ([]Grant, error)
}

// DirectoryAdmin is the write surface used by the administration API
// and the dev seeder. Implementations must serialize writes so a
// concurrent evaluation sees either the pre- or post-update row, never
// a torn mix.
type DirectoryAdmin interface {
	PutBuilding(ctx context.Context, b Building) error
	PutAccessPoint(ctx context.Context, ap AccessPoint) error
	PutCard(ctx context.Context, c Card) error
	SetCardStatus(ctx context.Context, cardID string, status CardStatus) error
	PutGrant(ctx context.Context, g Grant) error
	DeleteGrant(ctx context.Context, grantID string) error
}
