package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	dbpkg "github.com/cardgate/cardgate/internal/db"

	"github.com/cardgate/cardgate/internal/cardgate/store"
)

// Directory is the sqlite-backed reference data store. Reads go straight
// to the connection; writes are serialized through the shared Worker so
// an evaluation running concurrently with a revoke sees either the old
// or the new row, never a torn mix.
type Directory struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDirectory(db *sql.DB, writer *dbpkg.Worker) *Directory {
	return &Directory{db: db, writer: writer}
}

func (s *Directory) CardByUID(ctx context.Context, uid string) (store.Card, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return store.Card{}, store.ErrNotFound
	}

	var (
		c           store.Card
		displayName sql.NullString
		status      string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT card_id, card_uid, owner_id, display_name, status
FROM cards
WHERE card_uid = ?;
`, uid).Scan(&c.ID, &c.UID, &c.OwnerID, &displayName, &status)

	if err == sql.ErrNoRows {
		return store.Card{}, store.ErrNotFound
	}
	if err != nil {
		return store.Card{}, fmt.Errorf("CardByUID query: %w", err)
	}

	c.DisplayName = displayName.String
	c.Status = store.CardStatus(status)
	return c, nil
}

func (s *Directory) AccessPointByID(ctx context.Context, id string) (store.AccessPoint, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.AccessPoint{}, store.ErrNotFound
	}

	var ap store.AccessPoint
	err := s.db.QueryRowContext(ctx, `
SELECT access_point_id, building_id, name, required_level
FROM access_points
WHERE access_point_id = ?;
`, id).Scan(&ap.ID, &ap.BuildingID, &ap.Name, &ap.RequiredLevel)

	if err == sql.ErrNoRows {
		return store.AccessPoint{}, store.ErrNotFound
	}
	if err != nil {
		return store.AccessPoint{}, fmt.Errorf("AccessPointByID query: %w", err)
	}
	return ap, nil
}

func (s *Directory) GrantsFor(ctx context.Context, cardID, accessPointID string) ([]store.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT grant_id, card_id, access_point_id, access_level,
       window_start_min, window_end_min, days_of_week
FROM card_grants
WHERE card_id = ? AND access_point_id = ?;
`, cardID, accessPointID)
	if err != nil {
		return nil, fmt.Errorf("GrantsFor query: %w", err)
	}
	defer rows.Close()

	var grants []store.Grant
	for rows.Next() {
		var (
			g          store.Grant
			windowFrom sql.NullInt64
			windowTo   sql.NullInt64
			days       sql.NullString
		)
		if err := rows.Scan(
			&g.ID, &g.CardID, &g.AccessPointID, &g.Level,
			&windowFrom, &windowTo, &days,
		); err != nil {
			return nil, fmt.Errorf("GrantsFor scan: %w", err)
		}

		if windowFrom.Valid && windowTo.Valid {
			g.Window = &store.TimeWindow{
				StartMin: int(windowFrom.Int64),
				EndMin:   int(windowTo.Int64),
			}
		}
		if days.Valid {
			g.Days, err = parseDays(days.String)
			if err != nil {
				return nil, fmt.Errorf("GrantsFor grant %s: %w", g.ID, err)
			}
		}

		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GrantsFor rows: %w", err)
	}
	return grants, nil
}

func (s *Directory) PutBuilding(ctx context.Context, b store.Building) error {
	nowMs := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO buildings(building_id, name, address, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(building_id) DO UPDATE SET
  name          = excluded.name,
  address       = excluded.address,
  updated_at_ms = excluded.updated_at_ms;
`, b.ID, b.Name, b.Address, nowMs, nowMs); err != nil {
			return fmt.Errorf("PutBuilding %s: %w", b.ID, err)
		}
		return nil
	})
}

func (s *Directory) PutAccessPoint(ctx context.Context, ap store.AccessPoint) error {
	nowMs := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_points(access_point_id, building_id, name, required_level, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(access_point_id) DO UPDATE SET
  name           = excluded.name,
  required_level = excluded.required_level,
  updated_at_ms  = excluded.updated_at_ms;
`, ap.ID, ap.BuildingID, ap.Name, ap.RequiredLevel, nowMs, nowMs); err != nil {
			return fmt.Errorf("PutAccessPoint %s: %w", ap.ID, err)
		}
		return nil
	})
}

func (s *Directory) PutCard(ctx context.Context, c store.Card) error {
	nowMs := time.Now().UTC().UnixMilli()

	var displayName any
	if c.DisplayName != "" {
		displayName = c.DisplayName
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cards(card_id, card_uid, owner_id, display_name, status, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(card_id) DO UPDATE SET
  owner_id      = excluded.owner_id,
  display_name  = excluded.display_name,
  status        = excluded.status,
  updated_at_ms = excluded.updated_at_ms;
`, c.ID, c.UID, c.OwnerID, displayName, string(c.Status), nowMs, nowMs); err != nil {
			return fmt.Errorf("PutCard %s: %w", c.ID, err)
		}
		return nil
	})
}

func (s *Directory) SetCardStatus(ctx context.Context, cardID string, status store.CardStatus) error {
	nowMs := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE cards
SET status        = ?,
    updated_at_ms = ?
WHERE card_id = ?;
`, string(status), nowMs, cardID)
		if err != nil {
			return fmt.Errorf("SetCardStatus %s: %w", cardID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("SetCardStatus %s rows: %w", cardID, err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Directory) PutGrant(ctx context.Context, g store.Grant) error {
	nowMs := time.Now().UTC().UnixMilli()

	var windowFrom, windowTo any
	if g.Window != nil {
		windowFrom = g.Window.StartMin
		windowTo = g.Window.EndMin
	}
	var days any
	if len(g.Days) > 0 {
		days = encodeDays(g.Days)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO card_grants(
  grant_id, card_id, access_point_id, access_level,
  window_start_min, window_end_min, days_of_week,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(grant_id) DO UPDATE SET
  access_level     = excluded.access_level,
  window_start_min = excluded.window_start_min,
  window_end_min   = excluded.window_end_min,
  days_of_week     = excluded.days_of_week,
  updated_at_ms    = excluded.updated_at_ms;
`, g.ID, g.CardID, g.AccessPointID, g.Level,
			windowFrom, windowTo, days, nowMs, nowMs); err != nil {
			return fmt.Errorf("PutGrant %s: %w", g.ID, err)
		}
		return nil
	})
}

func (s *Directory) DeleteGrant(ctx context.Context, grantID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM card_grants WHERE grant_id = ?;`, grantID)
		if err != nil {
			return fmt.Errorf("DeleteGrant %s: %w", grantID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("DeleteGrant %s rows: %w", grantID, err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// encodeDays renders a weekday set as CSV of 0-6 (0 = Sunday), the
// representation the original card_access schema used.
func encodeDays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func parseDays(csv string) ([]time.Weekday, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("bad weekday %q", p)
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}
