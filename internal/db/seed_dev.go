package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a minimal directory for local development: one
// building, one level-1 access point, one active card, and an
// unrestricted grant between them. Idempotent.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO buildings(building_id, name, address, created_at_ms, updated_at_ms)
VALUES ('bld_dev', 'Dev Building', '1 Local Way', ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed building: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO access_points(access_point_id, building_id, name, required_level, created_at_ms, updated_at_ms)
VALUES ('ap_front', 'bld_dev', 'Front Door', 1, ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed access point: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT INTO cards(card_id, card_uid, owner_id, display_name, status, created_at_ms, updated_at_ms)
VALUES ('card_dev', '04AABBCCDD', 'user_dev', 'Dev Card', 'active', ?, ?)
ON CONFLICT(card_id) DO UPDATE SET
  status        = 'active',
  updated_at_ms = excluded.updated_at_ms;`, now, now); err != nil {
		return fmt.Errorf("seed card: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO card_grants(grant_id, card_id, access_point_id, access_level, created_at_ms, updated_at_ms)
VALUES ('grant_dev', 'card_dev', 'ap_front', 1, ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed grant: %w", err)
	}

	return nil
}
