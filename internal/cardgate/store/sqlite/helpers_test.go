package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cardgate/cardgate/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same
// PRAGMAs and schema as production. Closed automatically when the test
// finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each call gets a unique in-memory database. The shared-cache URI
	// keeps it alive for the lifetime of the connection pool.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	// Match production: single connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the
// test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedDirectory inserts the building and access point rows the FK
// constraints on cards/grants need.
func seedDirectory(t *testing.T, conn *sql.DB) {
	t.Helper()
	nowMs := time.Now().UTC().UnixMilli()
	ctx := context.Background()

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO buildings(building_id, name, address, created_at_ms, updated_at_ms)
VALUES ('bld1', 'HQ', '1 Main St', ?, ?);`, nowMs, nowMs); err != nil {
		t.Fatalf("seed building: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO access_points(access_point_id, building_id, name, required_level, created_at_ms, updated_at_ms)
VALUES ('ap1', 'bld1', 'Lobby', 2, ?, ?);`, nowMs, nowMs); err != nil {
		t.Fatalf("seed access point: %v", err)
	}
}
