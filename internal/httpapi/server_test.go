package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardgate/cardgate/internal/cardgate/service"
	"github.com/cardgate/cardgate/internal/cardgate/store"
	"github.com/cardgate/cardgate/internal/cardgate/store/memory"
	"github.com/cardgate/cardgate/internal/cardgate/types"
	"github.com/cardgate/cardgate/internal/httpapi"
)

// newTestServer wires the full dependency graph over in-memory stores
// and returns an httptest.Server plus the directory and audit log for
// seeding and inspection.
func newTestServer(t *testing.T) (*httptest.Server, *memory.Directory, *memory.AuditLog) {
	t.Helper()

	dir := memory.NewDirectory()
	audit := memory.NewAuditLog()
	hs := memory.NewHeartbeatStore()

	auth := service.NewAuthorizer(dir, audit, zerolog.Nop(), nil, service.AuthorizerConfig{})
	hb := service.NewHeartbeatService(hs, dir)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           zerolog.Nop(),
		Addr:             ":0",
		Authorizer:       auth,
		HeartbeatService: hb,
		Directory:        dir,
		AuditLog:         audit,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, dir, audit
}

func seedOpenDoor(t *testing.T, dir *memory.Directory) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, dir.PutBuilding(ctx, store.Building{ID: "bld1", Name: "HQ", Address: "1 Main St"}))
	require.NoError(t, dir.PutAccessPoint(ctx, store.AccessPoint{
		ID: "ap1", BuildingID: "bld1", Name: "Lobby", RequiredLevel: 2,
	}))
	require.NoError(t, dir.PutCard(ctx, store.Card{
		ID: "card1", UID: "04AABBCC", OwnerID: "user1", Status: store.CardActive,
	}))
	require.NoError(t, dir.PutGrant(ctx, store.Grant{
		ID: "g1", CardID: "card1", AccessPointID: "ap1", Level: 2,
	}))
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func doJSON(t *testing.T, method, url string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ── Access requests ──────────────────────────────────────────────────────────

func TestAccessRequest_Granted(t *testing.T) {
	ts, dir, audit := newTestServer(t)
	seedOpenDoor(t, dir)

	resp := postJSON(t, ts.URL+"/v1/access_request",
		`{"card_uid":"04AABBCC","access_point_id":"ap1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out types.AccessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.OK)
	assert.True(t, out.Granted)
	assert.Equal(t, "granted", out.Reason)
	assert.NotEmpty(t, out.DecisionID)

	assert.Len(t, audit.Decisions(), 1)
}

func TestAccessRequest_UnknownCardStill200Deny(t *testing.T) {
	ts, dir, _ := newTestServer(t)
	seedOpenDoor(t, dir)

	resp := postJSON(t, ts.URL+"/v1/access_request",
		`{"card_uid":"DEADBEEF","access_point_id":"ap1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out types.AccessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Granted)
	assert.Equal(t, "unknown_card", out.Reason)
}

func TestAccessRequest_MissingCardUID_400(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/access_request",
		`{"access_point_id":"ap1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAccessRequest_InvalidJSON_400(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/access_request", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAccessRequest_ScheduleEvaluatedInReaderZone(t *testing.T) {
	ts, dir, _ := newTestServer(t)
	seedOpenDoor(t, dir)
	require.NoError(t, dir.PutGrant(context.Background(), store.Grant{
		ID: "g1", CardID: "card1", AccessPointID: "ap1", Level: 2,
		Window: &store.TimeWindow{StartMin: 9 * 60, EndMin: 17 * 60},
	}))

	// 10:00 local at UTC+10 is 00:00 UTC; the window must apply to the
	// reader's wall clock, not the UTC instant.
	resp := postJSON(t, ts.URL+"/v1/access_request",
		`{"card_uid":"04AABBCC","access_point_id":"ap1","requested_at":"2026-03-04T10:00:00+10:00"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out types.AccessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Granted)
}

type failingAuditLog struct{}

func (failingAuditLog) Record(context.Context, store.Decision) error {
	return errors.New("disk full")
}

func (failingAuditLog) ListDecisions(context.Context, store.DecisionQuery) ([]store.Decision, error) {
	return nil, errors.New("disk full")
}

func TestAccessRequest_AuditUnavailable_503Deny(t *testing.T) {
	dir := memory.NewDirectory()
	seedOpenDoor(t, dir)

	auth := service.NewAuthorizer(dir, failingAuditLog{}, zerolog.Nop(), nil, service.AuthorizerConfig{})
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           zerolog.Nop(),
		Addr:             ":0",
		Authorizer:       auth,
		HeartbeatService: service.NewHeartbeatService(memory.NewHeartbeatStore(), dir),
		Directory:        dir,
		AuditLog:         failingAuditLog{},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp := postJSON(t, ts.URL+"/v1/access_request",
		`{"card_uid":"04AABBCC","access_point_id":"ap1"}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var out types.AccessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Granted)
	assert.Equal(t, "audit_unavailable", out.Reason)
}

// ── Admin flow ───────────────────────────────────────────────────────────────

func TestAdminFlow_ProvisionThenRevoke(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, ts.URL+"/v1/buildings/bld1",
		`{"name":"HQ","address":"1 Main St"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/v1/access_points/ap1",
		`{"building_id":"bld1","name":"Lobby","required_level":2}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/v1/cards/card1",
		`{"card_uid":"04AABBCC","owner_id":"user1","display_name":"Badge"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/v1/cards/card1/access_points/ap1/grants/g1",
		`{"access_level":2,"schedule_start":"09:00","schedule_end":"17:00","days_of_week":[1,2,3,4,5]}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Wednesday 10:00 local: inside the schedule.
	resp = postJSON(t, ts.URL+"/v1/access_request",
		`{"card_uid":"04AABBCC","access_point_id":"ap1","requested_at":"2026-03-04T10:00:00+02:00"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out types.AccessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.Granted)

	// Revoke, then the same presentation must deny.
	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/cards/card1/status",
		`{"status":"revoked"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/access_request",
		`{"card_uid":"04AABBCC","access_point_id":"ap1","requested_at":"2026-03-04T10:00:00+02:00"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Granted)
	assert.Equal(t, "card_revoked", out.Reason)
}

func TestAdmin_BadGrantSchedule_400(t *testing.T) {
	ts, dir, _ := newTestServer(t)
	seedOpenDoor(t, dir)

	resp := doJSON(t, http.MethodPut, ts.URL+"/v1/cards/card1/access_points/ap1/grants/g2",
		`{"access_level":2,"schedule_start":"09:00"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/v1/cards/card1/access_points/ap1/grants/g2",
		`{"access_level":2,"days_of_week":[7]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_SetStatusUnknownCard_404(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/cards/ghost/status",
		`{"status":"revoked"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_DeleteGrant(t *testing.T) {
	ts, dir, _ := newTestServer(t)
	seedOpenDoor(t, dir)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/v1/grants/g1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The card now has no grant; the door denies.
	resp = postJSON(t, ts.URL+"/v1/access_request",
		`{"card_uid":"04AABBCC","access_point_id":"ap1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out types.AccessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "no_grant", out.Reason)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/v1/grants/g1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ── Decision queries ─────────────────────────────────────────────────────────

func TestListDecisions_FilterAndPaginate(t *testing.T) {
	ts, dir, audit := newTestServer(t)
	seedOpenDoor(t, dir)

	base := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		require.NoError(t, audit.Record(context.Background(), store.Decision{
			ID:            fmt.Sprintf("dec%d", i),
			CardID:        "card1",
			CardUID:       "04AABBCC",
			AccessPointID: "ap1",
			Granted:       true,
			Reason:        store.ReasonGranted,
			OccurredAt:    base.Add(time.Duration(i) * time.Minute),
			DecidedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	resp, err := http.Get(ts.URL + "/v1/decisions?card_id=card1&limit=4")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out types.DecisionListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Decisions, 4)
	assert.Equal(t, "dec5", out.Decisions[0].DecisionID, "newest first")

	resp2, err := http.Get(ts.URL + "/v1/decisions?card_id=card1&limit=4&offset=4")
	require.NoError(t, err)
	t.Cleanup(func() { resp2.Body.Close() })
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&out))
	assert.Len(t, out.Decisions, 2)
}

func TestListDecisions_BadTimestamp_400(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/decisions?from=yesterday")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ── Heartbeats and health ────────────────────────────────────────────────────

func TestHeartbeat_Known(t *testing.T) {
	ts, dir, _ := newTestServer(t)
	seedOpenDoor(t, dir)

	resp := postJSON(t, ts.URL+"/v1/heartbeat",
		`{"access_point_id":"ap1","uptime_s":42}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out types.HeartbeatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.OK)
	assert.True(t, out.Known)
}

func TestHeartbeat_MissingAccessPointID_400(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/heartbeat", `{"uptime_s":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
