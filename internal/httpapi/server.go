package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cardgate/cardgate/internal/cardgate/service"
	"github.com/cardgate/cardgate/internal/cardgate/store"
	"github.com/cardgate/cardgate/internal/cardgate/types"
	"github.com/cardgate/cardgate/internal/metrics"
)

type Dependencies struct {
	Logger           zerolog.Logger
	Addr             string
	Authorizer       *service.Authorizer
	HeartbeatService *service.HeartbeatService
	Directory        store.DirectoryAdmin
	AuditLog         store.AuditLog
	Metrics          *metrics.Metrics
}

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
	authorizer *service.Authorizer
	heartbeats *service.HeartbeatService
	directory  store.DirectoryAdmin
	audit      store.AuditLog
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:     d.Logger,
		authorizer: d.Authorizer,
		heartbeats: d.HeartbeatService,
		directory:  d.Directory,
		audit:      d.AuditLog,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(observeDurations(d.Metrics))
	}

	r.Post("/v1/access_request", s.handleAccessRequest)
	r.Post("/v1/heartbeat", s.handleHeartbeat)
	r.Get("/v1/decisions", s.handleListDecisions)

	r.Put("/v1/buildings/{buildingID}", s.handlePutBuilding)
	r.Put("/v1/access_points/{accessPointID}", s.handlePutAccessPoint)
	r.Put("/v1/cards/{cardID}", s.handlePutCard)
	r.Post("/v1/cards/{cardID}/status", s.handleSetCardStatus)
	r.Put("/v1/cards/{cardID}/access_points/{accessPointID}/grants/{grantID}", s.handlePutGrant)
	r.Delete("/v1/grants/{grantID}", s.handleDeleteGrant)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			d.Metrics.Registry, promhttp.HandlerOpts{},
		))
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Decision path ────────────────────────────────────────────────────────────

func (s *Server) handleAccessRequest(w http.ResponseWriter, r *http.Request) {
	var req types.AccessRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev := service.PresentationEvent{
		CardUID:       req.CardUID,
		AccessPointID: req.AccessPointID,
		OccurredAt:    parseEventTime(req.RequestedAt),
	}

	decision, err := s.authorizer.Evaluate(r.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCardUID):
			writeError(w, http.StatusBadRequest, "invalid_card_uid", err.Error())
			return
		case errors.Is(err, service.ErrInvalidAccessPointID):
			writeError(w, http.StatusBadRequest, "invalid_access_point_id", err.Error())
			return
		case errors.Is(err, service.ErrAuditUnavailable):
			// The deny stands; 503 is the external alerting signal for
			// an audit trail gap.
			writeJSON(w, http.StatusServiceUnavailable, accessResponse(decision, false))
			return
		default:
			s.logger.Error().Err(err).Msg("access_request failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
	}

	writeJSON(w, http.StatusOK, accessResponse(decision, true))
}

func accessResponse(d store.Decision, ok bool) types.AccessResponse {
	return types.AccessResponse{
		OK:         ok,
		Granted:    d.Granted,
		Reason:     string(d.Reason),
		DecisionID: d.ID,
		ServerTime: d.DecidedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.heartbeats.Record(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAccessPointID) {
			writeError(w, http.StatusBadRequest, "invalid_access_point_id", err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("heartbeat failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Audit queries ────────────────────────────────────────────────────────────

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	q := store.DecisionQuery{
		CardID:        strings.TrimSpace(r.URL.Query().Get("card_id")),
		AccessPointID: strings.TrimSpace(r.URL.Query().Get("access_point_id")),
	}

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_from", "from must be RFC 3339")
			return
		}
		q.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_to", "to must be RFC 3339")
			return
		}
		q.To = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_offset", "offset must be a non-negative integer")
			return
		}
		q.Offset = n
	}

	decisions, err := s.audit.ListDecisions(r.Context(), q)
	if err != nil {
		s.logger.Error().Err(err).Msg("decision query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	resp := types.DecisionListResponse{
		Decisions: make([]types.DecisionView, 0, len(decisions)),
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	for _, d := range decisions {
		resp.Decisions = append(resp.Decisions, decisionToView(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Admin surface ────────────────────────────────────────────────────────────

func (s *Server) handlePutBuilding(w http.ResponseWriter, r *http.Request) {
	var req types.BuildingUpsert
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "invalid_building", "name and address are required")
		return
	}

	err := s.directory.PutBuilding(r.Context(), store.Building{
		ID:      chi.URLParam(r, "buildingID"),
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("put building failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutAccessPoint(w http.ResponseWriter, r *http.Request) {
	var req types.AccessPointUpsert
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.BuildingID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_access_point", "building_id and name are required")
		return
	}
	if req.RequiredLevel < 1 {
		writeError(w, http.StatusBadRequest, "invalid_access_point", "required_level must be positive")
		return
	}

	err := s.directory.PutAccessPoint(r.Context(), store.AccessPoint{
		ID:            chi.URLParam(r, "accessPointID"),
		BuildingID:    req.BuildingID,
		Name:          req.Name,
		RequiredLevel: req.RequiredLevel,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("put access point failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutCard(w http.ResponseWriter, r *http.Request) {
	var req types.CardUpsert
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CardUID) == "" || strings.TrimSpace(req.OwnerID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_card", "card_uid and owner_id are required")
		return
	}
	status, ok := cardStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_card", "status must be active, revoked, or pending")
		return
	}

	err := s.directory.PutCard(r.Context(), store.Card{
		ID:          chi.URLParam(r, "cardID"),
		UID:         strings.TrimSpace(req.CardUID),
		OwnerID:     req.OwnerID,
		DisplayName: req.DisplayName,
		Status:      status,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("put card failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetCardStatus(w http.ResponseWriter, r *http.Request) {
	var req types.CardStatusUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	status, ok := cardStatus(req.Status)
	if !ok || req.Status == "" {
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be active, revoked, or pending")
		return
	}

	err := s.directory.SetCardStatus(r.Context(), chi.URLParam(r, "cardID"), status)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown_card", "no such card")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("set card status failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutGrant(w http.ResponseWriter, r *http.Request) {
	var req types.GrantUpsert
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AccessLevel < 1 {
		writeError(w, http.StatusBadRequest, "invalid_grant", "access_level must be positive")
		return
	}

	g, err := grantFromUpsert(
		chi.URLParam(r, "grantID"),
		chi.URLParam(r, "cardID"),
		chi.URLParam(r, "accessPointID"),
		req,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}

	if err := s.directory.PutGrant(r.Context(), g); err != nil {
		s.logger.Error().Err(err).Msg("put grant failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	err := s.directory.DeleteGrant(r.Context(), chi.URLParam(r, "grantID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown_grant", "no such grant")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("delete grant failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func cardStatus(s string) (store.CardStatus, bool) {
	switch store.CardStatus(strings.TrimSpace(s)) {
	case "":
		return store.CardActive, true
	case store.CardActive:
		return store.CardActive, true
	case store.CardRevoked:
		return store.CardRevoked, true
	case store.CardPending:
		return store.CardPending, true
	}
	return "", false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
