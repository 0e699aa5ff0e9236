// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/maison/internal/adapters/http/swagger"
	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/internal/domain/teamrequest"
	"github.com/okian/maison/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// Matcher scores raw profiles.
type Matcher interface {
	Match(ctx context.Context, talent normalize.RawTalent, opportunity normalize.RawOpportunity) (model.MatchResult, error)
	Rank(ctx context.Context, opportunity normalize.RawOpportunity, talents []normalize.RawTalent) ([]matching.RankedMatch, error)
}

// TeamRequests runs the join request workflow.
type TeamRequests interface {
	Create(ctx context.Context, p teamrequest.CreateParams) (string, error)
	Approve(ctx context.Context, p teamrequest.ApproveParams) (model.TeamRequest, error)
	GroupApprove(ctx context.Context, p teamrequest.ApproveParams) (model.TeamRequest, error)
	Reject(ctx context.Context, p teamrequest.RejectParams) (model.TeamRequest, error)
	ListPending(ctx context.Context, p teamrequest.ListParams) ([]model.TeamRequest, error)
	Get(ctx context.Context, actorID, requestID string) (model.TeamRequest, error)
	PendingRequestID(ctx context.Context, profileID string) (string, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Matcher
	TeamRequests
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps    Dependencies
	secret  []byte
	maxBody int64
	log     logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		maxBody:       defaultMaxBodyBytes,
		log:           logger.Nop(),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("api")
	return s
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r. Everything under /v1 requires a
// bearer token.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	swagger.Register(r)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.authenticate)

	v1.HandleFunc("/match", MetricsMiddleware(s.handleMatch, "match")).Methods(http.MethodPost)
	v1.HandleFunc("/rank", MetricsMiddleware(s.handleRank, "rank")).Methods(http.MethodPost)
	v1.HandleFunc("/permissions/check", MetricsMiddleware(s.handleCheckPermission, "permissions_check")).Methods(http.MethodPost)

	v1.HandleFunc("/team-requests", MetricsMiddleware(s.handleCreateRequest, "team_requests_create")).Methods(http.MethodPost)
	v1.HandleFunc("/team-requests/{id}", MetricsMiddleware(s.handleGetRequest, "team_requests_get")).Methods(http.MethodGet)
	v1.HandleFunc("/team-requests/{id}/approve", MetricsMiddleware(s.handleApprove, "team_requests_approve")).Methods(http.MethodPost)
	v1.HandleFunc("/team-requests/{id}/group-approve", MetricsMiddleware(s.handleGroupApprove, "team_requests_group_approve")).Methods(http.MethodPost)
	v1.HandleFunc("/team-requests/{id}/reject", MetricsMiddleware(s.handleReject, "team_requests_reject")).Methods(http.MethodPost)

	v1.HandleFunc("/brands/{id}/team-requests", MetricsMiddleware(s.handleListBrand, "team_requests_list_brand")).Methods(http.MethodGet)
	v1.HandleFunc("/groups/{id}/team-requests", MetricsMiddleware(s.handleListGroup, "team_requests_list_group")).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{id}/pending-request", MetricsMiddleware(s.handlePendingRequest, "pending_request")).Methods(http.MethodGet)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusOf maps an error kind to its HTTP status and code.
func statusOf(err error) (int, string) {
	switch errs.KindOf(err) {
	case errs.ErrUnauthenticated:
		return http.StatusUnauthorized, "unauthenticated"
	case errs.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case errs.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case errs.ErrConflict:
		return http.StatusConflict, "conflict"
	case errs.ErrValidation:
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal_error"
}

// fail writes err with the status of its kind. Unclassified errors are
// logged and reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", logger.String("path", r.URL.Path), logger.Error(err))
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, errors.New(errs.Message(err)))
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errs.WrapKind(op, errs.ErrValidation, fmt.Errorf("%w: %v", ErrBadRequest, err))
	}
	return nil
}

// actor returns the authenticated profile id set by authenticate.
func actor(r *http.Request) string {
	id, _ := ActorFromContext(r.Context())
	return id
}
