// Copyright 2026 The Kubernaut Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/observability/httpmetrics"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
	"github.com/kubernaut/kubernaut/internal/team"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	authzService    *authz.Service
	teamService     *team.Service
	metrics         *httpmetrics.Metrics
	auth            AuthConfig
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	authzService *authz.Service,
	teamService *team.Service,
	metrics *httpmetrics.Metrics,
	auth AuthConfig,
) *Handler {
	return &Handler{
		identityService: identityService,
		authzService:    authzService,
		teamService:     teamService,
		metrics:         metrics,
		auth:            auth,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	if h.metrics != nil {
		r.Use(h.metrics.Instrument)
	}
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/account", h.GetCurrentAccount)
		r.Get("/permissions", h.CheckPermission)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", h.GetAccount)
				r.Delete("/", h.DeleteAccount)
				r.Get("/roles/{class}", h.ListAccountRoles)
				r.Get("/teams", h.ListAccountTeams)
			})
		})

		r.Route("/roles/{class}", func(r chi.Router) {
			r.Post("/", h.GrantRole)
			r.Delete("/", h.RevokeRole)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Post("/", h.CreateTeam)
			r.Get("/", h.ListTeams)
			r.Route("/{teamID}", func(r chi.Router) {
				r.Delete("/", h.DeleteTeam)
				r.Get("/roles/{class}", h.ListTeamRoles)
				r.Post("/members", h.AddTeamMember)
				r.Delete("/members/{accountID}", h.RemoveTeamMember)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "kubernaut",
	})
}

// meta attributes a mutation to the authenticated account.
func meta(r *http.Request) authz.Meta {
	return authz.Meta{Date: time.Now().UTC(), Account: GetAccountID(r.Context())}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrUnknownRole),
		errors.Is(err, authz.ErrInvalidInput),
		errors.Is(err, identity.ErrSelfDelete):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authz.ErrDelegationDenied),
		errors.Is(err, authz.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrConstraintViolation):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authz.ErrMissingActor):
		respondError(w, http.StatusUnauthorized, "not authenticated")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
