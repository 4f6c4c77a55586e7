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
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	// Provider is used when a token carries no "provider" claim.
	Provider string
}

// Claims are the token claims mapped onto an account identity. The subject
// is the login name at the provider.
type Claims struct {
	jwt.RegisteredClaims
	Provider string `json:"provider,omitempty"`
	Type     string `json:"type,omitempty"`
	Name     string `json:"name,omitempty"`
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware verifies the bearer token, provisions the account bound to
// its identity on first sight and adds account_id to context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := h.parseToken(raw)
		if err != nil {
			slog.WarnContext(r.Context(), "rejected bearer token",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Error(err),
			)
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		provider := claims.Provider
		if provider == "" {
			provider = h.auth.Provider
		}
		ident := identity.Identity{Name: claims.Subject, Provider: provider, Type: claims.Type}
		account, err := h.identityService.EnsureAccount(r.Context(),
			identity.AccountData{DisplayName: claims.Name}, ident, authz.Meta{})
		if err != nil {
			if errors.Is(err, identity.ErrInvalidIdentity) {
				respondError(w, http.StatusUnauthorized, "token does not identify an account")
				return
			}
			respondServiceError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), account.ID)))
	})
}

func (h *Handler) parseToken(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if h.auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.auth.Issuer))
	}
	if h.auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(h.auth.Audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return h.auth.SigningSecret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
