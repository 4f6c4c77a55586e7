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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/observability/httpmetrics"
	"github.com/kubernaut/kubernaut/internal/store/memory"
	"github.com/kubernaut/kubernaut/internal/team"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testServer struct {
	t      *testing.T
	store  *memory.Store
	router *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	az := authz.NewService(store, audit.Nop{})
	h := NewHandler(
		identity.NewService(store, az, audit.Nop{}),
		az,
		team.NewService(store, az, audit.Nop{}),
		httpmetrics.New("test"),
		AuthConfig{SigningSecret: testSecret, Provider: "github"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &testServer{t: t, store: store, router: NewRouter(h, NewRateLimiter(ctx, 1000, 1000))}
}

func signToken(t *testing.T, secret []byte, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: "user",
		Name: sub,
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

// do sends a request as the login sub; an empty sub sends no token.
func (s *testServer) do(method, path, sub string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(s.t, testSecret, sub, time.Now().Add(time.Hour)))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// login provisions the account for sub and returns its ID.
func (s *testServer) login(sub string) string {
	s.t.Helper()
	w := s.do(http.MethodGet, "/api/v1/account", sub, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var account AccountResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &account))
	return account.ID
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
