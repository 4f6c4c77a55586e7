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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kubernaut/kubernaut/internal/authz"
)

// RoleRequest names the subject, role and resource of a grant or revocation.
// Exactly one of Account and Team is set. A missing ID targets the whole
// class; System and Global take no ID.
type RoleRequest struct {
	Account string  `json:"account,omitempty"`
	Team    string  `json:"team,omitempty"`
	Role    string  `json:"role"`
	ID      *string `json:"id,omitempty"`
}

// GrantResponse is the wire form of a role grant.
type GrantResponse struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	Scope     string    `json:"scope"`
	ScopeID   *string   `json:"scopeId,omitempty"`
	CreatedOn time.Time `json:"createdOn"`
	CreatedBy string    `json:"createdBy"`
}

func (req RoleRequest) subject() (authz.Subject, bool) {
	switch {
	case req.Account != "" && req.Team == "":
		return authz.AccountSubject(req.Account), true
	case req.Team != "" && req.Account == "":
		return authz.TeamSubject(req.Team), true
	}
	return authz.Subject{}, false
}

func (h *Handler) decodeRoleRequest(w http.ResponseWriter, r *http.Request) (authz.Subject, RoleRequest, authz.ScopeClass, bool) {
	class, err := authz.ParseScopeClass(chi.URLParam(r, "class"))
	if err != nil {
		respondServiceError(w, r, err)
		return authz.Subject{}, RoleRequest{}, "", false
	}
	var req RoleRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return authz.Subject{}, RoleRequest{}, "", false
	}
	subject, ok := req.subject()
	if !ok {
		respondError(w, http.StatusBadRequest, "exactly one of account or team is required")
		return authz.Subject{}, RoleRequest{}, "", false
	}
	return subject, req, class, true
}

// GrantRole grants a role through the delegation rules
func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	subject, req, class, ok := h.decodeRoleRequest(w, r)
	if !ok {
		return
	}
	grant, err := h.authzService.Grant(r.Context(), subject, req.Role, class, req.ID, meta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, GrantResponse{
		ID:        grant.ID,
		Subject:   grant.Subject.String(),
		Role:      string(grant.Role),
		Scope:     string(grant.Scope),
		ScopeID:   grant.ScopeID,
		CreatedOn: grant.CreatedOn,
		CreatedBy: grant.CreatedBy,
	})
}

// RevokeRole revokes a role through the delegation rules
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	subject, req, class, ok := h.decodeRoleRequest(w, r)
	if !ok {
		return
	}
	if err := h.authzService.Revoke(r.Context(), subject, req.Role, class, req.ID, meta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckPermission reports whether the caller holds a permission at a scope.
// Query: permission (required), class (default global), id.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	perm := authz.Permission(q.Get("permission"))
	if perm == "" {
		respondError(w, http.StatusBadRequest, "permission is required")
		return
	}
	class := authz.ScopeGlobal
	if raw := q.Get("class"); raw != "" {
		parsed, err := authz.ParseScopeClass(raw)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		class = parsed
	}
	scopeID := q.Get("id")
	if class.Concrete() && scopeID == "" {
		respondError(w, http.StatusBadRequest, "id is required for "+string(class))
		return
	}

	allowed, err := h.authzService.HasPermissionOn(r.Context(), GetAccountID(r.Context()), class, scopeID, perm)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"permission": perm,
		"class":      class,
		"id":         scopeID,
		"allowed":    allowed,
	})
}
