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
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
)

// AccountResponse is the wire form of an account.
type AccountResponse struct {
	ID          string              `json:"id"`
	DisplayName string              `json:"displayName"`
	Identities  []identity.Identity `json:"identities"`
	CreatedOn   time.Time           `json:"createdOn"`
	CreatedBy   string              `json:"createdBy"`
}

func toAccountResponse(a *identity.Account) AccountResponse {
	idents := a.Identities
	if idents == nil {
		idents = []identity.Identity{}
	}
	return AccountResponse{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Identities:  idents,
		CreatedOn:   a.CreatedOn,
		CreatedBy:   a.CreatedBy,
	}
}

// CreateAccountRequest represents account creation data
type CreateAccountRequest struct {
	DisplayName string              `json:"displayName"`
	Identities  []identity.Identity `json:"identities"`
}

// GetCurrentAccount returns the authenticated account
func (h *Handler) GetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.identityService.GetAccount(r.Context(), GetAccountID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

// CreateAccount provisions an account on behalf of the authenticated account
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DisplayName == "" {
		respondError(w, http.StatusBadRequest, "displayName is required")
		return
	}

	account, err := h.identityService.CreateAccount(r.Context(), identity.AccountData{
		DisplayName: req.DisplayName,
		Identities:  req.Identities,
	}, meta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAccountResponse(account))
}

// GetAccount returns an account. Accounts other than the caller's own need
// accounts-read.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	actorID := GetAccountID(r.Context())
	if accountID != actorID {
		allowed, err := h.authzService.HasPermission(r.Context(), actorID, authz.PermAccountsRead)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if !allowed {
			respondError(w, http.StatusForbidden, "accounts-read permission required")
			return
		}
	}

	account, err := h.identityService.GetAccount(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

// DeleteAccount soft-deletes an account
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.identityService.DeleteAccount(r.Context(), chi.URLParam(r, "accountID"), meta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAccountRoles lists an account's roles for a resource class together
// with what the caller could still grant.
func (h *Handler) ListAccountRoles(w http.ResponseWriter, r *http.Request) {
	h.listRoles(w, r, authz.AccountSubject(chi.URLParam(r, "accountID")))
}

// ListTeamRoles lists a team's roles for a resource class.
func (h *Handler) ListTeamRoles(w http.ResponseWriter, r *http.Request) {
	h.listRoles(w, r, authz.TeamSubject(chi.URLParam(r, "teamID")))
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request, subject authz.Subject) {
	ctx := r.Context()
	actorID := GetAccountID(ctx)

	var (
		listing any
		err     error
	)
	switch chi.URLParam(r, "class") {
	case "registries":
		listing, err = h.authzService.RolesFor(ctx, subject, actorID, authz.ScopeRegistry)
	case "namespaces":
		listing, err = h.authzService.RolesFor(ctx, subject, actorID, authz.ScopeNamespace)
	case "teams":
		listing, err = h.authzService.RolesFor(ctx, subject, actorID, authz.ScopeTeam)
	case "system":
		listing, err = h.authzService.SystemRolesFor(ctx, subject, actorID)
	default:
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown role listing %q", chi.URLParam(r, "class")))
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// ListAccountTeams lists the teams visible to the caller, split by whether
// the account is a member.
func (h *Handler) ListAccountTeams(w http.ResponseWriter, r *http.Request) {
	listing, err := h.authzService.MembershipToTeams(r.Context(), chi.URLParam(r, "accountID"), GetAccountID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}
