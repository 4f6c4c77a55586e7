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

	"github.com/kubernaut/kubernaut/internal/team"
)

// CreateTeamRequest represents team creation data
type CreateTeamRequest struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TeamResponse is the wire form of a team.
type TeamResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	CreatedOn  time.Time         `json:"createdOn"`
	CreatedBy  string            `json:"createdBy"`
}

// AddMemberRequest names the account joining a team.
type AddMemberRequest struct {
	Account string `json:"account"`
}

func toTeamResponse(t *team.Team) TeamResponse {
	return TeamResponse{
		ID:         t.ID,
		Name:       t.Name,
		Attributes: t.Attributes,
		CreatedOn:  t.CreatedOn,
		CreatedBy:  t.CreatedBy,
	}
}

// CreateTeam handles team creation
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.teamService.CreateTeam(r.Context(), req.Name, req.Attributes, meta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTeamResponse(t))
}

// ListTeams lists the teams the caller can read
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teamService.ListTeams(r.Context(), GetAccountID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, toTeamResponse(t))
	}
	respondJSON(w, http.StatusOK, out)
}

// DeleteTeam soft-deletes a team
func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.teamService.DeleteTeam(r.Context(), chi.URLParam(r, "teamID"), meta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddTeamMember adds an account to a team
func (h *Handler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := decode(r, &req); err != nil || req.Account == "" {
		respondError(w, http.StatusBadRequest, "account is required")
		return
	}
	if err := h.authzService.AssociateAccountWithTeam(r.Context(), req.Account, chi.URLParam(r, "teamID"), meta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTeamMember removes an account from a team
func (h *Handler) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	err := h.authzService.DisassociateAccount(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "teamID"), meta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
