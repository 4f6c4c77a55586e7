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

package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/id"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
)

// MembershipListing splits the teams visible to an actor by whether an
// account belongs to them.
type MembershipListing struct {
	CurrentMembership []Resource `json:"currentMembership"`
	NoMembership      []Resource `json:"noMembership"`
}

// AssociateAccountWithTeam adds the account to the team. The acting account
// needs teams-write on the team. Adding an existing member succeeds.
func (s *Service) AssociateAccountWithTeam(ctx context.Context, accountID, teamID string, meta Meta) error {
	ctx, span := s.tracer.Start(ctx, "authz.AssociateAccountWithTeam")
	defer span.End()

	meta, err := s.prepareMembership(ctx, accountID, teamID, meta)
	if err != nil {
		recordError(span, err)
		return err
	}

	m := &Membership{
		ID:        id.NewUUIDv7(),
		AccountID: accountID,
		TeamID:    teamID,
		CreatedOn: meta.Date,
		CreatedBy: meta.Account,
	}
	stored, err := s.store.InsertMembership(ctx, m)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	if stored.ID != m.ID {
		return nil
	}

	slog.InfoContext(ctx, "account joined team",
		logger.ActorID(meta.Account), logger.AccountID(accountID), logger.TeamID(teamID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeMembershipAdded,
		ActorID:   meta.Account,
		Subject:   AccountSubject(accountID).String(),
		Resource:  resourceName(ScopeTeam, &teamID),
		Timestamp: meta.Date,
	})
	return nil
}

// DisassociateAccount removes the account from the team. Removing a
// non-member succeeds.
func (s *Service) DisassociateAccount(ctx context.Context, accountID, teamID string, meta Meta) error {
	ctx, span := s.tracer.Start(ctx, "authz.DisassociateAccount")
	defer span.End()

	meta, err := s.prepareMembership(ctx, accountID, teamID, meta)
	if err != nil {
		recordError(span, err)
		return err
	}

	revoked, err := s.store.RevokeMembership(ctx, accountID, teamID, meta)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to revoke membership: %w", err)
	}
	if !revoked {
		return nil
	}

	slog.InfoContext(ctx, "account left team",
		logger.ActorID(meta.Account), logger.AccountID(accountID), logger.TeamID(teamID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeMembershipRemoved,
		ActorID:   meta.Account,
		Subject:   AccountSubject(accountID).String(),
		Resource:  resourceName(ScopeTeam, &teamID),
		Timestamp: meta.Date,
	})
	return nil
}

// MembershipToTeams lists the teams visible to actorID, split by whether
// accountID is an active member.
func (s *Service) MembershipToTeams(ctx context.Context, accountID, actorID string) (*MembershipListing, error) {
	if err := s.requireSubject(ctx, AccountSubject(accountID)); err != nil {
		return nil, err
	}
	memberships, err := s.store.ListActiveMemberships(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	member := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		member[m.TeamID] = true
	}

	actorSet, err := s.resolver.SubjectSetFor(ctx, AccountSubject(actorID))
	if err != nil {
		return nil, err
	}
	actorGrants, err := s.resolver.Reach(ctx, actorSet, ScopeTeam)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.ListResources(ctx, ScopeTeam)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	listing := &MembershipListing{CurrentMembership: []Resource{}, NoMembership: []Resource{}}
	for _, t := range teams {
		teamID := t.ID
		if !permitsAt(actorGrants, ScopeTeam, &teamID, PermTeamsRead) {
			continue
		}
		if member[t.ID] {
			listing.CurrentMembership = append(listing.CurrentMembership, t)
		} else {
			listing.NoMembership = append(listing.NoMembership, t)
		}
	}
	return listing, nil
}

func (s *Service) prepareMembership(ctx context.Context, accountID, teamID string, meta Meta) (Meta, error) {
	meta, err := s.stamp(meta)
	if err != nil {
		return meta, err
	}
	if err := s.requireSubject(ctx, AccountSubject(meta.Account)); err != nil {
		return meta, err
	}
	if err := s.requireSubject(ctx, AccountSubject(accountID)); err != nil {
		return meta, err
	}
	exists, err := s.store.ResourceExists(ctx, ScopeTeam, teamID)
	if err != nil {
		return meta, fmt.Errorf("failed to look up team: %w", err)
	}
	if !exists {
		return meta, notFound(string(SubjectTeam), teamID)
	}

	allowed, err := s.HasPermissionOnTeam(ctx, meta.Account, teamID, PermTeamsWrite)
	if err != nil {
		return meta, err
	}
	if !allowed {
		return meta, fmt.Errorf("%w: %s on team %s", ErrPermissionDenied, PermTeamsWrite, teamID)
	}
	return meta, nil
}
