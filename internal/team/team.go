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

// Package team manages the registry of named teams whose role grants are
// inherited by their members.
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/id"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
)

// Domain errors
var (
	ErrNameTaken   = fmt.Errorf("%w: team name already in use", authz.ErrConstraintViolation)
	ErrInvalidName = fmt.Errorf("%w: team names are 1-63 lowercase letters, digits or hyphens", authz.ErrInvalidInput)
)

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Team is a named group of accounts. Name is unique among active teams.
type Team struct {
	ID         string
	Name       string
	Attributes map[string]string
	CreatedOn  time.Time
	CreatedBy  string
	DeletedOn  *time.Time
	DeletedBy  *string
}

// Repository defines the interface for team persistence
type Repository interface {
	// CreateTeam stores a team; a duplicate active name fails with ErrNameTaken.
	CreateTeam(ctx context.Context, team *Team) error

	// GetTeam retrieves an active team by ID
	GetTeam(ctx context.Context, id string) (*Team, error)

	// GetTeamByName retrieves an active team by name
	GetTeamByName(ctx context.Context, name string) (*Team, error)

	// ListTeams retrieves all active teams ordered by name
	ListTeams(ctx context.Context) ([]*Team, error)

	// DeleteTeam soft-deletes a team
	DeleteTeam(ctx context.Context, id string, meta authz.Meta) error
}

// Authorizer answers the permission checks team operations need.
type Authorizer interface {
	HasPermission(ctx context.Context, accountID string, perm authz.Permission) (bool, error)
	HasPermissionOnTeam(ctx context.Context, accountID, teamID string, perm authz.Permission) (bool, error)
}

// Service provides team registry operations
type Service struct {
	repo        Repository
	authorizer  Authorizer
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new team service
func NewService(repo Repository, authorizer Authorizer, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		authorizer:  authorizer,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CreateTeam creates a team. The actor needs global teams-write.
func (s *Service) CreateTeam(ctx context.Context, name string, attributes map[string]string, meta authz.Meta) (*Team, error) {
	if meta.Account == "" {
		return nil, authz.ErrMissingActor
	}
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidName
	}
	allowed, err := s.authorizer.HasPermission(ctx, meta.Account, authz.PermTeamsWrite)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s", authz.ErrPermissionDenied, authz.PermTeamsWrite)
	}
	if meta.Date.IsZero() {
		meta.Date = s.now()
	}
	if attributes == nil {
		attributes = map[string]string{}
	}

	t := &Team{
		ID:         id.NewUUIDv7(),
		Name:       name,
		Attributes: attributes,
		CreatedOn:  meta.Date,
		CreatedBy:  meta.Account,
	}
	if err := s.repo.CreateTeam(ctx, t); err != nil {
		if errors.Is(err, authz.ErrConstraintViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	slog.InfoContext(ctx, "team created", logger.ActorID(meta.Account), logger.TeamID(t.ID), slog.String("name", name))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeTeamCreated,
		ActorID:   meta.Account,
		Resource:  "team:" + t.ID,
		Metadata:  map[string]any{"name": name},
		Timestamp: meta.Date,
	})
	return t, nil
}

// GetTeam retrieves an active team by ID
func (s *Service) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	return s.repo.GetTeam(ctx, teamID)
}

// GetTeamByName retrieves an active team by name
func (s *Service) GetTeamByName(ctx context.Context, name string) (*Team, error) {
	return s.repo.GetTeamByName(ctx, name)
}

// ListTeams returns the teams the actor can see.
func (s *Service) ListTeams(ctx context.Context, actorID string) ([]*Team, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	visible := make([]*Team, 0, len(teams))
	for _, t := range teams {
		ok, err := s.authorizer.HasPermissionOnTeam(ctx, actorID, t.ID, authz.PermTeamsRead)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// DeleteTeam soft-deletes a team. The actor needs teams-manage on it.
// Members stop inheriting the team's grants.
func (s *Service) DeleteTeam(ctx context.Context, teamID string, meta authz.Meta) error {
	if meta.Account == "" {
		return authz.ErrMissingActor
	}
	allowed, err := s.authorizer.HasPermissionOnTeam(ctx, meta.Account, teamID, authz.PermTeamsManage)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s on team %s", authz.ErrPermissionDenied, authz.PermTeamsManage, teamID)
	}
	if meta.Date.IsZero() {
		meta.Date = s.now()
	}
	if err := s.repo.DeleteTeam(ctx, teamID, meta); err != nil {
		return err
	}

	slog.InfoContext(ctx, "team deleted", logger.ActorID(meta.Account), logger.TeamID(teamID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeTeamDeleted,
		ActorID:   meta.Account,
		Resource:  "team:" + teamID,
		Timestamp: meta.Date,
	})
	return nil
}
