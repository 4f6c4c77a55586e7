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
	"slices"
)

// ResourceRoles pairs a resource with a set of roles.
type ResourceRoles struct {
	Resource Resource   `json:"resource"`
	Roles    []RoleName `json:"roles"`
}

// RoleListing describes a subject's roles across one resource class as seen
// by an acting account. Only resources visible to the actor are included.
type RoleListing struct {
	// CurrentRoles holds the subject's direct roles per resource.
	CurrentRoles []ResourceRoles `json:"currentRoles"`
	// ResourcesWithoutRoles holds visible resources where the subject has no role.
	ResourcesWithoutRoles []Resource `json:"resourcesWithoutRoles"`
	// RolesGrantable holds, per resource, the roles the actor could still grant.
	RolesGrantable []ResourceRoles `json:"rolesGrantable"`
	// WildcardRoles and WildcardGrantable cover the class-wide wildcard scope.
	WildcardRoles     []RoleName `json:"wildcardRoles"`
	WildcardGrantable []RoleName `json:"wildcardGrantable"`
}

// SystemRole reports at which of the System and Global scopes a role is held.
type SystemRole struct {
	Role   RoleName `json:"role"`
	System bool     `json:"system"`
	Global bool     `json:"global"`
}

// SystemRoleListing describes a subject's System and Global roles as seen
// by an acting account.
type SystemRoleListing struct {
	CurrentRoles    []SystemRole `json:"currentRoles"`
	RolesGrantable  []RoleName   `json:"rolesGrantable"`
	GlobalGrantable []RoleName   `json:"globalGrantable"`
}

// RolesForNamespaces lists an account's namespace roles as seen by actorID.
func (s *Service) RolesForNamespaces(ctx context.Context, accountID, actorID string) (*RoleListing, error) {
	return s.RolesFor(ctx, AccountSubject(accountID), actorID, ScopeNamespace)
}

// RolesForRegistries lists an account's registry roles as seen by actorID.
func (s *Service) RolesForRegistries(ctx context.Context, accountID, actorID string) (*RoleListing, error) {
	return s.RolesFor(ctx, AccountSubject(accountID), actorID, ScopeRegistry)
}

// RolesForTeams lists an account's team roles as seen by actorID.
func (s *Service) RolesForTeams(ctx context.Context, accountID, actorID string) (*RoleListing, error) {
	return s.RolesFor(ctx, AccountSubject(accountID), actorID, ScopeTeam)
}

// RolesForSystem lists an account's System and Global roles as seen by actorID.
func (s *Service) RolesForSystem(ctx context.Context, accountID, actorID string) (*SystemRoleListing, error) {
	return s.SystemRolesFor(ctx, AccountSubject(accountID), actorID)
}

// TeamRolesForNamespaces lists a team's namespace roles as seen by actorID.
func (s *Service) TeamRolesForNamespaces(ctx context.Context, teamID, actorID string) (*RoleListing, error) {
	return s.RolesFor(ctx, TeamSubject(teamID), actorID, ScopeNamespace)
}

// TeamRolesForRegistries lists a team's registry roles as seen by actorID.
func (s *Service) TeamRolesForRegistries(ctx context.Context, teamID, actorID string) (*RoleListing, error) {
	return s.RolesFor(ctx, TeamSubject(teamID), actorID, ScopeRegistry)
}

// TeamRolesForTeams lists a team's roles on teams as seen by actorID.
func (s *Service) TeamRolesForTeams(ctx context.Context, teamID, actorID string) (*RoleListing, error) {
	return s.RolesFor(ctx, TeamSubject(teamID), actorID, ScopeTeam)
}

// TeamRolesForSystem lists a team's System and Global roles as seen by actorID.
func (s *Service) TeamRolesForSystem(ctx context.Context, teamID, actorID string) (*SystemRoleListing, error) {
	return s.SystemRolesFor(ctx, TeamSubject(teamID), actorID)
}

// RolesFor lists the subject's roles on every resource of a concrete class
// visible to actorID, with the roles actorID could still grant there.
func (s *Service) RolesFor(ctx context.Context, subject Subject, actorID string, class ScopeClass) (*RoleListing, error) {
	if !class.Concrete() {
		return nil, fmt.Errorf("%w: %s is not a resource class", ErrInvalidInput, class)
	}
	ctx, span := s.tracer.Start(ctx, "authz.RolesFor")
	defer span.End()

	if err := s.requireSubject(ctx, subject); err != nil {
		return nil, err
	}
	actorSet, err := s.resolver.SubjectSetFor(ctx, AccountSubject(actorID))
	if err != nil {
		return nil, err
	}
	actorGrants, err := s.resolver.Reach(ctx, actorSet, class)
	if err != nil {
		return nil, err
	}
	subjectGrants, err := s.store.ListActiveGrants(ctx, []Subject{subject}, class)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	resources, err := s.store.ListResources(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s resources: %w", class, err)
	}

	listing := &RoleListing{
		CurrentRoles:          []ResourceRoles{},
		ResourcesWithoutRoles: []Resource{},
		RolesGrantable:        []ResourceRoles{},
	}
	for _, res := range resources {
		resID := res.ID
		if !permitsAt(actorGrants, class, &resID, class.ReadPermission()) {
			continue
		}

		held := rolesOf(onResource(subjectGrants, resID))
		if len(held) > 0 {
			listing.CurrentRoles = append(listing.CurrentRoles, ResourceRoles{Resource: res, Roles: held})
		} else {
			listing.ResourcesWithoutRoles = append(listing.ResourcesWithoutRoles, res)
		}

		if grantable := GrantableRoles(rankAt(actorGrants, class, &resID), held); len(grantable) > 0 {
			listing.RolesGrantable = append(listing.RolesGrantable, ResourceRoles{Resource: res, Roles: grantable})
		}
	}

	listing.WildcardRoles = nonNil(rolesOf(matching(subjectGrants, class, nil)))
	listing.WildcardGrantable = nonNil(GrantableRoles(rankAt(actorGrants, class, nil), listing.WildcardRoles))
	return listing, nil
}

// SystemRolesFor lists the subject's System and Global roles. Nothing is
// grantable when actorID lists its own account, and Global roles are only
// grantable by actors that hold a Global grant.
func (s *Service) SystemRolesFor(ctx context.Context, subject Subject, actorID string) (*SystemRoleListing, error) {
	ctx, span := s.tracer.Start(ctx, "authz.SystemRolesFor")
	defer span.End()

	if err := s.requireSubject(ctx, subject); err != nil {
		return nil, err
	}
	subjectGrants, err := s.store.ListActiveGrants(ctx, []Subject{subject}, ScopeSystem, ScopeGlobal)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	systemHeld := rolesOf(matching(subjectGrants, ScopeSystem, nil))
	globalHeld := rolesOf(matching(subjectGrants, ScopeGlobal, nil))

	listing := &SystemRoleListing{
		CurrentRoles:    []SystemRole{},
		RolesGrantable:  []RoleName{},
		GlobalGrantable: []RoleName{},
	}
	for _, role := range Roles() {
		sys, glob := slices.Contains(systemHeld, role), slices.Contains(globalHeld, role)
		if sys || glob {
			listing.CurrentRoles = append(listing.CurrentRoles, SystemRole{Role: role, System: sys, Global: glob})
		}
	}

	if subject == AccountSubject(actorID) {
		return listing, nil
	}

	actorSet, err := s.resolver.SubjectSetFor(ctx, AccountSubject(actorID))
	if err != nil {
		return nil, err
	}
	actorGrants, err := s.store.ListActiveGrants(ctx, actorSet.Subjects(), ScopeSystem, ScopeGlobal)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	listing.RolesGrantable = nonNil(GrantableRoles(rankAt(actorGrants, ScopeSystem, nil), systemHeld))
	if len(matching(actorGrants, ScopeGlobal, nil)) > 0 {
		listing.GlobalGrantable = nonNil(GrantableRoles(rankAt(actorGrants, ScopeGlobal, nil), globalHeld))
	}
	return listing, nil
}

func (s *Service) requireSubject(ctx context.Context, subject Subject) error {
	exists, err := s.store.SubjectExists(ctx, subject)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", subject.Kind, err)
	}
	if !exists {
		return notFound(string(subject.Kind), subject.ID)
	}
	return nil
}

// onResource filters grants scoped to exactly the resource.
func onResource(grants []*RoleGrant, resourceID string) []*RoleGrant {
	var out []*RoleGrant
	for _, g := range grants {
		if g.ScopeID != nil && *g.ScopeID == resourceID {
			out = append(out, g)
		}
	}
	return out
}

func nonNil(roles []RoleName) []RoleName {
	if roles == nil {
		return []RoleName{}
	}
	return roles
}
