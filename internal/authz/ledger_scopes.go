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

import "context"

// -----------------------------------------------------------------------------
// Account subjects
// A nil scope id grants or revokes the wildcard role for the whole class.
// -----------------------------------------------------------------------------

// GrantRoleOnRegistry grants an account a role on a registry.
func (s *Service) GrantRoleOnRegistry(ctx context.Context, accountID, role string, registryID *string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, AccountSubject(accountID), role, ScopeRegistry, registryID, meta)
}

// RevokeRoleOnRegistry revokes an account's role on a registry.
func (s *Service) RevokeRoleOnRegistry(ctx context.Context, accountID, role string, registryID *string, meta Meta) error {
	return s.Revoke(ctx, AccountSubject(accountID), role, ScopeRegistry, registryID, meta)
}

// GrantRoleOnNamespace grants an account a role on a namespace.
func (s *Service) GrantRoleOnNamespace(ctx context.Context, accountID, role string, namespaceID *string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, AccountSubject(accountID), role, ScopeNamespace, namespaceID, meta)
}

// RevokeRoleOnNamespace revokes an account's role on a namespace.
func (s *Service) RevokeRoleOnNamespace(ctx context.Context, accountID, role string, namespaceID *string, meta Meta) error {
	return s.Revoke(ctx, AccountSubject(accountID), role, ScopeNamespace, namespaceID, meta)
}

// GrantRoleOnTeam grants an account a role on a team.
func (s *Service) GrantRoleOnTeam(ctx context.Context, accountID, role string, teamID *string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, AccountSubject(accountID), role, ScopeTeam, teamID, meta)
}

// RevokeRoleOnTeam revokes an account's role on a team.
func (s *Service) RevokeRoleOnTeam(ctx context.Context, accountID, role string, teamID *string, meta Meta) error {
	return s.Revoke(ctx, AccountSubject(accountID), role, ScopeTeam, teamID, meta)
}

// GrantGlobalRole grants an account a Global role.
func (s *Service) GrantGlobalRole(ctx context.Context, accountID, role string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, AccountSubject(accountID), role, ScopeGlobal, nil, meta)
}

// RevokeGlobalRole revokes an account's Global role.
func (s *Service) RevokeGlobalRole(ctx context.Context, accountID, role string, meta Meta) error {
	return s.Revoke(ctx, AccountSubject(accountID), role, ScopeGlobal, nil, meta)
}

// GrantSystemRole grants an account a System role.
func (s *Service) GrantSystemRole(ctx context.Context, accountID, role string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, AccountSubject(accountID), role, ScopeSystem, nil, meta)
}

// RevokeSystemRole revokes an account's System role.
func (s *Service) RevokeSystemRole(ctx context.Context, accountID, role string, meta Meta) error {
	return s.Revoke(ctx, AccountSubject(accountID), role, ScopeSystem, nil, meta)
}

// -----------------------------------------------------------------------------
// Team subjects
// Members of the team inherit these grants while their membership is active.
// -----------------------------------------------------------------------------

// GrantRoleOnRegistryOnTeam grants a team a role on a registry.
func (s *Service) GrantRoleOnRegistryOnTeam(ctx context.Context, teamID, role string, registryID *string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, TeamSubject(teamID), role, ScopeRegistry, registryID, meta)
}

// RevokeRoleOnRegistryOnTeam revokes a team's role on a registry.
func (s *Service) RevokeRoleOnRegistryOnTeam(ctx context.Context, teamID, role string, registryID *string, meta Meta) error {
	return s.Revoke(ctx, TeamSubject(teamID), role, ScopeRegistry, registryID, meta)
}

// GrantRoleOnNamespaceOnTeam grants a team a role on a namespace.
func (s *Service) GrantRoleOnNamespaceOnTeam(ctx context.Context, teamID, role string, namespaceID *string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, TeamSubject(teamID), role, ScopeNamespace, namespaceID, meta)
}

// RevokeRoleOnNamespaceOnTeam revokes a team's role on a namespace.
func (s *Service) RevokeRoleOnNamespaceOnTeam(ctx context.Context, teamID, role string, namespaceID *string, meta Meta) error {
	return s.Revoke(ctx, TeamSubject(teamID), role, ScopeNamespace, namespaceID, meta)
}

// GrantRoleOnTeamForTeam grants a team a role on another (or the same) team.
func (s *Service) GrantRoleOnTeamForTeam(ctx context.Context, teamID, role string, targetTeamID *string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, TeamSubject(teamID), role, ScopeTeam, targetTeamID, meta)
}

// RevokeRoleOnTeamForTeam revokes a team's role on a team.
func (s *Service) RevokeRoleOnTeamForTeam(ctx context.Context, teamID, role string, targetTeamID *string, meta Meta) error {
	return s.Revoke(ctx, TeamSubject(teamID), role, ScopeTeam, targetTeamID, meta)
}

// GrantGlobalRoleOnTeam grants a team a Global role.
func (s *Service) GrantGlobalRoleOnTeam(ctx context.Context, teamID, role string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, TeamSubject(teamID), role, ScopeGlobal, nil, meta)
}

// RevokeGlobalRoleFromTeam revokes a team's Global role.
func (s *Service) RevokeGlobalRoleFromTeam(ctx context.Context, teamID, role string, meta Meta) error {
	return s.Revoke(ctx, TeamSubject(teamID), role, ScopeGlobal, nil, meta)
}

// GrantSystemRoleOnTeam grants a team a System role.
func (s *Service) GrantSystemRoleOnTeam(ctx context.Context, teamID, role string, meta Meta) (*RoleGrant, error) {
	return s.Grant(ctx, TeamSubject(teamID), role, ScopeSystem, nil, meta)
}

// RevokeSystemRoleFromTeam revokes a team's System role.
func (s *Service) RevokeSystemRoleFromTeam(ctx context.Context, teamID, role string, meta Meta) error {
	return s.Revoke(ctx, TeamSubject(teamID), role, ScopeSystem, nil, meta)
}
