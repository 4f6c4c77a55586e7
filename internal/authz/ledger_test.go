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

package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/authz"
)

// TestPurpose: Validates that repeated grants and revokes are silent no-ops that leave exactly one active grant or none.
// Scope: Unit Test
// Expected: Same grant ID on repeat; revoke of absent or revoked grants succeeds; one audit event per state change.
// Test Case ID: AUT-20
func TestLedger_Idempotence(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "alice")
	f.account(t, "bob")
	f.resource(t, authz.ScopeNamespace, "ns-1")

	first, err := f.svc.GrantRoleOnNamespace(f.ctx, "bob", "developer", ptr("ns-1"), as("alice"))
	require.NoError(t, err)
	second, err := f.svc.GrantRoleOnNamespace(f.ctx, "bob", "developer", ptr("ns-1"), as("alice"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	grants, err := f.store.ListActiveGrants(f.ctx, []authz.Subject{authz.AccountSubject("bob")})
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	require.NoError(t, f.svc.RevokeRoleOnNamespace(f.ctx, "bob", "developer", ptr("ns-1"), as("alice")))
	require.NoError(t, f.svc.RevokeRoleOnNamespace(f.ctx, "bob", "developer", ptr("ns-1"), as("alice")))
	require.NoError(t, f.svc.RevokeRoleOnNamespace(f.ctx, "bob", "admin", ptr("ns-1"), as("alice")), "revoking a role never held succeeds")

	grants, err = f.store.ListActiveGrants(f.ctx, []authz.Subject{authz.AccountSubject("bob")})
	require.NoError(t, err)
	assert.Empty(t, grants)

	assert.Equal(t, []string{audit.TypeRoleGranted, audit.TypeRoleRevoked}, f.audit.types())
}

// TestPurpose: Validates that grants are attributed to the acting account and timestamped by the service clock when no date is supplied.
// Scope: Unit Test
// Security: Audit attribution
// Expected: CreatedBy is the actor, CreatedOn is the clock time, ScopeID is copied.
// Test Case ID: AUT-21
func TestLedger_Attribution(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "alice")
	f.account(t, "bob")
	f.resource(t, authz.ScopeRegistry, "r1")

	scope := "r1"
	grant, err := f.svc.GrantRoleOnRegistry(f.ctx, "bob", "observer", &scope, as("alice"))
	require.NoError(t, err)
	scope = "mutated"

	assert.Equal(t, "alice", grant.CreatedBy)
	assert.Equal(t, testNow, grant.CreatedOn)
	require.NotNil(t, grant.ScopeID)
	assert.Equal(t, "r1", *grant.ScopeID)
	assert.True(t, grant.Active())
	assert.Equal(t, authz.AccountSubject("bob"), grant.Subject)
}

// TestPurpose: Validates input checks of the grant ledger.
// Scope: Unit Test
// Expected: UnknownRole, NotFound, MissingActor and InvalidInput errors for the respective bad inputs; nothing is stored.
// Test Case ID: AUT-22
func TestLedger_Validation(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "alice")
	f.account(t, "bob")
	f.resource(t, authz.ScopeNamespace, "ns-1")

	_, err := f.svc.GrantRoleOnNamespace(f.ctx, "bob", "missing", ptr("ns-1"), as("alice"))
	require.ErrorIs(t, err, authz.ErrUnknownRole)
	assert.Equal(t, "Role name missing does not exist.", err.Error())

	err = f.svc.RevokeRoleOnNamespace(f.ctx, "bob", "missing", ptr("ns-1"), as("alice"))
	assert.ErrorIs(t, err, authz.ErrUnknownRole)

	_, err = f.svc.GrantRoleOnNamespace(f.ctx, "bob", "observer", ptr("ns-404"), as("alice"))
	assert.ErrorIs(t, err, authz.ErrNotFound)

	_, err = f.svc.GrantRoleOnNamespace(f.ctx, "ghost", "observer", ptr("ns-1"), as("alice"))
	assert.ErrorIs(t, err, authz.ErrNotFound)

	_, err = f.svc.GrantRoleOnNamespaceOnTeam(f.ctx, "no-team", "observer", ptr("ns-1"), as("alice"))
	assert.ErrorIs(t, err, authz.ErrNotFound)

	_, err = f.svc.GrantRoleOnNamespace(f.ctx, "bob", "observer", ptr("ns-1"), authz.Meta{})
	assert.ErrorIs(t, err, authz.ErrMissingActor)

	_, err = f.svc.Grant(f.ctx, authz.AccountSubject("bob"), "observer", authz.ScopeSystem, ptr("ns-1"), as("alice"))
	assert.ErrorIs(t, err, authz.ErrInvalidInput)

	_, err = f.svc.Grant(f.ctx, authz.AccountSubject("bob"), "observer", "cluster", nil, as("alice"))
	assert.ErrorIs(t, err, authz.ErrInvalidInput)

	grants, err := f.store.ListActiveGrants(f.ctx, []authz.Subject{authz.AccountSubject("bob")})
	require.NoError(t, err)
	assert.Empty(t, grants)
}

// TestPurpose: Validates that delegation denials are audited.
// Scope: Unit Test
// Security: Denied escalation attempts must leave an audit trail
// Expected: One grant_denied event naming the actor.
// Test Case ID: AUT-23
func TestLedger_DenialIsAudited(t *testing.T) {
	f := newFixture(t)
	f.account(t, "bob")
	f.account(t, "carol")

	_, err := f.svc.GrantSystemRole(f.ctx, "carol", "admin", as("bob"))
	require.ErrorIs(t, err, authz.ErrDelegationDenied)

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, audit.TypeGrantDenied, f.audit.events[0].Type)
	assert.Equal(t, "bob", f.audit.events[0].ActorID)
	assert.Equal(t, "account:carol", f.audit.events[0].Subject)
}

// TestPurpose: Validates every per-scope team adapter round-trips through grant and revoke.
// Scope: Unit Test
// Expected: Each adapter creates the expected grant and the paired revoke removes it.
// Test Case ID: AUT-24
func TestLedger_TeamAdapters(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "alice")
	f.team(t, "ops")
	f.team(t, "web")
	f.resource(t, authz.ScopeRegistry, "r1")
	f.resource(t, authz.ScopeNamespace, "ns-1")

	type adapter struct {
		class  authz.ScopeClass
		grant  func() (*authz.RoleGrant, error)
		revoke func() error
	}
	meta := as("alice")
	adapters := []adapter{
		{authz.ScopeRegistry,
			func() (*authz.RoleGrant, error) {
				return f.svc.GrantRoleOnRegistryOnTeam(f.ctx, "ops", "developer", ptr("r1"), meta)
			},
			func() error { return f.svc.RevokeRoleOnRegistryOnTeam(f.ctx, "ops", "developer", ptr("r1"), meta) }},
		{authz.ScopeNamespace,
			func() (*authz.RoleGrant, error) {
				return f.svc.GrantRoleOnNamespaceOnTeam(f.ctx, "ops", "developer", ptr("ns-1"), meta)
			},
			func() error { return f.svc.RevokeRoleOnNamespaceOnTeam(f.ctx, "ops", "developer", ptr("ns-1"), meta) }},
		{authz.ScopeTeam,
			func() (*authz.RoleGrant, error) {
				return f.svc.GrantRoleOnTeamForTeam(f.ctx, "ops", "maintainer", ptr("web"), meta)
			},
			func() error { return f.svc.RevokeRoleOnTeamForTeam(f.ctx, "ops", "maintainer", ptr("web"), meta) }},
		{authz.ScopeGlobal,
			func() (*authz.RoleGrant, error) { return f.svc.GrantGlobalRoleOnTeam(f.ctx, "ops", "observer", meta) },
			func() error { return f.svc.RevokeGlobalRoleFromTeam(f.ctx, "ops", "observer", meta) }},
		{authz.ScopeSystem,
			func() (*authz.RoleGrant, error) { return f.svc.GrantSystemRoleOnTeam(f.ctx, "ops", "observer", meta) },
			func() error { return f.svc.RevokeSystemRoleFromTeam(f.ctx, "ops", "observer", meta) }},
	}

	for _, a := range adapters {
		t.Run(string(a.class), func(t *testing.T) {
			g, err := a.grant()
			require.NoError(t, err)
			assert.Equal(t, authz.TeamSubject("ops"), g.Subject)
			assert.Equal(t, a.class, g.Scope)

			require.NoError(t, a.revoke())
			grants, err := f.store.ListActiveGrants(f.ctx, []authz.Subject{authz.TeamSubject("ops")}, a.class)
			require.NoError(t, err)
			assert.Empty(t, grants)
		})
	}
}

// TestPurpose: Validates account-subject team adapters.
// Scope: Unit Test
// Expected: GrantRoleOnTeam grants a team-scoped role that confers teams-write on that team only.
// Test Case ID: AUT-25
func TestLedger_AccountRoleOnTeam(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "alice")
	f.account(t, "bob")
	f.team(t, "web")
	f.team(t, "ops")

	_, err := f.svc.GrantRoleOnTeam(f.ctx, "bob", "maintainer", ptr("web"), as("alice"))
	require.NoError(t, err)

	ok, err := f.svc.HasPermissionOnTeam(f.ctx, "bob", "web", authz.PermTeamsWrite)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.HasPermissionOnTeam(f.ctx, "bob", "ops", authz.PermTeamsWrite)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.RevokeRoleOnTeam(f.ctx, "bob", "maintainer", ptr("web"), as("alice")))
	ok, err = f.svc.HasPermissionOnTeam(f.ctx, "bob", "web", authz.PermTeamsRead)
	require.NoError(t, err)
	assert.False(t, ok)
}
