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

	"github.com/kubernaut/kubernaut/internal/authz"
)

// TestPurpose: Validates that System and Global grants reach every concrete resource while scoped grants stay on their resource.
// Scope: Unit Test
// Security: Horizontal isolation between resources of the same class
// Expected: Global observer reads every namespace; a namespace developer only acts on that namespace.
// Test Case ID: AUT-03
func TestEngine_GlobalReachAndScopedIsolation(t *testing.T) {
	f := newFixture(t)
	f.account(t, "global-observer")
	f.account(t, "scoped-dev")
	f.resource(t, authz.ScopeNamespace, "ns-1")
	f.resource(t, authz.ScopeNamespace, "ns-2")

	f.seed(t, authz.AccountSubject("global-observer"), authz.RoleObserver, authz.ScopeGlobal, nil)
	f.seed(t, authz.AccountSubject("scoped-dev"), authz.RoleDeveloper, authz.ScopeNamespace, ptr("ns-1"))

	ok, err := f.svc.HasPermission(f.ctx, "global-observer", authz.PermNamespacesRead)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, ns := range []string{"ns-1", "ns-2"} {
		ok, err = f.svc.HasPermissionOnNamespace(f.ctx, "global-observer", ns, authz.PermNamespacesRead)
		require.NoError(t, err)
		assert.True(t, ok, ns)
	}
	ok, err = f.svc.HasPermissionOnNamespace(f.ctx, "global-observer", "ns-1", authz.PermDeploymentsWrite)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.HasPermission(f.ctx, "scoped-dev", authz.PermNamespacesRead)
	require.NoError(t, err)
	assert.False(t, ok, "scoped grants never satisfy global checks")

	ok, err = f.svc.HasPermissionOnNamespace(f.ctx, "scoped-dev", "ns-1", authz.PermDeploymentsWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.HasPermissionOnNamespace(f.ctx, "scoped-dev", "ns-2", authz.PermNamespacesRead)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.HasPermissionOnRegistry(f.ctx, "scoped-dev", "ns-1", authz.PermRegistriesRead)
	require.NoError(t, err)
	assert.False(t, ok, "grants do not leak across scope classes")
}

// TestPurpose: Validates that a wildcard grant covers every resource of its class, including resources created after the grant.
// Scope: Unit Test
// Expected: Wildcard registry developer can write to registries created before and after the grant, but not to namespaces.
// Test Case ID: AUT-04
func TestEngine_WildcardDominance(t *testing.T) {
	f := newFixture(t)
	f.account(t, "dev")
	f.resource(t, authz.ScopeRegistry, "r-old")
	f.seed(t, authz.AccountSubject("dev"), authz.RoleDeveloper, authz.ScopeRegistry, nil)
	f.resource(t, authz.ScopeRegistry, "r-new")
	f.resource(t, authz.ScopeNamespace, "ns-1")

	for _, r := range []string{"r-old", "r-new"} {
		ok, err := f.svc.HasPermissionOnRegistry(f.ctx, "dev", r, authz.PermRegistriesWrite)
		require.NoError(t, err)
		assert.True(t, ok, r)
	}

	ok, err := f.svc.HasPermissionOnNamespace(f.ctx, "dev", "ns-1", authz.PermNamespacesRead)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.HasPermission(f.ctx, "dev", authz.PermRegistriesWrite)
	require.NoError(t, err)
	assert.False(t, ok, "class wildcards are not global grants")
}

// TestPurpose: Validates OR-aggregation through team membership, including revocation and restoration of the membership.
// Scope: Unit Test
// Security: Inherited privileges must disappear as soon as the membership is revoked
// Expected: Member inherits the team's permissions only while the membership is active.
// Test Case ID: AUT-05
func TestEngine_TeamInheritance(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "root-admin")
	f.account(t, "x")
	f.team(t, "t1")
	f.resource(t, authz.ScopeNamespace, "ns-1")
	f.seed(t, authz.TeamSubject("t1"), authz.RoleMaintainer, authz.ScopeNamespace, ptr("ns-1"))

	check := func() bool {
		ok, err := f.svc.HasPermissionOnNamespace(f.ctx, "x", "ns-1", authz.PermNamespacesWrite)
		require.NoError(t, err)
		return ok
	}

	assert.False(t, check())

	require.NoError(t, f.svc.AssociateAccountWithTeam(f.ctx, "x", "t1", as("root-admin")))
	assert.True(t, check())

	require.NoError(t, f.svc.DisassociateAccount(f.ctx, "x", "t1", as("root-admin")))
	assert.False(t, check())

	require.NoError(t, f.svc.AssociateAccountWithTeam(f.ctx, "x", "t1", as("root-admin")))
	assert.True(t, check())
}

// TestPurpose: Validates that the effective rank is the maximum across direct and team grants.
// Scope: Unit Test
// Expected: Direct observer plus team admin yields admin; no grants yields NoRank.
// Test Case ID: AUT-06
func TestEngine_EffectiveRankTakesMaximum(t *testing.T) {
	f := newFixture(t)
	f.account(t, "x")
	f.account(t, "nobody")
	f.team(t, "t1")
	f.resource(t, authz.ScopeRegistry, "r1")
	f.join(t, "x", "t1")

	f.seed(t, authz.AccountSubject("x"), authz.RoleObserver, authz.ScopeRegistry, ptr("r1"))
	f.seed(t, authz.TeamSubject("t1"), authz.RoleAdmin, authz.ScopeRegistry, nil)

	rank, err := f.svc.EffectiveRank(f.ctx, authz.AccountSubject("x"), authz.ScopeRegistry, ptr("r1"))
	require.NoError(t, err)
	assert.Equal(t, authz.RankOf(authz.RoleAdmin), rank)

	rank, err = f.svc.EffectiveRank(f.ctx, authz.AccountSubject("nobody"), authz.ScopeRegistry, ptr("r1"))
	require.NoError(t, err)
	assert.Equal(t, authz.NoRank, rank)

	rank, err = f.svc.EffectiveRank(f.ctx, authz.TeamSubject("t1"), authz.ScopeRegistry, ptr("r1"))
	require.NoError(t, err)
	assert.Equal(t, authz.RankOf(authz.RoleAdmin), rank)

	rank, err = f.svc.EffectiveRank(f.ctx, authz.AccountSubject("x"), authz.ScopeGlobal, nil)
	require.NoError(t, err)
	assert.Equal(t, authz.NoRank, rank)
}

// TestPurpose: Validates that a System grant alone counts for global permission checks but not for Global-scope rank.
// Scope: Unit Test
// Expected: HasPermission true; EffectiveRank at Global is NoRank.
// Test Case ID: AUT-07
func TestEngine_SystemGrantCountsForGlobalChecks(t *testing.T) {
	f := newFixture(t)
	f.account(t, "sys")
	f.resource(t, authz.ScopeTeam, "t1")
	f.seed(t, authz.AccountSubject("sys"), authz.RoleAdmin, authz.ScopeSystem, nil)

	ok, err := f.svc.HasPermission(f.ctx, "sys", authz.PermAccountsWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.HasPermissionOnTeam(f.ctx, "sys", "t1", authz.PermTeamsManage)
	require.NoError(t, err)
	assert.True(t, ok)

	rank, err := f.svc.EffectiveRank(f.ctx, authz.AccountSubject("sys"), authz.ScopeGlobal, nil)
	require.NoError(t, err)
	assert.Equal(t, authz.NoRank, rank)
}

// TestPurpose: Validates scenario: team "platform" holds maintainer on registry R1; Dave gains and loses registries-write with his membership.
// Scope: Unit Test
// Expected: registries-write on R1 is true while Dave is a member and false after he leaves.
// Test Case ID: AUT-08
func TestScenario_TeamMaintainerOnRegistry(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "alice")
	f.account(t, "dave")
	f.team(t, "platform")
	f.resource(t, authz.ScopeRegistry, "R1")

	_, err := f.svc.GrantRoleOnRegistryOnTeam(f.ctx, "platform", "maintainer", ptr("R1"), as("alice"))
	require.NoError(t, err)

	require.NoError(t, f.svc.AssociateAccountWithTeam(f.ctx, "dave", "platform", as("alice")))
	ok, err := f.svc.HasPermissionOnRegistry(f.ctx, "dave", "R1", authz.PermRegistriesWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.svc.DisassociateAccount(f.ctx, "dave", "platform", as("alice")))
	ok, err = f.svc.HasPermissionOnRegistry(f.ctx, "dave", "R1", authz.PermRegistriesWrite)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates that a soft-deleted account loses every permission and cannot act.
// Scope: Unit Test
// Security: Revoked principal retains privileges (CWE-613)
// Expected: Checks on the deleted account return false; grants and membership
// changes attributed to it fail with NotFound; its earlier grants to others stand.
// Test Case ID: AUT-09
func TestEngine_DeletedAccountHoldsNothing(t *testing.T) {
	f := newFixture(t)
	f.admin(t, "alice")
	f.account(t, "bob")
	f.team(t, "team-a")
	f.resource(t, authz.ScopeNamespace, "ns-1")
	_, err := f.svc.GrantGlobalRole(f.ctx, "bob", string(authz.RoleObserver), as("alice"))
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteAccount(f.ctx, "alice", as(authz.RootAccountID)))

	ok, err := f.svc.HasPermission(f.ctx, "alice", authz.PermAccountsWrite)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.svc.HasPermissionOnNamespace(f.ctx, "alice", "ns-1", authz.PermNamespacesRead)
	require.NoError(t, err)
	assert.False(t, ok)
	rank, err := f.svc.EffectiveRank(f.ctx, authz.AccountSubject("alice"), authz.ScopeGlobal, nil)
	require.NoError(t, err)
	assert.Equal(t, authz.NoRank, rank)

	_, err = f.svc.GrantGlobalRole(f.ctx, "bob", string(authz.RoleAdmin), as("alice"))
	assert.ErrorIs(t, err, authz.ErrNotFound)
	var nf *authz.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "alice", nf.ID)

	err = f.svc.RevokeGlobalRole(f.ctx, "bob", string(authz.RoleObserver), as("alice"))
	assert.ErrorIs(t, err, authz.ErrNotFound)
	assert.ErrorIs(t, f.svc.AssociateAccountWithTeam(f.ctx, "bob", "team-a", as("alice")), authz.ErrNotFound)

	ok, err = f.svc.HasPermission(f.ctx, "bob", authz.PermClustersRead)
	require.NoError(t, err)
	assert.True(t, ok)
}
