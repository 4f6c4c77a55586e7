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


//go:build integration
// +build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/id"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/team"
)

func openTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()

	cfg := Config{
		Host:         envOr("KUBERNAUT_DB_HOST", "localhost"),
		Port:         envOr("KUBERNAUT_DB_PORT", "5432"),
		User:         envOr("KUBERNAUT_DB_USER", "kubernaut"),
		Password:     envOr("KUBERNAUT_DB_PASSWORD", "kubernaut_dev_password"),
		Database:     envOr("KUBERNAUT_DB_NAME", "kubernaut"),
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}
	db, err := New(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx, InitialSchema))
	_, err = db.Pool().Exec(ctx, `TRUNCATE team_memberships, role_grants, resources, teams, account_identities CASCADE`)
	require.NoError(t, err)
	_, err = db.Pool().Exec(ctx, `DELETE FROM accounts WHERE id <> $1`, authz.RootAccountID)
	require.NoError(t, err)

	return NewStore(db), ctx
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestPurpose: Validates idempotent grant storage and soft revocation against PostgreSQL.
// Scope: Database Integration Test
// Expected: Duplicate live grants collapse to one row; revocation keeps history and allows a fresh grant.
// Test Case ID: PG-01
func TestStore_Grants(t *testing.T) {
	store, ctx := openTestStore(t)
	require.NoError(t, store.CreateAccount(ctx, &identity.Account{ID: "bob", DisplayName: "Bob", CreatedOn: time.Now(), CreatedBy: authz.RootAccountID}))
	require.NoError(t, store.CreateResource(ctx, authz.ScopeNamespace, authz.Resource{ID: "n42", Name: "n42"}))

	ns := "n42"
	grant := func() *authz.RoleGrant {
		return &authz.RoleGrant{
			ID: id.NewUUIDv7(), Subject: authz.AccountSubject("bob"), Role: authz.RoleDeveloper,
			Scope: authz.ScopeNamespace, ScopeID: &ns, CreatedOn: time.Now(), CreatedBy: authz.RootAccountID,
		}
	}

	first, err := store.InsertGrant(ctx, grant())
	require.NoError(t, err)
	second, err := store.InsertGrant(ctx, grant())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	grants, err := store.ListActiveGrants(ctx, []authz.Subject{authz.AccountSubject("bob")}, authz.ScopeNamespace)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "n42", *grants[0].ScopeID)

	key := authz.GrantKey{Subject: authz.AccountSubject("bob"), Role: authz.RoleDeveloper, Scope: authz.ScopeNamespace, ScopeID: &ns}
	revoked, err := store.RevokeGrant(ctx, key, authz.Meta{Date: time.Now(), Account: authz.RootAccountID})
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = store.RevokeGrant(ctx, key, authz.Meta{Date: time.Now(), Account: authz.RootAccountID})
	require.NoError(t, err)
	assert.False(t, revoked)

	third, err := store.InsertGrant(ctx, grant())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	global, err := store.AnyActiveGrant(ctx, authz.RoleAdmin, authz.ScopeGlobal)
	require.NoError(t, err)
	assert.False(t, global)
}

// TestPurpose: Validates identity uniqueness, team names and membership filtering against PostgreSQL.
// Scope: Database Integration Test
// Expected: Conflicts map to domain errors; memberships of deleted teams are hidden.
// Test Case ID: PG-02
func TestStore_Directory(t *testing.T) {
	store, ctx := openTestStore(t)
	gh := identity.Identity{Name: "alice", Provider: "github", Type: "user"}

	require.NoError(t, store.CreateAccount(ctx, &identity.Account{
		ID: "alice", DisplayName: "Alice", Identities: []identity.Identity{gh}, CreatedOn: time.Now(), CreatedBy: authz.RootAccountID,
	}))
	err := store.CreateAccount(ctx, &identity.Account{
		ID: "alice2", DisplayName: "Alice", Identities: []identity.Identity{gh}, CreatedOn: time.Now(), CreatedBy: authz.RootAccountID,
	})
	assert.ErrorIs(t, err, identity.ErrIdentityConflict)

	found, err := store.FindAccountByIdentity(ctx, gh)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.ID)
	assert.Equal(t, []identity.Identity{gh}, found.Identities)

	require.NoError(t, store.CreateTeam(ctx, &team.Team{ID: "t1", Name: "ops", Attributes: map[string]string{"k": "v"}, CreatedOn: time.Now(), CreatedBy: "alice"}))
	assert.ErrorIs(t, store.CreateTeam(ctx, &team.Team{ID: "t2", Name: "ops", CreatedOn: time.Now(), CreatedBy: "alice"}), team.ErrNameTaken)

	_, err = store.InsertMembership(ctx, &authz.Membership{ID: id.NewUUIDv7(), AccountID: "alice", TeamID: "t1", CreatedOn: time.Now(), CreatedBy: "alice"})
	require.NoError(t, err)
	_, err = store.InsertMembership(ctx, &authz.Membership{ID: id.NewUUIDv7(), AccountID: "alice", TeamID: "nope", CreatedOn: time.Now(), CreatedBy: "alice"})
	assert.ErrorIs(t, err, authz.ErrNotFound)

	memberships, err := store.ListActiveMemberships(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, memberships, 1)

	require.NoError(t, store.DeleteTeam(ctx, "t1", authz.Meta{Date: time.Now(), Account: "alice"}))
	memberships, err = store.ListActiveMemberships(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, memberships)

	require.NoError(t, store.DeleteAccount(ctx, "alice", authz.Meta{Date: time.Now(), Account: authz.RootAccountID}))
	_, err = store.FindAccountByIdentity(ctx, gh)
	assert.ErrorIs(t, err, authz.ErrNotFound)
}

// TestPurpose: Validates that concurrent first-account creations bootstrap exactly one administrator under PostgreSQL.
// Scope: Database Integration Test
// Security: Race-free bootstrap via advisory lock
// Expected: Exactly one account holds System and Global admin.
// Test Case ID: PG-03
func TestStore_ConcurrentBootstrap(t *testing.T) {
	store, ctx := openTestStore(t)
	az := authz.NewService(store, audit.Nop{})
	svc := identity.NewService(store, az, audit.Nop{})

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := svc.EnsureAccount(ctx, identity.AccountData{}, identity.Identity{
				Name: fmt.Sprintf("user-%d", i), Provider: "github", Type: "user",
			}, authz.Meta{})
			if assert.NoError(t, err) {
				ids[i] = acc.ID
			}
		}(i)
	}
	wg.Wait()

	admins := 0
	for _, accountID := range ids {
		grants, err := store.ListActiveGrants(ctx, []authz.Subject{authz.AccountSubject(accountID)})
		require.NoError(t, err)
		if len(grants) > 0 {
			admins++
			assert.Len(t, grants, 2)
		}
	}
	assert.Equal(t, 1, admins)
}

// TestPurpose: Validates that grant insertion stays idempotent while the same grant is being revoked.
// Scope: Database Integration Test
// Expected: Every insert returns a grant for the key and never an error, whatever order the
// concurrent revokes land in.
// Test Case ID: PG-04
func TestStore_InsertGrantRacesRevoke(t *testing.T) {
	store, ctx := openTestStore(t)
	require.NoError(t, store.CreateAccount(ctx, &identity.Account{ID: "bob", DisplayName: "Bob", CreatedOn: time.Now(), CreatedBy: authz.RootAccountID}))
	key := authz.GrantKey{Subject: authz.AccountSubject("bob"), Role: authz.RoleObserver, Scope: authz.ScopeGlobal}

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range rounds {
			stored, err := store.InsertGrant(ctx, &authz.RoleGrant{
				ID: id.NewUUIDv7(), Subject: key.Subject, Role: key.Role, Scope: key.Scope,
				CreatedOn: time.Now(), CreatedBy: authz.RootAccountID,
			})
			if err != nil {
				errs <- err
				continue
			}
			if stored.Role != key.Role || stored.Subject != key.Subject {
				errs <- fmt.Errorf("unexpected grant %+v", stored)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for range rounds {
			if _, err := store.RevokeGrant(ctx, key, authz.Meta{Date: time.Now(), Account: authz.RootAccountID}); err != nil {
				errs <- err
			}
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	grants, err := store.ListActiveGrants(ctx, []authz.Subject{key.Subject}, authz.ScopeGlobal)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(grants), 1)
}
