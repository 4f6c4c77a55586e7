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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/id"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/store/memory"
	"github.com/kubernaut/kubernaut/internal/team"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingAuditLogger captures audit events for assertions.
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditLogger) Log(ctx context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAuditLogger) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	ctx   context.Context
	store *memory.Store
	svc   *authz.Service
	audit *recordingAuditLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	rec := &recordingAuditLogger{}
	return &fixture{
		ctx:   context.Background(),
		store: store,
		svc:   authz.NewService(store, rec, authz.WithClock(func() time.Time { return testNow })),
		audit: rec,
	}
}

func (f *fixture) account(t *testing.T, accountID string) {
	t.Helper()
	require.NoError(t, f.store.CreateAccount(f.ctx, &identity.Account{ID: accountID, DisplayName: accountID}))
}

func (f *fixture) team(t *testing.T, teamID string) {
	t.Helper()
	require.NoError(t, f.store.CreateTeam(f.ctx, &team.Team{ID: teamID, Name: teamID}))
}

func (f *fixture) resource(t *testing.T, class authz.ScopeClass, resourceID string) {
	t.Helper()
	if class == authz.ScopeTeam {
		f.team(t, resourceID)
		return
	}
	require.NoError(t, f.store.CreateResource(f.ctx, class, authz.Resource{ID: resourceID, Name: resourceID}))
}

// seed stores a grant directly, bypassing delegation.
func (f *fixture) seed(t *testing.T, subject authz.Subject, role authz.RoleName, class authz.ScopeClass, scopeID *string) {
	t.Helper()
	_, err := f.store.InsertGrant(f.ctx, &authz.RoleGrant{
		ID:        id.NewUUIDv7(),
		Subject:   subject,
		Role:      role,
		Scope:     class,
		ScopeID:   scopeID,
		CreatedOn: testNow,
		CreatedBy: authz.RootAccountID,
	})
	require.NoError(t, err)
}

// admin seeds an account holding System and Global admin.
func (f *fixture) admin(t *testing.T, accountID string) {
	t.Helper()
	f.account(t, accountID)
	f.seed(t, authz.AccountSubject(accountID), authz.RoleAdmin, authz.ScopeSystem, nil)
	f.seed(t, authz.AccountSubject(accountID), authz.RoleAdmin, authz.ScopeGlobal, nil)
}

func (f *fixture) join(t *testing.T, accountID, teamID string) {
	t.Helper()
	_, err := f.store.InsertMembership(f.ctx, &authz.Membership{
		ID: id.NewUUIDv7(), AccountID: accountID, TeamID: teamID, CreatedOn: testNow, CreatedBy: authz.RootAccountID,
	})
	require.NoError(t, err)
}

func as(actorID string) authz.Meta {
	return authz.Meta{Account: actorID}
}

func ptr(s string) *string { return &s }
