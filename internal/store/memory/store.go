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

// Package memory provides an in-process implementation of the account,
// team and grant stores. Transactions are serialized and roll back by
// restoring a snapshot.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/team"
)

var (
	_ identity.Store  = (*Store)(nil)
	_ team.Repository = (*Store)(nil)
)

type state struct {
	accounts    map[string]*identity.Account
	teams       map[string]*team.Team
	resources   map[authz.ScopeClass]map[string]authz.Resource
	grants      []*authz.RoleGrant
	memberships []*authz.Membership
}

func newState() state {
	return state{
		accounts: map[string]*identity.Account{},
		teams:    map[string]*team.Team{},
		resources: map[authz.ScopeClass]map[string]authz.Resource{
			authz.ScopeRegistry:  {},
			authz.ScopeNamespace: {},
		},
	}
}

func (st *state) clone() state {
	out := newState()
	for k, v := range st.accounts {
		out.accounts[k] = copyAccount(v)
	}
	for k, v := range st.teams {
		out.teams[k] = copyTeam(v)
	}
	for class, byID := range st.resources {
		out.resources[class] = maps.Clone(byID)
	}
	for _, g := range st.grants {
		out.grants = append(out.grants, copyGrant(g))
	}
	for _, m := range st.memberships {
		out.memberships = append(out.memberships, copyMembership(m))
	}
	return out
}

type db struct {
	mu   sync.RWMutex // guards st
	txMu sync.Mutex   // serializes writers and transactions
	st   state
}

// Store is safe for concurrent use.
type Store struct {
	db   *db
	inTx bool
}

// New creates an empty store holding only the root account.
func New() *Store {
	s := &Store{db: &db{st: newState()}}
	s.db.st.accounts[authz.RootAccountID] = &identity.Account{
		ID:          authz.RootAccountID,
		DisplayName: "root",
		CreatedBy:   authz.RootAccountID,
	}
	return s
}

func (s *Store) write(fn func(st *state) error) error {
	if !s.inTx {
		s.db.txMu.Lock()
		defer s.db.txMu.Unlock()
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(&s.db.st)
}

func (s *Store) read(fn func(st *state) error) error {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return fn(&s.db.st)
}

// InTx runs fn against a transaction-bound view of the store. Any error
// returned by fn discards every write fn made.
func (s *Store) InTx(ctx context.Context, fn func(tx identity.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.RLock()
	snapshot := s.db.st.clone()
	s.db.mu.RUnlock()

	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.mu.Lock()
		s.db.st = snapshot
		s.db.mu.Unlock()
		return err
	}
	return nil
}

// LockBootstrap is a no-op: transactions are already serialized.
func (s *Store) LockBootstrap(ctx context.Context) error {
	return nil
}

// CreateResource registers a registry or namespace.
func (s *Store) CreateResource(ctx context.Context, class authz.ScopeClass, res authz.Resource) error {
	if class != authz.ScopeRegistry && class != authz.ScopeNamespace {
		return fmt.Errorf("%w: %s resources are managed elsewhere", authz.ErrInvalidInput, class)
	}
	return s.write(func(st *state) error {
		if _, ok := st.resources[class][res.ID]; ok {
			return fmt.Errorf("%w: %s %s already exists", authz.ErrConstraintViolation, class, res.ID)
		}
		st.resources[class][res.ID] = res
		return nil
	})
}

// -----------------------------------------------------------------------------
// Grants
// -----------------------------------------------------------------------------

func (s *Store) InsertGrant(ctx context.Context, grant *authz.RoleGrant) (*authz.RoleGrant, error) {
	var out *authz.RoleGrant
	err := s.write(func(st *state) error {
		key := authz.GrantKey{Subject: grant.Subject, Role: grant.Role, Scope: grant.Scope, ScopeID: grant.ScopeID}
		if existing := st.activeGrant(key); existing != nil {
			out = copyGrant(existing)
			return nil
		}
		stored := copyGrant(grant)
		st.grants = append(st.grants, stored)
		out = copyGrant(stored)
		return nil
	})
	return out, err
}

func (s *Store) RevokeGrant(ctx context.Context, key authz.GrantKey, meta authz.Meta) (bool, error) {
	var revoked bool
	err := s.write(func(st *state) error {
		g := st.activeGrant(key)
		if g == nil {
			return nil
		}
		date, by := meta.Date, meta.Account
		g.RevokedOn, g.RevokedBy = &date, &by
		revoked = true
		return nil
	})
	return revoked, err
}

func (s *Store) ListActiveGrants(ctx context.Context, subjects []authz.Subject, classes ...authz.ScopeClass) ([]*authz.RoleGrant, error) {
	var out []*authz.RoleGrant
	err := s.read(func(st *state) error {
		for _, g := range st.grants {
			if !g.Active() || !slices.Contains(subjects, g.Subject) {
				continue
			}
			if len(classes) > 0 && !slices.Contains(classes, g.Scope) {
				continue
			}
			out = append(out, copyGrant(g))
		}
		return nil
	})
	return out, err
}

func (s *Store) AnyActiveGrant(ctx context.Context, role authz.RoleName, class authz.ScopeClass) (bool, error) {
	var found bool
	err := s.read(func(st *state) error {
		for _, g := range st.grants {
			if g.Active() && g.Role == role && g.Scope == class {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (st *state) activeGrant(key authz.GrantKey) *authz.RoleGrant {
	for _, g := range st.grants {
		if g.Active() && g.Subject == key.Subject && g.Role == key.Role && g.Scope == key.Scope && sameID(g.ScopeID, key.ScopeID) {
			return g
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Memberships
// -----------------------------------------------------------------------------

func (s *Store) InsertMembership(ctx context.Context, membership *authz.Membership) (*authz.Membership, error) {
	var out *authz.Membership
	err := s.write(func(st *state) error {
		if !st.accountActive(membership.AccountID) {
			return &authz.NotFoundError{Kind: "account", ID: membership.AccountID}
		}
		if !st.teamActive(membership.TeamID) {
			return &authz.NotFoundError{Kind: "team", ID: membership.TeamID}
		}
		if existing := st.activeMembership(membership.AccountID, membership.TeamID); existing != nil {
			out = copyMembership(existing)
			return nil
		}
		stored := copyMembership(membership)
		st.memberships = append(st.memberships, stored)
		out = copyMembership(stored)
		return nil
	})
	return out, err
}

func (s *Store) RevokeMembership(ctx context.Context, accountID, teamID string, meta authz.Meta) (bool, error) {
	var revoked bool
	err := s.write(func(st *state) error {
		m := st.activeMembership(accountID, teamID)
		if m == nil {
			return nil
		}
		date, by := meta.Date, meta.Account
		m.RevokedOn, m.RevokedBy = &date, &by
		revoked = true
		return nil
	})
	return revoked, err
}

// ListActiveMemberships skips memberships of deleted teams.
func (s *Store) ListActiveMemberships(ctx context.Context, accountID string) ([]*authz.Membership, error) {
	var out []*authz.Membership
	err := s.read(func(st *state) error {
		for _, m := range st.memberships {
			if m.Active() && m.AccountID == accountID && st.teamActive(m.TeamID) {
				out = append(out, copyMembership(m))
			}
		}
		return nil
	})
	return out, err
}

func (st *state) activeMembership(accountID, teamID string) *authz.Membership {
	for _, m := range st.memberships {
		if m.Active() && m.AccountID == accountID && m.TeamID == teamID {
			return m
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Directory
// -----------------------------------------------------------------------------

func (s *Store) SubjectExists(ctx context.Context, subject authz.Subject) (bool, error) {
	var exists bool
	err := s.read(func(st *state) error {
		switch subject.Kind {
		case authz.SubjectAccount:
			exists = st.accountActive(subject.ID)
		case authz.SubjectTeam:
			exists = st.teamActive(subject.ID)
		}
		return nil
	})
	return exists, err
}

func (s *Store) ResourceExists(ctx context.Context, class authz.ScopeClass, id string) (bool, error) {
	var exists bool
	err := s.read(func(st *state) error {
		if class == authz.ScopeTeam {
			exists = st.teamActive(id)
			return nil
		}
		_, exists = st.resources[class][id]
		return nil
	})
	return exists, err
}

func (s *Store) ListResources(ctx context.Context, class authz.ScopeClass) ([]authz.Resource, error) {
	var out []authz.Resource
	err := s.read(func(st *state) error {
		if class == authz.ScopeTeam {
			for _, t := range st.teams {
				if t.DeletedOn == nil {
					out = append(out, authz.Resource{ID: t.ID, Name: t.Name})
				}
			}
		} else {
			for _, r := range st.resources[class] {
				out = append(out, r)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b authz.Resource) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, err
}

func (st *state) accountActive(id string) bool {
	a, ok := st.accounts[id]
	return ok && a.Active()
}

func (st *state) teamActive(id string) bool {
	t, ok := st.teams[id]
	return ok && t.DeletedOn == nil
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyGrant(g *authz.RoleGrant) *authz.RoleGrant {
	c := *g
	c.ScopeID = copyPtr(g.ScopeID)
	c.RevokedOn = copyPtr(g.RevokedOn)
	c.RevokedBy = copyPtr(g.RevokedBy)
	return &c
}

func copyMembership(m *authz.Membership) *authz.Membership {
	c := *m
	c.RevokedOn = copyPtr(m.RevokedOn)
	c.RevokedBy = copyPtr(m.RevokedBy)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
