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

package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/identity"
	"github.com/kubernaut/kubernaut/internal/team"
)

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, account *identity.Account) error {
	return s.write(func(st *state) error {
		if _, ok := st.accounts[account.ID]; ok {
			return fmt.Errorf("%w: account %s already exists", authz.ErrConstraintViolation, account.ID)
		}
		for _, ident := range account.Identities {
			if st.accountByIdentity(ident) != nil {
				return identity.ErrIdentityConflict
			}
		}
		st.accounts[account.ID] = copyAccount(account)
		return nil
	})
}

func (s *Store) GetAccount(ctx context.Context, id string) (*identity.Account, error) {
	var out *identity.Account
	err := s.read(func(st *state) error {
		if !st.accountActive(id) {
			return &authz.NotFoundError{Kind: "account", ID: id}
		}
		out = copyAccount(st.accounts[id])
		return nil
	})
	return out, err
}

func (s *Store) FindAccountByIdentity(ctx context.Context, ident identity.Identity) (*identity.Account, error) {
	var out *identity.Account
	err := s.read(func(st *state) error {
		a := st.accountByIdentity(ident)
		if a == nil {
			return &authz.NotFoundError{Kind: "identity", ID: ident.Provider + "/" + ident.Name}
		}
		out = copyAccount(a)
		return nil
	})
	return out, err
}

func (s *Store) DeleteAccount(ctx context.Context, id string, meta authz.Meta) error {
	return s.write(func(st *state) error {
		if !st.accountActive(id) {
			return &authz.NotFoundError{Kind: "account", ID: id}
		}
		a := st.accounts[id]
		date, by := meta.Date, meta.Account
		a.DeletedOn, a.DeletedBy = &date, &by
		return nil
	})
}

func (st *state) accountByIdentity(ident identity.Identity) *identity.Account {
	for _, a := range st.accounts {
		if a.Active() && slices.Contains(a.Identities, ident) {
			return a
		}
	}
	return nil
}

func copyAccount(a *identity.Account) *identity.Account {
	c := *a
	c.Identities = slices.Clone(a.Identities)
	c.DeletedOn = copyPtr(a.DeletedOn)
	c.DeletedBy = copyPtr(a.DeletedBy)
	return &c
}

// -----------------------------------------------------------------------------
// Teams
// -----------------------------------------------------------------------------

func (s *Store) CreateTeam(ctx context.Context, t *team.Team) error {
	return s.write(func(st *state) error {
		if _, ok := st.teams[t.ID]; ok {
			return fmt.Errorf("%w: team %s already exists", authz.ErrConstraintViolation, t.ID)
		}
		if st.teamByName(t.Name) != nil {
			return team.ErrNameTaken
		}
		st.teams[t.ID] = copyTeam(t)
		return nil
	})
}

func (s *Store) GetTeam(ctx context.Context, id string) (*team.Team, error) {
	var out *team.Team
	err := s.read(func(st *state) error {
		if !st.teamActive(id) {
			return &authz.NotFoundError{Kind: "team", ID: id}
		}
		out = copyTeam(st.teams[id])
		return nil
	})
	return out, err
}

func (s *Store) GetTeamByName(ctx context.Context, name string) (*team.Team, error) {
	var out *team.Team
	err := s.read(func(st *state) error {
		t := st.teamByName(name)
		if t == nil {
			return &authz.NotFoundError{Kind: "team", ID: name}
		}
		out = copyTeam(t)
		return nil
	})
	return out, err
}

func (s *Store) ListTeams(ctx context.Context) ([]*team.Team, error) {
	var out []*team.Team
	err := s.read(func(st *state) error {
		for _, t := range st.teams {
			if t.DeletedOn == nil {
				out = append(out, copyTeam(t))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *team.Team) int { return strings.Compare(a.Name, b.Name) })
	return out, err
}

func (s *Store) DeleteTeam(ctx context.Context, id string, meta authz.Meta) error {
	return s.write(func(st *state) error {
		if !st.teamActive(id) {
			return &authz.NotFoundError{Kind: "team", ID: id}
		}
		t := st.teams[id]
		date, by := meta.Date, meta.Account
		t.DeletedOn, t.DeletedBy = &date, &by
		return nil
	})
}

func (st *state) teamByName(name string) *team.Team {
	for _, t := range st.teams {
		if t.DeletedOn == nil && t.Name == name {
			return t
		}
	}
	return nil
}

func copyTeam(t *team.Team) *team.Team {
	c := *t
	c.Attributes = maps.Clone(t.Attributes)
	c.DeletedOn = copyPtr(t.DeletedOn)
	c.DeletedBy = copyPtr(t.DeletedBy)
	return &c
}
