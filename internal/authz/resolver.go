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

// SubjectSet is a subject together with every team it inherits grants from.
type SubjectSet struct {
	AccountID string
	TeamIDs   []string
}

// Subjects returns the grant owners the set expands to.
func (s SubjectSet) Subjects() []Subject {
	out := make([]Subject, 0, len(s.TeamIDs)+1)
	if s.AccountID != "" {
		out = append(out, AccountSubject(s.AccountID))
	}
	for _, id := range s.TeamIDs {
		out = append(out, TeamSubject(id))
	}
	return out
}

// Resolver composes grant queries over storage. It holds no state of its own.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over the store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// SubjectSetFor expands an account to itself and the teams of its active
// memberships. A team expands to itself. A deleted or unknown account
// expands to the empty set and so holds no permissions.
func (r *Resolver) SubjectSetFor(ctx context.Context, subject Subject) (SubjectSet, error) {
	if subject.Kind == SubjectTeam {
		return SubjectSet{TeamIDs: []string{subject.ID}}, nil
	}
	active, err := r.store.SubjectExists(ctx, subject)
	if err != nil {
		return SubjectSet{}, fmt.Errorf("failed to look up account: %w", err)
	}
	if !active {
		return SubjectSet{}, nil
	}
	memberships, err := r.store.ListActiveMemberships(ctx, subject.ID)
	if err != nil {
		return SubjectSet{}, fmt.Errorf("failed to list memberships: %w", err)
	}
	set := SubjectSet{AccountID: subject.ID}
	for _, m := range memberships {
		set.TeamIDs = append(set.TeamIDs, m.TeamID)
	}
	return set, nil
}

// ResolveGrants returns the active grants of the set at the class whose
// scope equals scopeID or is the class wildcard.
func (r *Resolver) ResolveGrants(ctx context.Context, set SubjectSet, class ScopeClass, scopeID *string) ([]*RoleGrant, error) {
	grants, err := r.store.ListActiveGrants(ctx, set.Subjects(), class)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return matching(grants, class, scopeID), nil
}

// Reach loads every grant of the set that can apply to the class: the class
// itself plus, for concrete classes, System and Global grants.
func (r *Resolver) Reach(ctx context.Context, set SubjectSet, class ScopeClass) ([]*RoleGrant, error) {
	classes := []ScopeClass{class}
	if class.Concrete() {
		classes = append(classes, ScopeSystem, ScopeGlobal)
	}
	grants, err := r.store.ListActiveGrants(ctx, set.Subjects(), classes...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

// EffectiveRank returns the highest rank the subject reaches at the scope,
// directly or through its teams, or NoRank.
func (r *Resolver) EffectiveRank(ctx context.Context, subject Subject, class ScopeClass, scopeID *string) (Rank, error) {
	set, err := r.SubjectSetFor(ctx, subject)
	if err != nil {
		return NoRank, err
	}
	grants, err := r.Reach(ctx, set, class)
	if err != nil {
		return NoRank, err
	}
	return rankAt(grants, class, scopeID), nil
}

// GrantableRoles returns the roles with rank at most actorRank that are not
// already in existing, lowest first.
func GrantableRoles(actorRank Rank, existing []RoleName) []RoleName {
	var out []RoleName
	for _, role := range RolesUpTo(actorRank) {
		if !slices.Contains(existing, role) {
			out = append(out, role)
		}
	}
	return out
}

// matching filters grants to those covering the scope target.
func matching(grants []*RoleGrant, class ScopeClass, scopeID *string) []*RoleGrant {
	var out []*RoleGrant
	for _, g := range grants {
		if g.Active() && g.Covers(class, scopeID) {
			out = append(out, g)
		}
	}
	return out
}

// applicable filters reach grants to those in effect at the scope target.
func applicable(grants []*RoleGrant, class ScopeClass, scopeID *string) []*RoleGrant {
	out := matching(grants, class, scopeID)
	if class.Concrete() {
		out = append(out, matching(grants, ScopeSystem, nil)...)
		out = append(out, matching(grants, ScopeGlobal, nil)...)
	}
	return out
}

func rankAt(grants []*RoleGrant, class ScopeClass, scopeID *string) Rank {
	best := NoRank
	for _, g := range applicable(grants, class, scopeID) {
		if rank := RankOf(g.Role); rank > best {
			best = rank
		}
	}
	return best
}

func permitsAt(grants []*RoleGrant, class ScopeClass, scopeID *string, perm Permission) bool {
	for _, g := range applicable(grants, class, scopeID) {
		if g.Role.Has(perm) {
			return true
		}
	}
	return false
}

func rolesOf(grants []*RoleGrant) []RoleName {
	var out []RoleName
	for _, g := range grants {
		if !slices.Contains(out, g.Role) {
			out = append(out, g.Role)
		}
	}
	slices.SortFunc(out, func(a, b RoleName) int { return int(RankOf(a) - RankOf(b)) })
	return out
}
