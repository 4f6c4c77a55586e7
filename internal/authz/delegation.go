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
)

// Guard enforces delegation: an actor may only hand out or take away roles
// it could exercise itself at the same scope.
type Guard struct {
	resolver *Resolver
}

// NewGuard creates a delegation guard over the resolver.
func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Check decides whether actorID may perform action with role on subject at
// the scope. It returns a *DelegationDeniedError when the actor may not.
//
// Rules, in order:
//  1. An account never modifies its own System or Global roles.
//  2. Global roles require the actor to hold an active Global grant.
//  3. The actor's effective rank at the scope must be at least the role's rank.
func (g *Guard) Check(ctx context.Context, action Action, actorID string, subject Subject, role RoleName, class ScopeClass, scopeID *string) error {
	denied := &DelegationDeniedError{Action: action, Scope: class, Role: role}

	if !class.Concrete() && subject == AccountSubject(actorID) {
		return denied
	}

	actor := AccountSubject(actorID)
	if class == ScopeGlobal {
		set, err := g.resolver.SubjectSetFor(ctx, actor)
		if err != nil {
			return err
		}
		global, err := g.resolver.ResolveGrants(ctx, set, ScopeGlobal, nil)
		if err != nil {
			return err
		}
		if len(global) == 0 {
			return denied
		}
	}

	rank, err := g.resolver.EffectiveRank(ctx, actor, class, scopeID)
	if err != nil {
		return fmt.Errorf("failed to resolve actor rank: %w", err)
	}
	if rank < RankOf(role) {
		return denied
	}
	return nil
}
