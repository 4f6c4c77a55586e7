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

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/id"
)

// BootstrapPolicy makes the first account the system administrator. It runs
// inside the transaction that persists a new account and bypasses delegation
// checks, as no actor exists yet.
type BootstrapPolicy struct{}

// Apply grants accountID System and Global admin when no active Global admin
// grant exists for any subject. It reports whether the account was promoted.
func (BootstrapPolicy) Apply(ctx context.Context, tx Store, accountID string, date time.Time) (bool, error) {
	if err := tx.LockBootstrap(ctx); err != nil {
		return false, fmt.Errorf("failed to acquire bootstrap lock: %w", err)
	}

	exists, err := tx.AnyActiveGrant(ctx, authz.RoleAdmin, authz.ScopeGlobal)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing global admin: %w", err)
	}
	if exists {
		return false, nil
	}

	for _, class := range []authz.ScopeClass{authz.ScopeSystem, authz.ScopeGlobal} {
		grant := &authz.RoleGrant{
			ID:        id.NewUUIDv7(),
			Subject:   authz.AccountSubject(accountID),
			Role:      authz.RoleAdmin,
			Scope:     class,
			CreatedOn: date,
			CreatedBy: authz.RootAccountID,
		}
		if _, err := tx.InsertGrant(ctx, grant); err != nil {
			return false, fmt.Errorf("failed to grant %s admin during bootstrap: %w", class, err)
		}
	}
	return true, nil
}
