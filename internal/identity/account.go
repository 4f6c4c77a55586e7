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
	"errors"
	"fmt"
	"time"

	"github.com/kubernaut/kubernaut/internal/authz"
)

// Domain errors
var (
	ErrIdentityConflict = fmt.Errorf("%w: identity belongs to another account", authz.ErrConstraintViolation)
	ErrSelfDelete       = errors.New("an account cannot delete itself")
	ErrInvalidIdentity  = fmt.Errorf("%w: identity name and provider are required", authz.ErrInvalidInput)
)

// Identity is an external login bound to an account. (Name, Provider, Type)
// is unique among active accounts.
type Identity struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
}

// Account represents a person or automation acting in the system
type Account struct {
	ID          string
	DisplayName string
	Identities  []Identity
	CreatedOn   time.Time
	CreatedBy   string
	DeletedOn   *time.Time
	DeletedBy   *string
}

// Active reports whether the account has not been deleted.
func (a *Account) Active() bool {
	return a.DeletedOn == nil
}

// AccountData holds the caller-supplied fields of a new account.
type AccountData struct {
	DisplayName string
	Identities  []Identity
}

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	// CreateAccount stores the account and its identities. An identity held
	// by another active account fails with ErrIdentityConflict.
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccount retrieves an active account by ID
	GetAccount(ctx context.Context, id string) (*Account, error)

	// FindAccountByIdentity retrieves the active account bound to the identity
	FindAccountByIdentity(ctx context.Context, identity Identity) (*Account, error)

	// DeleteAccount soft-deletes an account
	DeleteAccount(ctx context.Context, id string, meta authz.Meta) error
}

// Store is the persistence surface of the identity service. Account creation
// and bootstrap run together inside InTx.
type Store interface {
	authz.Store
	AccountRepository

	// InTx runs fn against a Store bound to a single transaction, committing
	// when fn returns nil.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// LockBootstrap serializes bootstrap decisions until the enclosing
	// transaction ends.
	LockBootstrap(ctx context.Context) error
}

// Authorizer answers global permission checks.
type Authorizer interface {
	HasPermission(ctx context.Context, accountID string, perm authz.Permission) (bool, error)
}
