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
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/authz"
	"github.com/kubernaut/kubernaut/internal/id"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
)

// Service provides account lifecycle operations
type Service struct {
	store       Store
	authorizer  Authorizer
	bootstrap   BootstrapPolicy
	auditLogger audit.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewService creates a new identity service
func NewService(store Store, authorizer Authorizer, auditLogger audit.Logger) *Service {
	return &Service{
		store:       store,
		authorizer:  authorizer,
		auditLogger: auditLogger,
		tracer:      otel.Tracer("github.com/kubernaut/kubernaut/internal/identity"),
		now:         time.Now,
	}
}

// CreateAccount creates an account on behalf of meta.Account, which needs
// accounts-write unless it is the root account. The first account ever
// created becomes the system administrator.
func (s *Service) CreateAccount(ctx context.Context, data AccountData, meta authz.Meta) (*Account, error) {
	ctx, span := s.tracer.Start(ctx, "identity.CreateAccount")
	defer span.End()

	if meta.Account == "" {
		return nil, authz.ErrMissingActor
	}
	for _, ident := range data.Identities {
		if err := validateIdentity(ident); err != nil {
			return nil, err
		}
	}
	if meta.Account != authz.RootAccountID {
		if err := s.require(ctx, meta.Account, authz.PermAccountsWrite); err != nil {
			return nil, err
		}
	}
	return s.create(ctx, data, s.stamp(meta))
}

// EnsureAccount returns the active account bound to ident, creating it when
// none exists. An empty meta.Account attributes the creation to the root
// account, as identity provisioning happens before any actor is known.
func (s *Service) EnsureAccount(ctx context.Context, data AccountData, ident Identity, meta authz.Meta) (*Account, error) {
	ctx, span := s.tracer.Start(ctx, "identity.EnsureAccount")
	defer span.End()

	if err := validateIdentity(ident); err != nil {
		return nil, err
	}

	account, err := s.store.FindAccountByIdentity(ctx, ident)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, authz.ErrNotFound) {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if meta.Account == "" {
		meta.Account = authz.RootAccountID
	}
	if data.DisplayName == "" {
		data.DisplayName = ident.Name
	}
	data.Identities = append([]Identity{ident}, data.Identities...)

	account, err = s.create(ctx, data, s.stamp(meta))
	if errors.Is(err, ErrIdentityConflict) {
		// A concurrent request provisioned the same identity first.
		return s.store.FindAccountByIdentity(ctx, ident)
	}
	return account, err
}

// GetAccount retrieves an active account by ID
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount soft-deletes an account. The actor needs accounts-write and
// may not delete its own account.
func (s *Service) DeleteAccount(ctx context.Context, accountID string, meta authz.Meta) error {
	ctx, span := s.tracer.Start(ctx, "identity.DeleteAccount")
	defer span.End()

	if meta.Account == "" {
		return authz.ErrMissingActor
	}
	if meta.Account == accountID {
		return ErrSelfDelete
	}
	if err := s.require(ctx, meta.Account, authz.PermAccountsWrite); err != nil {
		return err
	}
	meta = s.stamp(meta)

	if err := s.store.DeleteAccount(ctx, accountID, meta); err != nil {
		return err
	}

	slog.InfoContext(ctx, "account deleted", logger.ActorID(meta.Account), logger.AccountID(accountID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeAccountDeleted,
		ActorID:   meta.Account,
		Subject:   authz.AccountSubject(accountID).String(),
		Timestamp: meta.Date,
	})
	return nil
}

func (s *Service) create(ctx context.Context, data AccountData, meta authz.Meta) (*Account, error) {
	account := &Account{
		ID:          id.NewUUIDv7(),
		DisplayName: strings.TrimSpace(data.DisplayName),
		Identities:  data.Identities,
		CreatedOn:   meta.Date,
		CreatedBy:   meta.Account,
	}

	var promoted bool
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.CreateAccount(ctx, account); err != nil {
			return err
		}
		var err error
		promoted, err = s.bootstrap.Apply(ctx, tx, account.ID, meta.Date)
		return err
	})
	if err != nil {
		if errors.Is(err, authz.ErrConstraintViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.InfoContext(ctx, "account created", logger.ActorID(meta.Account), logger.AccountID(account.ID))
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeAccountCreated,
		ActorID:   meta.Account,
		Subject:   authz.AccountSubject(account.ID).String(),
		Metadata:  map[string]any{"display_name": account.DisplayName},
		Timestamp: meta.Date,
	})
	if promoted {
		slog.InfoContext(ctx, "bootstrapped first account as administrator", logger.AccountID(account.ID))
		s.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeBootstrapAdmin,
			ActorID:   audit.ActorSystemBootstrap,
			Subject:   authz.AccountSubject(account.ID).String(),
			Resource:  string(authz.ScopeGlobal),
			Metadata:  map[string]any{"role": string(authz.RoleAdmin)},
			Timestamp: meta.Date,
		})
	}
	return account, nil
}

func (s *Service) require(ctx context.Context, actorID string, perm authz.Permission) error {
	allowed, err := s.authorizer.HasPermission(ctx, actorID, perm)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s", authz.ErrPermissionDenied, perm)
	}
	return nil
}

func (s *Service) stamp(meta authz.Meta) authz.Meta {
	if meta.Date.IsZero() {
		meta.Date = s.now()
	}
	return meta
}

func validateIdentity(ident Identity) error {
	if strings.TrimSpace(ident.Name) == "" || strings.TrimSpace(ident.Provider) == "" {
		return ErrInvalidIdentity
	}
	return nil
}
