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
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/id"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
)

// Grant issues role to subject at the scope on behalf of meta.Account.
// Granting a role the subject already holds there returns the existing grant.
func (s *Service) Grant(ctx context.Context, subject Subject, role string, class ScopeClass, scopeID *string, meta Meta) (*RoleGrant, error) {
	ctx, span := s.startMutation(ctx, "authz.Grant", subject, role, class, scopeID)
	defer span.End()

	key, meta, err := s.prepare(ctx, ActionGrant, subject, role, class, scopeID, meta)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	grant := &RoleGrant{
		ID:        id.NewUUIDv7(),
		Subject:   key.Subject,
		Role:      key.Role,
		Scope:     key.Scope,
		ScopeID:   key.ScopeID,
		CreatedOn: meta.Date,
		CreatedBy: meta.Account,
	}
	stored, err := s.store.InsertGrant(ctx, grant)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to insert grant: %w", err)
	}
	if stored.ID != grant.ID {
		slog.DebugContext(ctx, "role already granted", grantAttrs(meta.Account, key)...)
		return stored, nil
	}

	s.metrics.mutation(ctx, ActionGrant, key.Scope)
	slog.InfoContext(ctx, "role granted", grantAttrs(meta.Account, key)...)
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeRoleGranted,
		ActorID:   meta.Account,
		Subject:   key.Subject.String(),
		Resource:  resourceName(key.Scope, key.ScopeID),
		Metadata:  map[string]any{"role": string(key.Role), "grant_id": stored.ID},
		Timestamp: meta.Date,
	})
	return stored, nil
}

// Revoke withdraws role from subject at the scope on behalf of meta.Account.
// Revoking a grant that is absent or already revoked succeeds.
func (s *Service) Revoke(ctx context.Context, subject Subject, role string, class ScopeClass, scopeID *string, meta Meta) error {
	ctx, span := s.startMutation(ctx, "authz.Revoke", subject, role, class, scopeID)
	defer span.End()

	key, meta, err := s.prepare(ctx, ActionRevoke, subject, role, class, scopeID, meta)
	if err != nil {
		recordError(span, err)
		return err
	}

	revoked, err := s.store.RevokeGrant(ctx, key, meta)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	if !revoked {
		slog.DebugContext(ctx, "role not held, nothing to revoke", grantAttrs(meta.Account, key)...)
		return nil
	}

	s.metrics.mutation(ctx, ActionRevoke, key.Scope)
	slog.InfoContext(ctx, "role revoked", grantAttrs(meta.Account, key)...)
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeRoleRevoked,
		ActorID:   meta.Account,
		Subject:   key.Subject.String(),
		Resource:  resourceName(key.Scope, key.ScopeID),
		Metadata:  map[string]any{"role": string(key.Role)},
		Timestamp: meta.Date,
	})
	return nil
}

// prepare validates a ledger mutation and runs the delegation check.
func (s *Service) prepare(ctx context.Context, action Action, subject Subject, role string, class ScopeClass, scopeID *string, meta Meta) (GrantKey, Meta, error) {
	roleName, err := ParseRole(role)
	if err != nil {
		return GrantKey{}, meta, err
	}
	if _, err := ParseScopeClass(string(class)); err != nil {
		return GrantKey{}, meta, err
	}
	if !class.Concrete() && scopeID != nil {
		return GrantKey{}, meta, fmt.Errorf("%w: %s roles take no scope id", ErrInvalidInput, class)
	}
	if subject.Kind != SubjectAccount && subject.Kind != SubjectTeam {
		return GrantKey{}, meta, fmt.Errorf("%w: unknown subject kind %q", ErrInvalidInput, subject.Kind)
	}
	meta, err = s.stamp(meta)
	if err != nil {
		return GrantKey{}, meta, err
	}
	if err := s.requireSubject(ctx, AccountSubject(meta.Account)); err != nil {
		return GrantKey{}, meta, err
	}

	exists, err := s.store.SubjectExists(ctx, subject)
	if err != nil {
		return GrantKey{}, meta, fmt.Errorf("failed to look up %s: %w", subject.Kind, err)
	}
	if !exists {
		return GrantKey{}, meta, notFound(string(subject.Kind), subject.ID)
	}

	if scopeID != nil {
		target := *scopeID
		scopeID = &target
		exists, err := s.store.ResourceExists(ctx, class, target)
		if err != nil {
			return GrantKey{}, meta, fmt.Errorf("failed to look up %s: %w", class, err)
		}
		if !exists {
			return GrantKey{}, meta, notFound(string(class), target)
		}
	}

	key := GrantKey{Subject: subject, Role: roleName, Scope: class, ScopeID: scopeID}
	if err := s.guard.Check(ctx, action, meta.Account, subject, roleName, class, scopeID); err != nil {
		if errors.Is(err, ErrDelegationDenied) {
			s.denied(ctx, action, meta, key, err)
		}
		return GrantKey{}, meta, err
	}
	return key, meta, nil
}

func (s *Service) denied(ctx context.Context, action Action, meta Meta, key GrantKey, err error) {
	s.metrics.denial(ctx, action, key.Scope)
	slog.WarnContext(ctx, "delegation denied", append(grantAttrs(meta.Account, key), logger.Error(err))...)
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeGrantDenied,
		ActorID:   meta.Account,
		Subject:   key.Subject.String(),
		Resource:  resourceName(key.Scope, key.ScopeID),
		Metadata:  map[string]any{"role": string(key.Role), "action": string(action)},
		Timestamp: meta.Date,
	})
}

func (s *Service) startMutation(ctx context.Context, name string, subject Subject, role string, class ScopeClass, scopeID *string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("subject", subject.String()),
		attribute.String("role", role),
		attribute.String("scope.class", string(class)),
	}
	if scopeID != nil {
		attrs = append(attrs, attribute.String("scope.id", *scopeID))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func grantAttrs(actorID string, key GrantKey) []any {
	attrs := []any{
		logger.ActorID(actorID),
		logger.Subject(key.Subject.String()),
		logger.Role(string(key.Role)),
		logger.ScopeClass(string(key.Scope)),
	}
	if key.ScopeID != nil {
		attrs = append(attrs, logger.ScopeID(*key.ScopeID))
	}
	return attrs
}

func resourceName(class ScopeClass, scopeID *string) string {
	if scopeID == nil {
		if class.Concrete() {
			return string(class) + ":*"
		}
		return string(class)
	}
	return string(class) + ":" + *scopeID
}
