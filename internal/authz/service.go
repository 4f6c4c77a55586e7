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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kubernaut/kubernaut/internal/audit"
	"github.com/kubernaut/kubernaut/internal/observability/logger"
)

// Service provides authorization business logic: permission checks, the
// grant ledger, role listings and team membership.
type Service struct {
	store       Store
	resolver    *Resolver
	guard       *Guard
	auditLogger audit.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records check, grant and denial counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for zero Meta dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new authorization service
func NewService(store Store, auditLogger audit.Logger, opts ...Option) *Service {
	resolver := NewResolver(store)
	s := &Service{
		store:       store,
		resolver:    resolver,
		guard:       NewGuard(resolver),
		auditLogger: auditLogger,
		tracer:      otel.Tracer("github.com/kubernaut/kubernaut/internal/authz"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver exposes the grant resolver used by the service.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// HasPermission checks whether any System or Global grant the account
// reaches, directly or through a team, confers the permission.
func (s *Service) HasPermission(ctx context.Context, accountID string, perm Permission) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "authz.HasPermission", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("permission", string(perm)),
	))
	defer span.End()
	start := time.Now()

	set, err := s.resolver.SubjectSetFor(ctx, AccountSubject(accountID))
	if err != nil {
		return false, err
	}
	grants, err := s.store.ListActiveGrants(ctx, set.Subjects(), ScopeSystem, ScopeGlobal)
	if err != nil {
		return false, fmt.Errorf("failed to list grants: %w", err)
	}
	allowed := permitsAt(grants, ScopeSystem, nil, perm) || permitsAt(grants, ScopeGlobal, nil, perm)
	s.metrics.check(ctx, ScopeGlobal, allowed, start)
	return allowed, nil
}

// HasPermissionOnRegistry checks the permission on a registry.
func (s *Service) HasPermissionOnRegistry(ctx context.Context, accountID, registryID string, perm Permission) (bool, error) {
	return s.hasPermissionOn(ctx, accountID, ScopeRegistry, registryID, perm)
}

// HasPermissionOnNamespace checks the permission on a namespace.
func (s *Service) HasPermissionOnNamespace(ctx context.Context, accountID, namespaceID string, perm Permission) (bool, error) {
	return s.hasPermissionOn(ctx, accountID, ScopeNamespace, namespaceID, perm)
}

// HasPermissionOnTeam checks the permission on a team.
func (s *Service) HasPermissionOnTeam(ctx context.Context, accountID, teamID string, perm Permission) (bool, error) {
	return s.hasPermissionOn(ctx, accountID, ScopeTeam, teamID, perm)
}

// HasPermissionOn checks the permission at an arbitrary scope. System and
// Global classes ignore scopeID.
func (s *Service) HasPermissionOn(ctx context.Context, accountID string, class ScopeClass, scopeID string, perm Permission) (bool, error) {
	if !class.Concrete() {
		return s.HasPermission(ctx, accountID, perm)
	}
	return s.hasPermissionOn(ctx, accountID, class, scopeID, perm)
}

func (s *Service) hasPermissionOn(ctx context.Context, accountID string, class ScopeClass, scopeID string, perm Permission) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "authz.HasPermissionOn", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("scope.class", string(class)),
		attribute.String("scope.id", scopeID),
		attribute.String("permission", string(perm)),
	))
	defer span.End()
	start := time.Now()

	set, err := s.resolver.SubjectSetFor(ctx, AccountSubject(accountID))
	if err != nil {
		return false, err
	}
	grants, err := s.resolver.Reach(ctx, set, class)
	if err != nil {
		return false, err
	}
	allowed := permitsAt(grants, class, &scopeID, perm)
	s.metrics.check(ctx, class, allowed, start)

	slog.DebugContext(ctx, "permission check",
		logger.AccountID(accountID),
		logger.ScopeClass(string(class)),
		logger.ScopeID(scopeID),
		logger.Permission(string(perm)),
		slog.Bool("allowed", allowed),
	)
	return allowed, nil
}

// EffectiveRank returns the highest rank the subject reaches at the scope,
// or NoRank when no grant applies.
func (s *Service) EffectiveRank(ctx context.Context, subject Subject, class ScopeClass, scopeID *string) (Rank, error) {
	return s.resolver.EffectiveRank(ctx, subject, class, scopeID)
}

func (s *Service) stamp(meta Meta) (Meta, error) {
	if meta.Account == "" {
		return meta, ErrMissingActor
	}
	if meta.Date.IsZero() {
		meta.Date = s.now()
	}
	return meta, nil
}
