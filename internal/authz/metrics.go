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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kubernaut/kubernaut/internal/observability/metrics"
)

// Metrics holds the engine's counters. A nil *Metrics records nothing.
type Metrics struct {
	checks   metric.Int64Counter
	duration metric.Float64Histogram
	grants   metric.Int64Counter
	denials  metric.Int64Counter
}

// NewMetrics registers the engine counters on the meter.
func NewMetrics(m *metrics.Meter) (*Metrics, error) {
	checks, err := m.CreateCounter("kubernaut_authz_checks_total", "Permission checks evaluated")
	if err != nil {
		return nil, err
	}
	duration, err := m.CreateHistogram("kubernaut_authz_check_duration_seconds", "Permission check latency", "s")
	if err != nil {
		return nil, err
	}
	grants, err := m.CreateCounter("kubernaut_authz_grants_total", "Role grants and revocations applied")
	if err != nil {
		return nil, err
	}
	denials, err := m.CreateCounter("kubernaut_authz_denials_total", "Grant or revoke attempts rejected by delegation rules")
	if err != nil {
		return nil, err
	}
	return &Metrics{checks: checks, duration: duration, grants: grants, denials: denials}, nil
}

func (m *Metrics) check(ctx context.Context, class ScopeClass, allowed bool, start time.Time) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("scope", string(class)),
		attribute.Bool("allowed", allowed),
	)
	m.checks.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (m *Metrics) mutation(ctx context.Context, action Action, class ScopeClass) {
	if m == nil {
		return
	}
	m.grants.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("scope", string(class)),
	))
}

func (m *Metrics) denial(ctx context.Context, action Action, class ScopeClass) {
	if m == nil {
		return
	}
	m.denials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("scope", string(class)),
	))
}
