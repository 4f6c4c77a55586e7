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

package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that a disabled tracer is usable and shuts down cleanly.
// Scope: Unit Test
// Expected: Spans can be started and Shutdown is a no-op.
// Test Case ID: OBS-10
func TestNew_Disabled(t *testing.T) {
	tr, err := New(context.Background(), Config{ServiceName: "kubernaut-test"})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "op")
	span.End()
	assert.NoError(t, tr.Shutdown(context.Background()))
}
