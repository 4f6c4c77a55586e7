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

package id_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubernaut/kubernaut/internal/id"
)

func TestNewUUIDv7_UniqueAndValid(t *testing.T) {
	a := id.NewUUIDv7()
	b := id.NewUUIDv7()

	assert.NotEqual(t, a, b)
	assert.True(t, id.Valid(a))
	assert.True(t, id.Valid(b))
	assert.False(t, id.Valid("not-a-uuid"))
}
