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

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTest = `package authz

// TestPurpose: Validates rank ordering.
// Scope: Unit Test
// Security: Privilege escalation
// Expected: Higher roles dominate.
// Test Case ID: AUT-01
func TestRanks(t *testing.T) {}

func TestUnannotated(t *testing.T) {}

func TestNeverRuns(t *testing.T) {}
`

const sampleEvents = `{"Action":"run","Package":"example.com/mod/internal/authz","Test":"TestRanks"}
{"Action":"output","Package":"example.com/mod/internal/authz","Test":"TestRanks","Output":"=== RUN TestRanks\n"}
{"Action":"pass","Package":"example.com/mod/internal/authz","Test":"TestRanks","Elapsed":0.01}
{"Action":"run","Package":"example.com/mod/internal/authz","Test":"TestRanks/admin"}
{"Action":"pass","Package":"example.com/mod/internal/authz","Test":"TestRanks/admin","Elapsed":0}
{"Action":"run","Package":"example.com/mod/internal/authz","Test":"TestUnannotated"}
{"Action":"output","Package":"example.com/mod/internal/authz","Test":"TestUnannotated","Output":"boom\n"}
{"Action":"fail","Package":"example.com/mod/internal/authz","Test":"TestUnannotated","Elapsed":0.02}
not json
{"Action":"pass","Package":"example.com/mod/internal/authz","Elapsed":0.5}
`

func writeModule(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/mod\n\ngo 1.25\n"), 0o644))
	dir := filepath.Join(root, "internal", "authz")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roles_test.go"), []byte(sampleTest), 0o644))
	skipped := filepath.Join(root, "_examples", "other")
	require.NoError(t, os.MkdirAll(skipped, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skipped, "x_test.go"), []byte(sampleTest), 0o644))
	return root
}

// TestPurpose: Validates annotation scanning of test headers.
// Scope: Unit Test
// Expected: Header fields are parsed and categorised; underscore directories are skipped.
// Test Case ID: OBS-30
func TestScanAnnotations(t *testing.T) {
	root := writeModule(t)

	module, err := modulePath(root)
	require.NoError(t, err)
	assert.Equal(t, "example.com/mod", module)

	annotations, err := scanAnnotations(root, module)
	require.NoError(t, err)
	require.Len(t, annotations, 3)

	a := annotations["example.com/mod/internal/authz.TestRanks"]
	assert.Equal(t, "Validates rank ordering.", a.Purpose)
	assert.Equal(t, "Privilege escalation", a.Security)
	assert.Equal(t, "AUT-01", a.TestCaseID)
	assert.Equal(t, "AuthZ", a.Category)
	assert.Equal(t, "Other", annotations["example.com/mod/internal/authz.TestUnannotated"].Category)
}

// TestPurpose: Validates merging of go test -json events with annotations.
// Scope: Unit Test
// Expected: Statuses, failures and subtest inheritance are reported; unknown lines are ignored.
// Test Case ID: OBS-31
func TestMergeEvents(t *testing.T) {
	root := writeModule(t)
	annotations, err := scanAnnotations(root, "example.com/mod")
	require.NoError(t, err)

	results, err := mergeEvents(strings.NewReader(sampleEvents), annotations)
	require.NoError(t, err)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	require.Len(t, byName, 4)

	assert.Equal(t, "pass", byName["TestRanks"].Status)
	assert.Empty(t, byName["TestRanks"].Failure)
	assert.Equal(t, "AUT-01", byName["TestRanks/admin"].Annotation.TestCaseID)
	assert.Equal(t, "fail", byName["TestUnannotated"].Status)
	assert.Equal(t, "boom\n", byName["TestUnannotated"].Failure)
	assert.Equal(t, statusNotRun, byName["TestNeverRuns"].Status)

	s := summarize(results)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)

	md := renderMarkdown(s, "Unit Tests")
	assert.Contains(t, md, "# Kubernaut Unit Tests")
	assert.Contains(t, md, "**Status:** FAILED")
	assert.Contains(t, md, "| AUT-01 | TestRanks | pass |")
	assert.Contains(t, md, "### TestUnannotated")

	assert.Len(t, filterCategories(results, []string{"AuthZ"}, nil), 2)
	assert.Len(t, filterCategories(results, nil, []string{"AuthZ"}), 2)
}

// TestPurpose: Validates the end-to-end report run.
// Scope: Unit Test
// Expected: Reports are written and a failing run returns an error.
// Test Case ID: OBS-32
func TestRun(t *testing.T) {
	root := writeModule(t)
	input := filepath.Join(root, "out.json")
	require.NoError(t, os.WriteFile(input, []byte(sampleEvents), 0o644))
	outJSON := filepath.Join(root, "reports", "report.json")
	outMD := filepath.Join(root, "reports", "report.md")

	err := run(root, input, outJSON, outMD, "Report", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 tests failed")
	assert.FileExists(t, outJSON)
	assert.FileExists(t, outMD)

	err = run(root, input, outJSON, "", "Report", nil, []string{"Other"})
	assert.NoError(t, err)
}
