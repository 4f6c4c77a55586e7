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
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"
)

// Annotation is the header block above a test function.
type Annotation struct {
	Name       string `json:"name"`
	Package    string `json:"package"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"testCaseId,omitempty"`
	Category   string `json:"category"`
}

// Result is the outcome of one test or subtest.
type Result struct {
	Name       string     `json:"name"`
	Package    string     `json:"package"`
	Status     string     `json:"status"`
	Elapsed    float64    `json:"elapsedSeconds"`
	Failure    string     `json:"failure,omitempty"`
	Annotation Annotation `json:"annotation"`
}

// Summary is the rendered report.
type Summary struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []Result  `json:"results"`
}

// testEvent is one line of `go test -json`.
type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

const statusNotRun = "not run"

// categoryOrder fixes the section order of the Markdown report.
var categoryOrder = []string{"AuthZ", "Identity", "Teams", "Storage", "API", "Audit", "Config", "Observability", "Other"}

var categoryByPrefix = map[string]string{
	"AUT":  "AuthZ",
	"IDN":  "Identity",
	"TEAM": "Teams",
	"PG":   "Storage",
	"MEM":  "Storage",
	"API":  "API",
	"AUD":  "Audit",
	"CFG":  "Config",
	"OBS":  "Observability",
}

// category derives the report section from the Test Case ID prefix.
func category(testCaseID string) string {
	prefix, _, _ := strings.Cut(testCaseID, "-")
	if c, ok := categoryByPrefix[prefix]; ok {
		return c
	}
	return "Other"
}

func modulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	return "", errors.New("go.mod has no module directive")
}

// scanAnnotations parses every _test.go file under root and returns the
// annotations keyed by "<import path>.<TestName>".
func scanAnnotations(root, module string) (map[string]Annotation, error) {
	out := make(map[string]Annotation)
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, p, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		pkg := module
		if rel != "." {
			pkg = path.Join(module, filepath.ToSlash(rel))
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			a := parseDoc(fn.Doc)
			a.Name = fn.Name.Name
			a.Package = pkg
			a.Category = category(a.TestCaseID)
			out[pkg+"."+a.Name] = a
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tests: %w", err)
	}
	return out, nil
}

func parseDoc(doc *ast.CommentGroup) Annotation {
	var a Annotation
	if doc == nil {
		return a
	}
	fields := map[string]*string{
		"TestPurpose:":  &a.Purpose,
		"Scope:":        &a.Scope,
		"Security:":     &a.Security,
		"Expected:":     &a.Expected,
		"Test Case ID:": &a.TestCaseID,
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		for key, dst := range fields {
			if v, ok := strings.CutPrefix(text, key); ok {
				*dst = strings.TrimSpace(v)
			}
		}
	}
	return a
}

// mergeEvents folds a `go test -json` stream into one result per test.
// Annotated tests that never ran are reported as "not run"; subtests
// inherit their parent's annotation.
func mergeEvents(r io.Reader, annotations map[string]Annotation) ([]Result, error) {
	results := make(map[string]*Result, len(annotations))
	for key, a := range annotations {
		results[key] = &Result{Name: a.Name, Package: a.Package, Status: statusNotRun, Annotation: a}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev testEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := results[key]
		if !ok {
			parent, _, _ := strings.Cut(ev.Test, "/")
			a, found := annotations[ev.Package+"."+parent]
			if !found {
				a = Annotation{Package: ev.Package, Category: "Other"}
			}
			a.Name = ev.Test
			res = &Result{Name: ev.Test, Package: ev.Package, Status: statusNotRun, Annotation: a}
			results[key] = res
		}

		switch ev.Action {
		case "run":
			res.Status = ""
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "" || res.Status == "fail" {
				res.Failure += ev.Output
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test output: %w", err)
	}

	list := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Status != "fail" {
			res.Failure = ""
		}
		list = append(list, *res)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func filterCategories(results []Result, only, exclude []string) []Result {
	if len(only) == 0 && len(exclude) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		c := r.Annotation.Category
		if len(only) > 0 && !slices.Contains(only, c) {
			continue
		}
		if slices.Contains(exclude, c) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func summarize(results []Result) Summary {
	s := Summary{GeneratedAt: time.Now().UTC(), Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case "pass":
			s.Passed++
		case "fail":
			s.Failed++
		case "skip":
			s.Skipped++
		}
	}
	return s
}

func renderMarkdown(s Summary, title string) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Kubernaut %s\n\n", title)
	fmt.Fprintf(&b, "**Generated:** %s  \n", s.GeneratedAt.Format(time.RFC3339))
	status := "PASSED"
	if s.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "**Status:** %s\n\n", status)

	rate := 0.0
	if s.Total > 0 {
		rate = float64(s.Passed) / float64(s.Total) * 100
	}
	b.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	b.WriteString("|-------|--------|--------|---------|-----------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %.1f%% |\n\n", s.Total, s.Passed, s.Failed, s.Skipped, rate)

	byCategory := make(map[string][]Result)
	for _, r := range s.Results {
		byCategory[r.Annotation.Category] = append(byCategory[r.Annotation.Category], r)
	}
	for _, c := range categoryOrder {
		results := byCategory[c]
		if len(results) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", c)
		b.WriteString("| ID | Test | Status | Purpose | Security |\n")
		b.WriteString("|----|------|--------|---------|----------|\n")
		for _, r := range results {
			security := r.Annotation.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				r.Annotation.TestCaseID, r.Name, r.Status, r.Annotation.Purpose, security)
		}
		b.WriteString("\n")
	}

	if s.Failed > 0 {
		b.WriteString("## Failures\n\n")
		for _, r := range s.Results {
			if r.Status == "fail" {
				fmt.Fprintf(&b, "### %s (%s)\n\n```\n%s```\n\n", r.Name, r.Package, r.Failure)
			}
		}
	}
	return b.String()
}

func writeJSON(p string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return writeFile(p, data)
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}
