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

// Command testreport merges `go test -json` output with the annotation
// headers of the test functions and renders JSON and Markdown reports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	var (
		input   = pflag.StringP("input", "i", "", "path to go test -json output")
		outJSON = pflag.String("out-json", "", "path for the JSON report")
		outMD   = pflag.String("out-md", "", "path for the Markdown report")
		root    = pflag.String("root", ".", "module root to scan for annotated tests")
		title   = pflag.String("title", "Test Report", "report title")
		only    = pflag.StringSlice("category", nil, "only include these categories")
		exclude = pflag.StringSlice("exclude-category", nil, "exclude these categories")
	)
	pflag.Parse()

	if *input == "" || (*outJSON == "" && *outMD == "") {
		fmt.Fprintln(os.Stderr, "usage: testreport -i <go-test.json> [--out-json file] [--out-md file]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*root, *input, *outJSON, *outMD, *title, *only, *exclude); err != nil {
		fmt.Fprintf(os.Stderr, "testreport: %v\n", err)
		os.Exit(1)
	}
}

func run(root, input, outJSON, outMD, title string, only, exclude []string) error {
	module, err := modulePath(root)
	if err != nil {
		return err
	}
	annotations, err := scanAnnotations(root, module)
	if err != nil {
		return err
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open test output: %w", err)
	}
	defer f.Close()

	results, err := mergeEvents(f, annotations)
	if err != nil {
		return err
	}
	summary := summarize(filterCategories(results, only, exclude))

	if outJSON != "" {
		if err := writeJSON(outJSON, summary); err != nil {
			return err
		}
	}
	if outMD != "" {
		if err := writeFile(outMD, []byte(renderMarkdown(summary, title))); err != nil {
			return err
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d tests failed", summary.Failed)
	}
	return nil
}
