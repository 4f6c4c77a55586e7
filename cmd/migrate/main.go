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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kubernaut/kubernaut/internal/store/postgres"
)

func main() {
	var (
		dsn     = pflag.String("dsn", os.Getenv("KUBERNAUT_DATABASE_URL"), "PostgreSQL connection string (default $KUBERNAUT_DATABASE_URL)")
		timeout = pflag.Duration("timeout", time.Minute, "maximum time to spend applying the schema")
		dump    = pflag.Bool("print", false, "print the schema instead of applying it")
	)
	pflag.Parse()

	if *dump {
		fmt.Print(postgres.InitialSchema)
		return
	}
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "--dsn or KUBERNAUT_DATABASE_URL is required")
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := migrate(ctx, *dsn); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration successful.")
}

func migrate(ctx context.Context, dsn string) error {
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx, postgres.InitialSchema)
}
