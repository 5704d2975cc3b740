// Copyright (c) 2026 John Earle
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

// import seeds the spreadsheet from a plain-text email list (one address per
// line, # comments allowed), deduplicating against what the sheet already
// holds.
//
// Usage:
//
//	import -file emails.txt [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/crmleads/ingestion/internal/backfill"
	"github.com/crmleads/ingestion/internal/config"
	"github.com/crmleads/ingestion/internal/sheets"
)

func main() {
	var (
		file   = flag.String("file", "", "path to email list (one per line)")
		dryRun = flag.Bool("dry-run", false, "read the sheet and report, but write nothing")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: import -file emails.txt [-dry-run]")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, err := sheets.NewClient(ctx, cfg.SpreadsheetID, cfg.CredentialsFile)
	if err != nil {
		slog.Error("failed to create sheets client", "error", err)
		os.Exit(1)
	}

	in, err := os.Open(*file)
	if err != nil {
		slog.Error("failed to open input file", "file", *file, "error", err)
		os.Exit(1)
	}
	defer in.Close()

	runner := backfill.NewRunner(store, *dryRun)
	result, err := runner.Run(ctx, in)
	if err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("total %d  imported %d  skipped %d  invalid %d  errors %d  (%s)\n",
		result.Total, result.Imported, result.Skipped, result.Invalid, result.Errors, result.Elapsed)

	if result.Errors > 0 {
		os.Exit(1)
	}
}
