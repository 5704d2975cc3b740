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

// Package backfill seeds the record store from an existing email list —
// typically an export from a previous collection setup. It runs through the
// same dedup-then-append path as webhook ingestion, one snapshot for the
// whole run.
package backfill

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/crmleads/ingestion/internal/dedup"
	"github.com/crmleads/ingestion/internal/pipeline"
)

// Result summarises a completed import run.
type Result struct {
	Total    int // non-blank lines read
	Imported int // rows appended
	Skipped  int // already present
	Invalid  int // lines without the @ separator
	Errors   int // append failures
	Elapsed  time.Duration
}

// Runner imports emails from a line-oriented reader into the record store.
type Runner struct {
	store  pipeline.Store
	dryRun bool
	now    func() time.Time
}

// NewRunner creates an import runner. With dryRun set, the store is read
// but never written — the result shows what a real run would do.
func NewRunner(store pipeline.Store, dryRun bool) *Runner {
	return &Runner{
		store:  store,
		dryRun: dryRun,
		now:    time.Now,
	}
}

// Run reads one email per line (blank lines and lines starting with #
// ignored), trims each, and appends the previously-unseen ones. Per-email
// append failures are logged and counted; they never abort the run.
func (r *Runner) Run(ctx context.Context, in io.Reader) (*Result, error) {
	start := r.now()

	records, err := r.store.ReadAll(ctx)
	if err != nil {
		// Unlike webhook ingestion there is no caller waiting: a bulk
		// import against an unreadable store would re-add everything,
		// so fail instead.
		return nil, fmt.Errorf("read record store: %w", err)
	}
	snapshot := dedup.NewSnapshot(records)
	date := r.now().Format("02.01.2006")

	result := &Result{}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		email := strings.TrimSpace(scanner.Text())
		if email == "" || strings.HasPrefix(email, "#") {
			continue
		}
		result.Total++

		if !strings.Contains(email, "@") {
			result.Invalid++
			slog.Warn("skipping line without separator", "line", email)
			continue
		}

		if snapshot.Contains(email) {
			result.Skipped++
			continue
		}

		if r.dryRun {
			snapshot.Add(email)
			result.Imported++
			continue
		}

		if err := r.store.Append(ctx, email, date); err != nil {
			result.Errors++
			slog.Error("import append failed", "email", email, "error", err)
			continue
		}

		snapshot.Add(email)
		result.Imported++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read input: %w", err)
	}

	result.Elapsed = time.Since(start)

	slog.Info("import complete",
		"total", result.Total,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"invalid", result.Invalid,
		"errors", result.Errors,
		"dry_run", r.dryRun,
		"elapsed", result.Elapsed,
	)

	return result, nil
}
