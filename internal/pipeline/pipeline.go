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

// Package pipeline orchestrates one ingestion call: snapshot the record
// store, extract candidate emails from the batch, suppress duplicates,
// append the rest. It runs after the webhook has already been acknowledged,
// so nothing here ever propagates back to the caller — outcomes are logged.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/crmleads/ingestion/internal/dedup"
	"github.com/crmleads/ingestion/internal/extract"
	"github.com/crmleads/ingestion/internal/models"
)

// dateLayout is the ingestion date format persisted in column B (DD.MM.YYYY).
const dateLayout = "02.01.2006"

// Store is the narrow record-store interface the pipeline depends on.
// Implemented by sheets.Client; tests substitute an in-memory fake.
type Store interface {
	ReadAll(ctx context.Context) ([]models.Record, error)
	Append(ctx context.Context, email, date string) error
}

// Summary reports the outcome of one ingestion call.
type Summary struct {
	Considered int // candidate emails examined
	Added      int // rows appended to the store
}

// AddStatus is the outcome of a synchronous manual add.
type AddStatus string

const (
	AddDuplicate AddStatus = "duplicate"
	AddSuccess   AddStatus = "success"
	AddFailure   AddStatus = "failure"
)

// Pipeline ingests webhook contact batches into the record store.
type Pipeline struct {
	store Store
	now   func() time.Time
}

// New creates an ingestion pipeline backed by the given store.
func New(store Store) *Pipeline {
	return &Pipeline{
		store: store,
		now:   time.Now,
	}
}

// Ingest processes one webhook delivery. Candidates are handled strictly
// sequentially in batch order (field order, then value order within a
// contact): the snapshot is mutated in place after each successful append
// and must be current before the next candidate is checked.
//
// A store-read failure downgrades to an empty snapshot — the batch still
// runs, trading possible duplicate rows for availability. A store-write
// failure skips that one candidate without touching the snapshot, so an
// identical candidate later in the batch is retried rather than silently
// treated as present.
func (p *Pipeline) Ingest(ctx context.Context, contacts []models.Contact) Summary {
	snapshot := p.snapshot(ctx)
	date := p.now().Format(dateLayout)

	var sum Summary
	for _, contact := range contacts {
		for _, candidate := range extract.Candidates(contact) {
			sum.Considered++

			if snapshot.Contains(candidate) {
				slog.Info("skipping email, already present",
					"email", candidate,
					"contact", contact.ID.String(),
				)
				continue
			}

			if err := p.store.Append(ctx, candidate, date); err != nil {
				slog.Error("append failed, skipping email",
					"email", candidate,
					"error", err,
				)
				continue
			}

			snapshot.Add(candidate)
			sum.Added++
			slog.Info("email added", "email", candidate, "date", date)
		}
	}

	slog.Info("ingestion call complete",
		"contacts", len(contacts),
		"considered", sum.Considered,
		"added", sum.Added,
	)

	return sum
}

// AddOne performs a synchronous single-email add: fresh snapshot,
// containment check, conditional append. Used by the manual test endpoint
// and the bulk importer, not by batch ingestion.
func (p *Pipeline) AddOne(ctx context.Context, email string) AddStatus {
	snapshot := p.snapshot(ctx)

	if snapshot.Contains(email) {
		return AddDuplicate
	}

	if err := p.store.Append(ctx, email, p.now().Format(dateLayout)); err != nil {
		slog.Error("manual append failed", "email", email, "error", err)
		return AddFailure
	}

	return AddSuccess
}

// snapshot reads the store and builds the per-call dedup set. Read errors
// are logged and downgraded to "assume nothing exists yet".
func (p *Pipeline) snapshot(ctx context.Context) *dedup.Snapshot {
	records, err := p.store.ReadAll(ctx)
	if err != nil {
		slog.Error("store read failed, assuming empty state", "error", err)
		return dedup.NewSnapshot(nil)
	}

	slog.Info("record store snapshot built", "existing_emails", len(records))
	return dedup.NewSnapshot(records)
}
