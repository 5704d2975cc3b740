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

// Package dedup provides duplicate suppression for ingested emails.
//
// A Snapshot is built once per ingestion call from a point-in-time read of
// the record store, then mutated locally as that call appends new rows. It
// is owned by exactly one ingestion call and never shared — cross-call
// consistency comes from the single-worker ingestion queue, not from here.
package dedup

import (
	"github.com/crmleads/ingestion/internal/extract"
	"github.com/crmleads/ingestion/internal/models"
)

// Snapshot is a set of normalized emails known to exist in the store.
type Snapshot struct {
	seen map[string]struct{}
}

// NewSnapshot builds a snapshot from store records. Record emails are
// normalized on the way in so lookups are a single set probe.
func NewSnapshot(records []models.Record) *Snapshot {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[extract.Normalize(r.Email)] = struct{}{}
	}
	return &Snapshot{seen: seen}
}

// Contains reports whether the candidate's normalized form is present.
func (s *Snapshot) Contains(candidate string) bool {
	_, ok := s.seen[extract.Normalize(candidate)]
	return ok
}

// Add marks the candidate as present. Called after a successful append so
// later duplicates in the same batch are suppressed without re-reading the
// store.
func (s *Snapshot) Add(candidate string) {
	s.seen[extract.Normalize(candidate)] = struct{}{}
}

// Len returns the number of distinct normalized emails in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.seen)
}
