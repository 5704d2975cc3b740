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

// Package extract pulls candidate email addresses out of amoCRM contact
// payloads. amoCRM does not flag which custom field carries the email, so
// the extractor recognises a field by its code or by its display name.
package extract

import (
	"strings"

	"github.com/crmleads/ingestion/internal/models"
)

// emailFieldCode is the canonical amoCRM code for the built-in email field.
const emailFieldCode = "EMAIL"

// Candidates returns the candidate emails of one contact in source order:
// field order, then value order within a field.
//
// A custom field is email-bearing when its code is exactly "EMAIL" or its
// display name contains "email" (case-insensitive) — this catches account
// setups with renamed or duplicated email fields ("Work Email", "E-mail 2").
// A value becomes a candidate when, after trimming, it contains "@". That is
// the only filter: full address validation is deliberately out of scope, the
// record store tolerates junk better than the pipeline tolerates dropped
// addresses. Duplicates within one contact are not filtered here —
// suppression happens downstream against the dedup snapshot.
func Candidates(c models.Contact) []string {
	var candidates []string

	for _, field := range c.CustomFields {
		if !emailBearing(field) {
			continue
		}
		for _, v := range field.Values {
			email := strings.TrimSpace(v.Value)
			if email == "" || !strings.Contains(email, "@") {
				continue
			}
			candidates = append(candidates, email)
		}
	}

	return candidates
}

// Normalize produces the dedup key for an email: trimmed and lowercased.
// Only ever used for comparison — the persisted form keeps its original case.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailBearing(f models.CustomField) bool {
	if f.Code == emailFieldCode {
		return true
	}
	return f.Name != "" && strings.Contains(strings.ToLower(f.Name), "email")
}
