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

// Package models defines the data structures shared across the ingestion service.
package models

import "encoding/json"

// Contact is one unit from an amoCRM webhook batch. It exists only for the
// duration of one ingestion call and is never persisted.
//
// Every field in the webhook payload is optional — amoCRM sends whatever
// subset it has, so all accesses downstream must tolerate zero values.
type Contact struct {
	ID           json.Number   `json:"id"`
	CustomFields []CustomField `json:"custom_fields"`
}

// CustomField is one custom field attached to a contact.
type CustomField struct {
	Code   string       `json:"code"`
	Name   string       `json:"name"`
	Values []FieldValue `json:"values"`
}

// FieldValue is a single value of a custom field.
type FieldValue struct {
	Value string `json:"value"`
}

// Record is one persisted row of the record store: the email exactly as it
// was submitted (trimmed, original letter case) and the ingestion date in
// DD.MM.YYYY form.
type Record struct {
	Email string
	Date  string
}
