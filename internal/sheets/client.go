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

// Package sheets wraps the Google Sheets v4 API as the record store for
// collected emails. The sheet is append-only: column A holds the email as
// originally submitted, column B the ingestion date, row 1 is a header.
package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/crmleads/ingestion/internal/models"
)

const (
	// readRange skips the header row; data starts at row 2.
	readRange = "A2:B"

	// appendRange lets the API find the first free row in columns A:B.
	appendRange = "A:B"
)

// Client reads and appends email records in a single spreadsheet.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

// NewClient builds a Sheets client from a service-account key file. The
// credential is scoped to spreadsheet read/write only.
func NewClient(ctx context.Context, spreadsheetID, credentialsFile string) (*Client, error) {
	keyJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %s: %w", credentialsFile, err)
	}

	creds, err := google.CredentialsFromJSON(ctx, keyJSON, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	svc, err := sheetsapi.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewClientWithService wires a pre-built Sheets service. Used by tests to
// point the client at a local stub server.
func NewClientWithService(svc *sheetsapi.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// SpreadsheetID returns the identifier of the backing spreadsheet.
func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

// ReadAll returns every existing record, in sheet order. Rows with an empty
// email cell are skipped. Transport and auth errors are returned to the
// caller: the ingestion pipeline downgrades them to an empty snapshot, the
// synchronous endpoints surface them.
func (c *Client) ReadAll(ctx context.Context) ([]models.Record, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", readRange, err)
	}

	var records []models.Record
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		email := strings.TrimSpace(cellString(row[0]))
		if email == "" {
			continue
		}
		rec := models.Record{Email: email}
		if len(row) > 1 {
			rec.Date = cellString(row[1])
		}
		records = append(records, rec)
	}

	return records, nil
}

// Append adds one new row with the literal email and formatted date.
func (c *Client) Append(ctx context.Context, email, date string) error {
	values := &sheetsapi.ValueRange{
		Values: [][]interface{}{{email, date}},
	}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, appendRange, values).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	return nil
}

// cellString renders a sheet cell as a string. The API returns cells as
// interface{} — USER_ENTERED sheets can hold non-string values.
func cellString(cell interface{}) string {
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprint(cell)
}
