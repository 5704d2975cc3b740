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

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crmleads/ingestion/internal/models"
	"github.com/crmleads/ingestion/internal/pipeline"
	"github.com/crmleads/ingestion/internal/queue"
)

// fakeStore is an in-memory record store for handler tests.
type fakeStore struct {
	mu      sync.Mutex
	records []models.Record

	readErr   error
	appendErr error

	readCalls   int
	appendCalls int
}

func (f *fakeStore) ReadAll(ctx context.Context) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]models.Record(nil), f.records...), nil
}

func (f *fakeStore) Append(ctx context.Context, email, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, models.Record{Email: email, Date: date})
	return nil
}

func (f *fakeStore) snapshot() []models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Record(nil), f.records...)
}

func newTestHandler(t *testing.T, store *fakeStore) *Handler {
	t.Helper()

	pipe := pipeline.New(store)
	worker := queue.NewWorker(pipe, 8)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		worker.Stop()
	})

	return NewHandler(pipe, worker, store, "sheet-123")
}

func decodeStatus(t *testing.T, rr *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

// TestServeNotification_AcknowledgesAndProcesses verifies the ack-then-ingest
// flow end to end against an in-memory store.
func TestServeNotification_AcknowledgesAndProcesses(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(t, store)

	body := `{"contacts":[{"id":42,"custom_fields":[{"code":"EMAIL","values":[{"value":"alice@x.com"}]}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/amocrm", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if resp := decodeStatus(t, rr); resp.Status != "ok" {
		t.Errorf("response status = %q, want ok", resp.Status)
	}

	// Processing happens after the ack — wait for the worker.
	waitFor(t, func() bool { return len(store.snapshot()) == 1 })

	if recs := store.snapshot(); recs[0].Email != "alice@x.com" {
		t.Errorf("persisted = %+v", recs[0])
	}
}

// TestServeNotification_MalformedBodyStillAcknowledged verifies the caller
// always sees success, even for bodies we cannot parse.
func TestServeNotification_MalformedBodyStillAcknowledged(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/webhook/amocrm", strings.NewReader("not json"))
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if resp := decodeStatus(t, rr); resp.Status != "ok" {
		t.Errorf("response status = %q, want ok", resp.Status)
	}
}

// TestServeNotification_MissingContacts verifies an absent contacts key is
// an empty batch, not an error.
func TestServeNotification_MissingContacts(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/webhook/amocrm", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

// TestServeNotification_RejectsGet verifies the method guard.
func TestServeNotification_RejectsGet(t *testing.T) {
	h := newTestHandler(t, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/webhook/amocrm", nil)
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

// TestServeAddTestEmail covers the four manual-add outcomes.
func TestServeAddTestEmail(t *testing.T) {
	t.Run("invalid email, no store interaction", func(t *testing.T) {
		store := &fakeStore{}
		h := newTestHandler(t, store)

		req := httptest.NewRequest(http.MethodPost, "/add-test-email", strings.NewReader(`{"email":"not-an-email"}`))
		rr := httptest.NewRecorder()

		h.ServeAddTestEmail(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
		if store.readCalls != 0 || store.appendCalls != 0 {
			t.Errorf("store touched: reads=%d appends=%d, want none", store.readCalls, store.appendCalls)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		store := &fakeStore{records: []models.Record{{Email: "alice@x.com"}}}
		h := newTestHandler(t, store)

		req := httptest.NewRequest(http.MethodPost, "/add-test-email", strings.NewReader(`{"email":"ALICE@X.com"}`))
		rr := httptest.NewRecorder()

		h.ServeAddTestEmail(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		if resp := decodeStatus(t, rr); resp.Status != "info" {
			t.Errorf("response status = %q, want info", resp.Status)
		}
		if store.appendCalls != 0 {
			t.Errorf("append calls = %d, want 0", store.appendCalls)
		}
	})

	t.Run("success", func(t *testing.T) {
		store := &fakeStore{}
		h := newTestHandler(t, store)

		req := httptest.NewRequest(http.MethodPost, "/add-test-email", strings.NewReader(`{"email":"new@x.com"}`))
		rr := httptest.NewRecorder()

		h.ServeAddTestEmail(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		if resp := decodeStatus(t, rr); resp.Status != "success" {
			t.Errorf("response status = %q, want success", resp.Status)
		}
	})

	t.Run("append failure", func(t *testing.T) {
		store := &fakeStore{appendErr: errors.New("denied")}
		h := newTestHandler(t, store)

		req := httptest.NewRequest(http.MethodPost, "/add-test-email", strings.NewReader(`{"email":"new@x.com"}`))
		rr := httptest.NewRecorder()

		h.ServeAddTestEmail(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
		}
		if resp := decodeStatus(t, rr); resp.Status != "error" {
			t.Errorf("response status = %q, want error", resp.Status)
		}
	})
}

// TestServeTest verifies the status endpoint.
func TestServeTest(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		store := &fakeStore{records: []models.Record{
			{Email: "alice@x.com"},
			{Email: "ALICE@X.COM"}, // same normalized email, counted once
			{Email: "bob@x.com"},
		}}
		h := newTestHandler(t, store)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rr := httptest.NewRecorder()

		h.ServeTest(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}

		var resp struct {
			Status        string `json:"status"`
			SpreadsheetID string `json:"spreadsheet_id"`
			TotalEmails   int    `json:"total_emails"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != "ok" || resp.SpreadsheetID != "sheet-123" {
			t.Errorf("response = %+v", resp)
		}
		if resp.TotalEmails != 2 {
			t.Errorf("total_emails = %d, want 2", resp.TotalEmails)
		}
	})

	t.Run("store error", func(t *testing.T) {
		store := &fakeStore{readErr: errors.New("store unavailable")}
		h := newTestHandler(t, store)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rr := httptest.NewRecorder()

		h.ServeTest(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
		}
		if resp := decodeStatus(t, rr); resp.Error == "" {
			t.Error("expected error message in response")
		}
	})
}

// TestServeIndex verifies the landing page.
func TestServeIndex(t *testing.T) {
	h := newTestHandler(t, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	h.ServeIndex(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rr.Body.String(), "/webhook/amocrm") {
		t.Error("landing page should mention the webhook endpoint")
	}

	// Unknown paths under the catch-all return 404
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr = httptest.NewRecorder()
	h.ServeIndex(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
