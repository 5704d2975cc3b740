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

// Package webhook handles incoming amoCRM contact-change notifications.
// amoCRM expects an acknowledgment within its webhook timeout (seconds), so
// the handler responds immediately and hands the payload to the ingestion
// queue — receipt is deliberately decoupled from processing, and the caller
// always sees success.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/crmleads/ingestion/internal/dedup"
	"github.com/crmleads/ingestion/internal/models"
	"github.com/crmleads/ingestion/internal/pipeline"
	"github.com/crmleads/ingestion/internal/queue"
)

// notificationPayload is the amoCRM webhook body. Everything is optional.
type notificationPayload struct {
	Contacts []models.Contact `json:"contacts"`
}

// addEmailRequest is the manual test-add body.
type addEmailRequest struct {
	Email string `json:"email"`
}

// statusResponse is the common JSON response envelope.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler serves the webhook and operator test endpoints.
type Handler struct {
	pipe   *pipeline.Pipeline
	worker *queue.Worker
	store  pipeline.Store

	spreadsheetID string
}

// NewHandler creates the HTTP handler set.
func NewHandler(pipe *pipeline.Pipeline, worker *queue.Worker, store pipeline.Store, spreadsheetID string) *Handler {
	return &Handler{
		pipe:          pipe,
		worker:        worker,
		store:         store,
		spreadsheetID: spreadsheetID,
	}
}

// ServeNotification handles POST /webhook/amocrm.
//
// The response goes out before any processing happens. A malformed or empty
// body still gets a success acknowledgment — by design nothing from the
// ingestion path ever reaches the webhook caller, and telling amoCRM to
// retry a payload we cannot parse would only replay it.
func (h *Handler) ServeNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload notificationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Info("webhook body not valid JSON, treating as empty batch", "error", err)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "ok",
		Message: "accepted for processing",
	})

	deliveryID := h.worker.Enqueue(payload.Contacts)
	slog.Info("webhook received",
		"delivery_id", deliveryID,
		"contacts", len(payload.Contacts),
	)
}

// ServeAddTestEmail handles POST /add-test-email — the synchronous manual
// entry point for interactive verification.
func (h *Handler) ServeAddTestEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req addEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid email"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid email"})
		return
	}

	switch h.pipe.AddOne(r.Context(), email) {
	case pipeline.AddDuplicate:
		writeJSON(w, http.StatusOK, statusResponse{Status: "info", Message: "already exists"})
	case pipeline.AddSuccess:
		writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "email added"})
	default:
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: "failed to add email"})
	}
}

// ServeTest handles GET /test — store connectivity check.
func (h *Handler) ServeTest(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ReadAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status        string `json:"status"`
		SpreadsheetID string `json:"spreadsheet_id"`
		TotalEmails   int    `json:"total_emails"`
	}{
		Status:        "ok",
		SpreadsheetID: h.spreadsheetID,
		TotalEmails:   dedup.NewSnapshot(records).Len(),
	})
}

// ServeIndex handles GET / — a static landing page describing the endpoints.
func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>amoCRM Email Collector</title></head>
<body>
<h1>amoCRM &rarr; Google Sheets</h1>
<p>The collector is running.</p>
<ul>
<li><a href="/test">/test</a> &mdash; check the spreadsheet connection</li>
<li><code>POST /add-test-email</code> &mdash; add a single email by hand</li>
<li><code>POST /webhook/amocrm</code> &mdash; amoCRM webhook endpoint</li>
</ul>
</body>
</html>
`

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// Serve starts the HTTP server on the given port. It binds the port
// immediately and signals readiness via the first returned channel before
// accepting connections; the second channel closes once the server has
// drained after ctx cancellation.
func Serve(ctx context.Context, port int, handler *Handler) (ready, done <-chan struct{}, err error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/amocrm", handler.ServeNotification)
	mux.HandleFunc("/add-test-email", handler.ServeAddTestEmail)
	mux.HandleFunc("/test", handler.ServeTest)
	mux.HandleFunc("/", handler.ServeIndex)

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	readyCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	go func() {
		defer close(doneCh)
		slog.Info("http server listening", "port", port)
		close(readyCh)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return readyCh, doneCh, nil
}
