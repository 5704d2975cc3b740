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

// Package queue hands acknowledged webhook deliveries to a single background
// worker. Draining one ingestion call at a time is what keeps the store's
// uniqueness invariant intact: two overlapping calls would each build a
// snapshot blind to the other's appends.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/crmleads/ingestion/internal/models"
	"github.com/crmleads/ingestion/internal/pipeline"
)

// Delivery is one acknowledged webhook payload awaiting ingestion.
type Delivery struct {
	ID       string
	Contacts []models.Contact
}

// Worker serializes ingestion calls through a buffered channel.
type Worker struct {
	pipe       *pipeline.Pipeline
	deliveries chan Delivery
	wg         sync.WaitGroup
}

// NewWorker creates an ingestion worker with the given buffer size.
func NewWorker(pipe *pipeline.Pipeline, size int) *Worker {
	return &Worker{
		pipe:       pipe,
		deliveries: make(chan Delivery, size),
	}
}

// Start launches the worker goroutine. It drains queued deliveries until ctx
// is cancelled, finishing the in-flight ingestion call first.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-w.deliveries:
				w.process(ctx, d)
			}
		}
	}()
}

// Enqueue queues one delivery for ingestion and returns its correlation ID.
// The webhook caller has already been acknowledged, so a full queue drops
// the delivery with an error log rather than blocking the transport.
func (w *Worker) Enqueue(contacts []models.Contact) string {
	d := Delivery{
		ID:       uuid.New().String(),
		Contacts: contacts,
	}

	select {
	case w.deliveries <- d:
		slog.Info("delivery queued",
			"delivery_id", d.ID,
			"contacts", len(contacts),
			"pending", len(w.deliveries),
		)
	default:
		slog.Error("ingestion queue full, dropping delivery",
			"delivery_id", d.ID,
			"contacts", len(contacts),
		)
	}

	return d.ID
}

// Stop waits for the worker goroutine to exit. Call after cancelling the
// context passed to Start.
func (w *Worker) Stop() {
	w.wg.Wait()
}

// process runs one ingestion call inside its own error boundary. A panic in
// the pipeline terminates only this delivery — the transport layer already
// responded and must never see it.
func (w *Worker) process(ctx context.Context, d Delivery) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ingestion call panicked",
				"delivery_id", d.ID,
				"panic", r,
			)
		}
	}()

	sum := w.pipe.Ingest(ctx, d.Contacts)
	slog.Info("delivery processed",
		"delivery_id", d.ID,
		"considered", sum.Considered,
		"added", sum.Added,
	)
}
