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

// amoCRM Email Collector
//
// Entry point for the collector service. It:
//  1. Loads configuration from config.yaml / environment
//  2. Builds the Google Sheets record-store client
//  3. Starts the single-worker ingestion queue
//  4. Serves the webhook and operator test endpoints
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/crmleads/ingestion/internal/config"
	"github.com/crmleads/ingestion/internal/pipeline"
	"github.com/crmleads/ingestion/internal/queue"
	"github.com/crmleads/ingestion/internal/sheets"
	"github.com/crmleads/ingestion/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting amoCRM email collector")

	// .env is a local-dev convenience; absence is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"spreadsheet_id", cfg.SpreadsheetID,
		"port", cfg.Port,
		"queue_size", cfg.QueueSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Record store ---
	store, err := sheets.NewClient(ctx, cfg.SpreadsheetID, cfg.CredentialsFile)
	if err != nil {
		slog.Error("failed to create sheets client", "error", err)
		os.Exit(1)
	}

	// --- Ingestion pipeline + single-worker queue ---
	pipe := pipeline.New(store)
	worker := queue.NewWorker(pipe, cfg.QueueSize)
	worker.Start(ctx)

	// --- HTTP server ---
	handler := webhook.NewHandler(pipe, worker, store, cfg.SpreadsheetID)
	ready, done, err := webhook.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("collector ready",
		"port", cfg.Port,
		"webhook", "/webhook/amocrm",
	)

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()
	<-done
	worker.Stop()

	slog.Info("collector stopped")
}
