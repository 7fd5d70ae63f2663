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

// QuickBookingNow — Cancellation Notice Engine
//
// Entry point for the notice interpretation service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Wires the stores, dedup filter, notification publisher and the
//     optional language-model fallback into the engine
//  4. Serves the inbound email webhook and a health endpoint
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/quickbookingnow/engine/internal/audit"
	"github.com/quickbookingnow/engine/internal/config"
	"github.com/quickbookingnow/engine/internal/dedup"
	"github.com/quickbookingnow/engine/internal/engine"
	"github.com/quickbookingnow/engine/internal/llm"
	"github.com/quickbookingnow/engine/internal/merchant"
	"github.com/quickbookingnow/engine/internal/notify"
	"github.com/quickbookingnow/engine/internal/openings"
	"github.com/quickbookingnow/engine/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting notice engine")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"port", cfg.Port,
		"llm_fallback", cfg.LLM.Endpoint != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	publisher := notify.NewPublisher(rdb, cfg.NotificationsQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Dedup Filter ---
	filter := dedup.NewFilter(rdb)

	// --- Postgres Stores ---
	merchants, err := merchant.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise merchant store", "error", err)
		os.Exit(1)
	}
	openingStore, err := openings.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise openings store", "error", err)
		os.Exit(1)
	}
	auditLog, err := audit.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise audit store", "error", err)
		os.Exit(1)
	}

	// --- Language-Model Fallback ---
	var fallback engine.FallbackExtractor
	if cfg.LLM.Endpoint != "" {
		httpClient := http.DefaultClient
		apiKey := cfg.LLM.APIKey
		if cfg.LLM.OAuth() {
			creds := &clientcredentials.Config{
				ClientID:     cfg.LLM.ClientID,
				ClientSecret: cfg.LLM.ClientSecret,
				TokenURL:     cfg.LLM.TokenURL,
			}
			httpClient = creds.Client(ctx)
			apiKey = "" // the oauth transport carries the bearer token
		}
		fallback = llm.NewClient(httpClient, cfg.LLM.Endpoint, cfg.LLM.Model, apiKey)
		slog.Info("language-model fallback enabled", "model", cfg.LLM.Model)
	} else {
		slog.Info("language-model fallback disabled")
	}

	// --- Engine ---
	eng := engine.New(engine.Config{
		Merchants:    merchants,
		Openings:     openingStore,
		Notifier:     publisher,
		Audit:        auditLog,
		Fallback:     fallback,
		LLMTimeout:   cfg.LLMTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// --- Webhook Server ---
	handler := webhook.NewHandler(eng, filter)
	ready, err := webhook.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start webhook server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("notice engine ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", fmt.Sprint(sig))
	cancel() // stops the webhook server

	// In-flight deliveries run in background goroutines; give them a moment
	// to finish their writes before closing the pools.
	time.Sleep(2 * time.Second)

	rdb.Close()
	pgPool.Close()

	slog.Info("notice engine stopped")
}
