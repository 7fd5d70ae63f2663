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

// QuickBookingNow — Notice Replay Command
//
// Standalone CLI tool that runs a captured email delivery through the
// interpretation pipeline. Used to debug misread notices from production
// and to check new extraction patterns against saved samples.
//
// The file is either a JSON delivery payload or a raw .eml message.
//
// Usage:
//
//	go run ./cmd/replay/ --file sample.eml [--dry-run] [--timezone America/New_York]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/quickbookingnow/engine/internal/audit"
	"github.com/quickbookingnow/engine/internal/config"
	"github.com/quickbookingnow/engine/internal/engine"
	"github.com/quickbookingnow/engine/internal/merchant"
	"github.com/quickbookingnow/engine/internal/models"
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

	// --- CLI Flags ---
	fileFlag := flag.String("file", "", "Captured delivery to replay: JSON payload or raw .eml (required)")
	dryRunFlag := flag.Bool("dry-run", false, "Interpret without Postgres/Redis; print the outcome instead of writing it")
	tzFlag := flag.String("timezone", "America/New_York", "Merchant timezone for --dry-run")
	durationFlag := flag.Int("duration", 30, "Merchant default appointment minutes for --dry-run")
	flag.Parse()

	if *fileFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --file is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	msg, err := loadDelivery(*fileFlag)
	if err != nil {
		slog.Error("failed to load delivery", "file", *fileFlag, "error", err)
		os.Exit(1)
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	slog.Info("replaying delivery",
		"file", *fileFlag,
		"message_id", msg.MessageID,
		"subject", msg.Subject,
		"dry_run", *dryRunFlag,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var eng *engine.Engine
	if *dryRunFlag {
		eng = engine.New(engine.Config{
			Merchants: staticMerchants{tz: *tzFlag, duration: *durationFlag},
			Openings:  printOpenings{},
			Notifier:  printNotifier{},
			Audit:     printAudit{},
		})
	} else {
		eng, err = buildLiveEngine(ctx)
		if err != nil {
			slog.Error("failed to wire engine", "error", err)
			os.Exit(1)
		}
	}

	outcome := eng.Process(ctx, msg)

	// --- Summary ---
	slog.Info("replay complete",
		"created", outcome.Created,
		"reason", outcome.Reason,
	)
	if outcome.Opening != nil {
		slog.Info("opening",
			"start", outcome.Opening.Start.Format(time.RFC3339),
			"end", outcome.Opening.End.Format(time.RFC3339),
			"service", outcome.Opening.ServiceName,
			"confidence", outcome.Opening.Confidence,
		)
	}
	if !outcome.Created {
		os.Exit(2)
	}
}

// loadDelivery reads the captured file. Raw messages are detected by
// extension or a non-JSON first byte.
func loadDelivery(path string) (*models.InboundMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".eml" || ext == ".msg" || ext == ".txt" {
		return webhook.DecodeRaw(f)
	}
	return webhook.DecodeJSON(f)
}

// buildLiveEngine wires the same collaborators the server uses, minus the
// language-model fallback: replay is for exercising the deterministic path.
func buildLiveEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create Postgres pool: %w", err)
	}
	if err := pgPool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	publisher := notify.NewPublisher(rdb, cfg.NotificationsQueue)
	if err := publisher.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	merchants, err := merchant.NewStore(ctx, pgPool)
	if err != nil {
		return nil, fmt.Errorf("initialise merchant store: %w", err)
	}
	openingStore, err := openings.NewStore(ctx, pgPool)
	if err != nil {
		return nil, fmt.Errorf("initialise openings store: %w", err)
	}
	auditLog, err := audit.NewStore(ctx, pgPool)
	if err != nil {
		return nil, fmt.Errorf("initialise audit store: %w", err)
	}

	return engine.New(engine.Config{
		Merchants:    merchants,
		Openings:     openingStore,
		Notifier:     publisher,
		Audit:        auditLog,
		LLMTimeout:   cfg.LLMTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}), nil
}

// staticMerchants resolves every routing token to one synthetic merchant so
// any captured sample replays without a database.
type staticMerchants struct {
	tz       string
	duration int
}

func (s staticMerchants) ByToken(ctx context.Context, token string) (*models.MerchantContext, error) {
	return &models.MerchantContext{
		MerchantID:         "dry-run",
		RoutingToken:       token,
		Timezone:           s.tz,
		DefaultDurationMin: s.duration,
		AutoOpenings:       true,
	}, nil
}

type printOpenings struct{}

func (printOpenings) Create(ctx context.Context, o *models.Opening) error {
	slog.Info("would create opening",
		"start", o.Start.Format(time.RFC3339),
		"end", o.End.Format(time.RFC3339),
		"duration_min", o.DurationMin,
		"service", o.ServiceName,
	)
	return nil
}

type printNotifier struct{}

func (printNotifier) NotifyUnparsed(ctx context.Context, mc *models.MerchantContext, msg *models.InboundMessage, reason models.UnresolvedReason) error {
	slog.Info("would notify merchant", "reason", reason)
	return nil
}

type printAudit struct{}

func (printAudit) Record(ctx context.Context, ev *models.AuditEvent) error {
	slog.Info("audit event",
		"kind", ev.Kind,
		"provider", ev.Provider,
		"outcome", ev.Outcome,
		"reason", ev.Reason,
	)
	return nil
}
