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

// Package merchant provides the Postgres-backed merchant context lookup.
// Every inbound message resolves its routing token here before any parsing
// work happens.
package merchant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickbookingnow/engine/internal/models"
)

// Store provides merchant context lookups backed by Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a merchant store and ensures the merchants table exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure merchant schema: %w", err)
	}
	slog.Info("merchant store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS merchants (
			id             TEXT PRIMARY KEY,
			routing_token  TEXT NOT NULL UNIQUE,
			timezone       TEXT NOT NULL,
			default_duration_min INT NOT NULL DEFAULT 60,
			auto_openings  BOOLEAN NOT NULL DEFAULT TRUE,
			location_id    TEXT NOT NULL DEFAULT '',
			notify_phone   TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ DEFAULT NOW(),
			updated_at     TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_merchants_token ON merchants(routing_token);
	`)
	return err
}

// ByToken resolves a routing token to merchant context. Returns (nil, nil)
// when no merchant owns the token.
func (s *Store) ByToken(ctx context.Context, token string) (*models.MerchantContext, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, routing_token, timezone, default_duration_min,
		       auto_openings, location_id, notify_phone
		FROM merchants
		WHERE routing_token = $1
	`, token)

	var mc models.MerchantContext
	err := row.Scan(
		&mc.MerchantID, &mc.RoutingToken, &mc.Timezone, &mc.DefaultDurationMin,
		&mc.AutoOpenings, &mc.LocationID, &mc.NotifyPhone,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

// Upsert inserts or updates a merchant keyed on id. Used by provisioning and
// the replay tool's fixtures.
func (s *Store) Upsert(ctx context.Context, mc *models.MerchantContext) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO merchants
			(id, routing_token, timezone, default_duration_min, auto_openings, location_id, notify_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			routing_token        = EXCLUDED.routing_token,
			timezone             = EXCLUDED.timezone,
			default_duration_min = EXCLUDED.default_duration_min,
			auto_openings        = EXCLUDED.auto_openings,
			location_id          = EXCLUDED.location_id,
			notify_phone         = EXCLUDED.notify_phone,
			updated_at           = NOW()
	`, mc.MerchantID, mc.RoutingToken, mc.Timezone, mc.DefaultDurationMin,
		mc.AutoOpenings, mc.LocationID, mc.NotifyPhone)
	return err
}
