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

// Package openings persists bookable openings created from cancellation
// notices. No overlap check is performed: overlapping openings are tolerated
// for future multi-resource support.
package openings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickbookingnow/engine/internal/models"
)

// Store provides opening creation backed by Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an openings store and ensures the openings table exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure openings schema: %w", err)
	}
	slog.Info("openings store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS openings (
			id           TEXT PRIMARY KEY,
			merchant_id  TEXT NOT NULL,
			location_id  TEXT NOT NULL DEFAULT '',
			start_at     TIMESTAMPTZ NOT NULL,
			end_at       TIMESTAMPTZ NOT NULL,
			duration_min INT NOT NULL,
			service_name TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT 'email',
			created_at   TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_openings_merchant ON openings(merchant_id, start_at);
	`)
	return err
}

// Create persists one opening.
func (s *Store) Create(ctx context.Context, o *models.Opening) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO openings
			(id, merchant_id, location_id, start_at, end_at, duration_min, service_name, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, o.ID, o.MerchantID, o.LocationID, o.Start, o.End, o.DurationMin, o.ServiceName, o.Source, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert opening: %w", err)
	}
	return nil
}

// ListUpcoming returns a merchant's openings starting after the given
// instant, soonest first. Used by the dashboard API, not by the engine.
func (s *Store) ListUpcoming(ctx context.Context, merchantID string, after time.Time) ([]models.Opening, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, merchant_id, location_id, start_at, end_at, duration_min, service_name, source, created_at
		FROM openings
		WHERE merchant_id = $1 AND start_at > $2
		ORDER BY start_at
	`, merchantID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Opening
	for rows.Next() {
		var o models.Opening
		if err := rows.Scan(
			&o.ID, &o.MerchantID, &o.LocationID, &o.Start, &o.End,
			&o.DurationMin, &o.ServiceName, &o.Source, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
