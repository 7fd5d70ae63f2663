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

// Package audit persists one event per processed message. The record is what
// support engineers read when a merchant asks why a notice did or did not
// become an opening.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickbookingnow/engine/internal/models"
)

// Store provides the Postgres-backed audit event log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an audit store and ensures the notice_events table exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	slog.Info("audit store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notice_events (
			id          TEXT PRIMARY KEY,
			message_id  TEXT NOT NULL,
			merchant_id TEXT NOT NULL DEFAULT '',
			kind        TEXT NOT NULL,
			provider    TEXT NOT NULL DEFAULT 'unknown',
			outcome     TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			candidates  JSONB,
			confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
			received_at TIMESTAMPTZ NOT NULL,
			created_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_notice_events_merchant ON notice_events(merchant_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_notice_events_message ON notice_events(message_id);
	`)
	return err
}

// Record persists one audit event. Candidates serialise as JSONB so the
// dashboard can show what the engine saw without a schema change per field.
func (s *Store) Record(ctx context.Context, ev *models.AuditEvent) error {
	var candidates []byte
	if len(ev.Candidates) > 0 {
		var err error
		candidates, err = json.Marshal(ev.Candidates)
		if err != nil {
			return fmt.Errorf("marshal candidates: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notice_events
			(id, message_id, merchant_id, kind, provider, outcome, reason, candidates, confidence, received_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ev.ID, ev.MessageID, ev.MerchantID, ev.Kind, ev.Provider, ev.Outcome,
		ev.Reason, candidates, ev.Confidence, ev.ReceivedAt, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notice event: %w", err)
	}
	return nil
}

// ListByMerchant returns a merchant's most recent events, newest first.
func (s *Store) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]models.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, merchant_id, kind, provider, outcome, reason, candidates, confidence, received_at, created_at
		FROM notice_events
		WHERE merchant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, merchantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		var candidates []byte
		if err := rows.Scan(
			&ev.ID, &ev.MessageID, &ev.MerchantID, &ev.Kind, &ev.Provider,
			&ev.Outcome, &ev.Reason, &candidates, &ev.Confidence,
			&ev.ReceivedAt, &ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			if err := json.Unmarshal(candidates, &ev.Candidates); err != nil {
				slog.Warn("corrupt candidates JSON in audit row", "event_id", ev.ID, "error", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
