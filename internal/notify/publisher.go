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

// Package notify publishes merchant notification jobs to Redis. The SMS
// sender worker consumes the queue; this engine only enqueues.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quickbookingnow/engine/internal/models"
)

// Publisher sends merchant notification jobs to Redis.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a Redis publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// smsJob is the envelope the SMS sender worker consumes.
type smsJob struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchant_id"`
	Phone      string `json:"phone"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
}

// NotifyUnparsed enqueues a plain-text message telling the merchant a
// cancellation arrived that must be entered manually.
func (p *Publisher) NotifyUnparsed(ctx context.Context, mc *models.MerchantContext, msg *models.InboundMessage, reason models.UnresolvedReason) error {
	if mc.NotifyPhone == "" {
		slog.Warn("merchant has no notification phone, skipping",
			"merchant", mc.MerchantID,
			"message_id", msg.MessageID,
		)
		return nil
	}

	job := smsJob{
		ID:         uuid.New().String(),
		MerchantID: mc.MerchantID,
		Phone:      mc.NotifyPhone,
		Body:       notificationBody(msg, reason),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal sms job: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(payload)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("merchant notification enqueued",
		"job_id", job.ID,
		"merchant", mc.MerchantID,
		"message_id", msg.MessageID,
		"reason", reason,
		"queue", p.queueName,
	)
	return nil
}

// notificationBody renders the merchant-facing text. It names the subject so
// the merchant can find the email, and the reason so support can explain it.
func notificationBody(msg *models.InboundMessage, reason models.UnresolvedReason) string {
	detail := "we couldn't read the appointment time"
	switch reason {
	case models.ReasonMultipleCandidates:
		detail = "it mentions more than one appointment"
	case models.ReasonLowConfidence:
		detail = "we weren't confident about the appointment time"
	}
	return fmt.Sprintf(
		"A cancellation email arrived (%q) but %s. Please add the opening manually from your dashboard.",
		msg.Subject, detail,
	)
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
