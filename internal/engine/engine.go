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

// Package engine runs the cancellation-notice pipeline: classify, extract,
// score, and either materialise a bookable opening or decline to act. The
// engine is stateless per message and safe to run with unbounded parallelism
// across distinct messages.
package engine

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/quickbookingnow/engine/internal/classify"
	"github.com/quickbookingnow/engine/internal/confidence"
	"github.com/quickbookingnow/engine/internal/extract"
	"github.com/quickbookingnow/engine/internal/models"
)

// MerchantLookup resolves a routing token to merchant context.
type MerchantLookup interface {
	ByToken(ctx context.Context, token string) (*models.MerchantContext, error)
}

// OpeningCreator persists a bookable opening.
type OpeningCreator interface {
	Create(ctx context.Context, o *models.Opening) error
}

// Notifier tells the merchant a real cancellation arrived that the engine
// could not act on.
type Notifier interface {
	NotifyUnparsed(ctx context.Context, mc *models.MerchantContext, msg *models.InboundMessage, reason models.UnresolvedReason) error
}

// AuditLog records one event per processed message.
type AuditLog interface {
	Record(ctx context.Context, ev *models.AuditEvent) error
}

// FallbackExtractor is the language-model extractor, invoked only when the
// heuristic stage yields nothing.
type FallbackExtractor interface {
	Extract(ctx context.Context, msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, ev extract.Evidence, loc *time.Location) (*extract.Extraction, error)
}

// Config wires the engine's collaborators.
type Config struct {
	Merchants MerchantLookup
	Openings  OpeningCreator
	Notifier  Notifier
	Audit     AuditLog
	Fallback  FallbackExtractor // nil disables the language-model stage

	LLMTimeout   time.Duration
	WriteTimeout time.Duration
}

// Engine processes inbound cancellation notices.
type Engine struct {
	merchants MerchantLookup
	openings  OpeningCreator
	notifier  Notifier
	audit     AuditLog
	fallback  FallbackExtractor

	llmTimeout   time.Duration
	writeTimeout time.Duration
}

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Engine{
		merchants:    cfg.Merchants,
		openings:     cfg.Openings,
		notifier:     cfg.Notifier,
		audit:        cfg.Audit,
		fallback:     cfg.Fallback,
		llmTimeout:   cfg.LLMTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
}

// Destination addresses embed the merchant routing token:
// inbox+{token}@notices.example.com.
var reRoutingToken = regexp.MustCompile(`\+([A-Za-z0-9_-]+)@`)

// RoutingToken extracts the merchant routing token from a destination
// address, or "" when the address carries none.
func RoutingToken(to string) string {
	m := reRoutingToken.FindStringSubmatch(to)
	if m == nil {
		return ""
	}
	return m[1]
}

// Process runs one message through the full pipeline and returns the
// terminal outcome. All stages are synchronous; the only network calls are
// the optional language-model request and the final writes, each bounded by
// its own timeout.
func (e *Engine) Process(ctx context.Context, msg *models.InboundMessage) models.EngineOutcome {
	token := RoutingToken(msg.To)
	if token == "" {
		// Accepted but ignored; stray mail to the inbound domain is not an error.
		e.recordIgnored(ctx, msg, nil, models.ClassificationResult{}, "no-routing-token")
		return unresolved(models.ReasonNotACancellation)
	}

	mc, err := e.merchants.ByToken(ctx, token)
	if err != nil {
		slog.Error("merchant lookup failed", "token", token, "error", err)
		return unresolved(models.ReasonNotACancellation)
	}
	if mc == nil {
		e.recordIgnored(ctx, msg, nil, models.ClassificationResult{}, "no-merchant")
		return unresolved(models.ReasonNotACancellation)
	}

	class := classify.Classify(msg)

	switch class.Kind {
	case models.KindVerification:
		e.record(ctx, &models.AuditEvent{
			MessageID:  msg.MessageID,
			MerchantID: mc.MerchantID,
			Kind:       class.Kind.String(),
			Provider:   class.Provider.String(),
			Outcome:    models.AuditVerification,
			Reason:     class.VerificationURL,
			ReceivedAt: msg.ReceivedAt,
		})
		return unresolved(models.ReasonNotACancellation)
	case models.KindIgnorable:
		e.recordIgnored(ctx, msg, mc, class, "not-a-cancellation")
		return unresolved(models.ReasonNotACancellation)
	}

	if !mc.AutoOpenings {
		e.recordIgnored(ctx, msg, mc, class, "auto-openings-disabled")
		return unresolved(models.ReasonNotACancellation)
	}

	loc, err := time.LoadLocation(mc.Timezone)
	if err != nil {
		slog.Error("invalid merchant timezone", "merchant", mc.MerchantID, "tz", mc.Timezone, "error", err)
		loc = time.UTC
	}

	candidates, ev := e.extract(ctx, msg, mc, class, loc)
	return e.decide(ctx, msg, mc, class, candidates, ev)
}

// extract runs the structured-adapter / heuristic / language-model chain.
// Precedence is structured > heuristic > language model, first success wins.
func (e *Engine) extract(ctx context.Context, msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, loc *time.Location) ([]extract.Extraction, extract.Evidence) {
	if ex, ok := extract.Structured(msg, mc, class, loc); ok {
		return []extract.Extraction{*ex}, extract.Evidence{}
	}

	candidates, ev := extract.Heuristic(msg, mc, class, loc)
	for i := range candidates {
		candidates[i].Candidate.Confidence = confidence.Score(candidates[i].Inputs)
	}
	if len(candidates) > 0 || e.fallback == nil {
		return candidates, ev
	}

	llmCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
	defer cancel()
	ex, err := e.fallback.Extract(llmCtx, msg, mc, class, ev, loc)
	if err != nil {
		// A timeout or malformed reply is the same as "the model returned
		// nothing"; never retried with partial data.
		slog.Warn("language-model fallback failed", "message_id", msg.MessageID, "error", err)
		return nil, ev
	}
	ex.Candidate.Confidence = confidence.Score(ex.Inputs)
	return []extract.Extraction{*ex}, ev
}

// decide is the opening materialiser / outcome decision. The engine never
// guesses among competing interpretations and never creates speculative
// openings.
func (e *Engine) decide(ctx context.Context, msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, candidates []extract.Extraction, ev extract.Evidence) models.EngineOutcome {
	switch {
	case len(candidates) == 0:
		reason := models.ReasonNoDate
		if ev.HasExplicitDate || ev.RelativeDate != nil {
			reason = models.ReasonNoTime
		}
		return e.fail(ctx, msg, mc, class, nil, reason)

	case len(candidates) > 1:
		return e.fail(ctx, msg, mc, class, candidates, models.ReasonMultipleCandidates)
	}

	cand := candidates[0].Candidate
	if cand.Confidence < confidence.MinAutoAct {
		return e.fail(ctx, msg, mc, class, candidates, models.ReasonLowConfidence)
	}

	opening := &models.Opening{
		ID:          uuid.New().String(),
		MerchantID:  mc.MerchantID,
		LocationID:  mc.LocationID,
		Start:       cand.Start,
		End:         cand.End,
		DurationMin: cand.DurationMin,
		ServiceName: cand.ServiceName,
		Source:      "email",
		CreatedAt:   time.Now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()
	if err := e.openings.Create(writeCtx, opening); err != nil {
		// Downstream write failure: logged, never reclassified as an
		// extraction failure. Retry policy belongs to the caller.
		slog.Error("opening creation failed",
			"message_id", msg.MessageID,
			"merchant", mc.MerchantID,
			"error", err,
		)
	}

	e.record(ctx, &models.AuditEvent{
		MessageID:  msg.MessageID,
		MerchantID: mc.MerchantID,
		Kind:       class.Kind.String(),
		Provider:   class.Provider.String(),
		Outcome:    models.AuditOpeningCreated,
		Candidates: []models.ParseCandidate{cand},
		Confidence: cand.Confidence,
		ReceivedAt: msg.ReceivedAt,
	})

	slog.Info("opening created from cancellation notice",
		"message_id", msg.MessageID,
		"merchant", mc.MerchantID,
		"start", cand.Start,
		"end", cand.End,
		"path", cand.Path,
		"confidence", cand.Confidence,
	)
	return models.EngineOutcome{Created: true, Opening: &cand}
}

// fail records an extraction failure and notifies the merchant — silence
// here means a real cancellation was missed.
func (e *Engine) fail(ctx context.Context, msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, candidates []extract.Extraction, reason models.UnresolvedReason) models.EngineOutcome {
	ev := &models.AuditEvent{
		MessageID:  msg.MessageID,
		MerchantID: mc.MerchantID,
		Kind:       class.Kind.String(),
		Provider:   class.Provider.String(),
		Outcome:    models.AuditUnresolved,
		Reason:     string(reason),
		ReceivedAt: msg.ReceivedAt,
	}
	for _, c := range candidates {
		ev.Candidates = append(ev.Candidates, c.Candidate)
	}
	e.record(ctx, ev)

	writeCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()
	if err := e.notifier.NotifyUnparsed(writeCtx, mc, msg, reason); err != nil {
		slog.Error("merchant notification failed",
			"message_id", msg.MessageID,
			"merchant", mc.MerchantID,
			"error", err,
		)
	}

	slog.Info("cancellation notice unresolved",
		"message_id", msg.MessageID,
		"merchant", mc.MerchantID,
		"reason", reason,
		"candidates", len(candidates),
	)
	return unresolved(reason)
}

func (e *Engine) recordIgnored(ctx context.Context, msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, reason string) {
	ev := &models.AuditEvent{
		MessageID:  msg.MessageID,
		Kind:       class.Kind.String(),
		Provider:   class.Provider.String(),
		Outcome:    models.AuditIgnored,
		Reason:     reason,
		ReceivedAt: msg.ReceivedAt,
	}
	if mc != nil {
		ev.MerchantID = mc.MerchantID
	}
	e.record(ctx, ev)
}

func (e *Engine) record(ctx context.Context, ev *models.AuditEvent) {
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now().UTC()
	writeCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()
	if err := e.audit.Record(writeCtx, ev); err != nil {
		slog.Error("audit record failed", "message_id", ev.MessageID, "error", err)
	}
}

func unresolved(reason models.UnresolvedReason) models.EngineOutcome {
	return models.EngineOutcome{Reason: reason}
}
