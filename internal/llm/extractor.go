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

// Package llm asks an external language model for a structured guess at the
// cancelled window when the heuristic extractor found nothing. The response
// is never trusted at face value: timestamps are re-parsed, timezone
// abbreviations re-resolved, and the result re-scored by the engine's own
// confidence model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quickbookingnow/engine/internal/extract"
	"github.com/quickbookingnow/engine/internal/models"
)

const systemPrompt = `You read a forwarded appointment email and extract the cancelled appointment's time window.
Reply with ONLY a JSON object of this exact shape, no prose, no code fences:
{"start": "<ISO-8601 datetime>", "end": "<ISO-8601 datetime or empty string>", "appointment_name": "<string or empty>", "confidence": <number 0..1>}
Rules:
- The merchant's timezone is %s. Today's date is %s. Interpret relative phrases against today.
- "end" stays empty unless the email states an explicit end time or duration.
- If you have to infer any part of the window, keep "confidence" below 0.7.`

// Client calls an OpenAI-compatible chat-completions endpoint. The HTTP
// client may carry its own auth transport (OAuth2 client credentials); a
// static bearer token is set when apiKey is non-empty.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
}

// NewClient creates a fallback extractor client. The caller owns the HTTP
// client's timeout.
func NewClient(httpClient *http.Client, endpoint, model, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// guess is the fixed JSON shape the model is instructed to return. Any
// missing or malformed field yields no candidate, never a partial one.
type guess struct {
	Start           string  `json:"start"`
	End             string  `json:"end"`
	AppointmentName string  `json:"appointment_name"`
	Confidence      float64 `json:"confidence"`
}

// Extract asks the model for a structured guess and re-validates it. A nil,
// nil return means the model produced nothing usable; the engine treats that
// as Unresolved.
func (c *Client) Extract(ctx context.Context, msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, ev extract.Evidence, loc *time.Location) (*extract.Extraction, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("llm endpoint not configured")
	}

	anchor := msg.ReceivedAt.In(loc).Format("Monday, January 2, 2006")
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, mc.Timezone, anchor)},
			{Role: "user", Content: "Subject: " + msg.Subject + "\n\n" + extract.ScanText("", msg.TextBody, msg.HTMLBody)},
		},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned HTTP %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	g, err := parseGuess(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse llm guess: %w", err)
	}

	ex, err := c.validate(g, msg, mc, class, ev, loc)
	if err != nil {
		return nil, err
	}

	slog.Info("language-model fallback produced a candidate",
		"message_id", msg.MessageID,
		"start", ex.Candidate.Start,
		"self_reported_confidence", g.Confidence,
	)
	return ex, nil
}

// parseGuess strictly parses the model's reply, tolerating only optional
// code fences around the JSON object.
func parseGuess(content string) (*guess, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var g guess
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&g); err != nil {
		return nil, err
	}
	if g.Start == "" {
		return nil, fmt.Errorf("guess missing start")
	}
	return &g, nil
}

// validate re-parses the guessed timestamps and applies the defensive
// corrections before handing the candidate back for re-scoring.
func (c *Client) validate(g *guess, msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, ev extract.Evidence, loc *time.Location) (*extract.Extraction, error) {
	start, err := parseStamp(g.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("unparsable start %q: %w", g.Start, err)
	}

	// Year-omitted dates crossing the calendar boundary: a guess more than
	// a day in the past, with no explicit date in the message, means the
	// model picked last year.
	if !ev.HasExplicitDate && start.Before(msg.ReceivedAt.Add(-24*time.Hour)) {
		start = start.AddDate(1, 0, 0)
	}

	// A relative phrase the heuristic pass resolved itself overrides the
	// model's date component; the model keeps only the time of day.
	if ev.RelativeDate != nil {
		local := start.In(loc)
		rd := *ev.RelativeDate
		start = time.Date(rd.Year(), rd.Month(), rd.Day(), local.Hour(), local.Minute(), 0, 0, loc)
	}

	rangeSignaled := false
	var end time.Time
	if g.End != "" {
		if e, err := parseStamp(g.End, loc); err == nil && e.After(start) {
			end = e
			rangeSignaled = true
		}
	}
	if !rangeSignaled {
		end = start.Add(time.Duration(mc.DefaultDurationMin) * time.Minute)
	}

	startUTC := start.UTC().Truncate(time.Minute)
	endUTC := end.UTC().Truncate(time.Minute)

	cand := models.ParseCandidate{
		Start:          startUTC,
		End:            endUTC,
		DurationMin:    int(endUTC.Sub(startUTC).Minutes()),
		DurationSource: models.DurationFromDefault,
		ServiceName:    strings.TrimSpace(g.AppointmentName),
		Path:           models.PathLanguageModel,
	}
	if rangeSignaled {
		cand.DurationSource = models.DurationFromRange
	}

	inputs := models.ConfidenceInputs{
		ExplicitDate:      ev.HasExplicitDate,
		RelativeDate:      ev.RelativeDate != nil,
		ExplicitTime:      ev.HasExplicitTime,
		ExplicitRange:     rangeSignaled && ev.HasExplicitRange,
		TimezoneAbbrev:    ev.TimezoneSeen,
		MultipleAppts:     ev.MultipleAppts,
		Reschedule:        class.Kind == models.KindReschedule,
		FromLanguageModel: true,
	}
	return &extract.Extraction{Candidate: cand, Inputs: inputs}, nil
}

// parseStamp re-parses a model-returned timestamp. A trailing timezone
// abbreviation is re-resolved through the engine's own table; naive stamps
// resolve in the merchant's zone.
func parseStamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)

	// "2025-02-03 14:30 EST" — strip and resolve the abbreviation ourselves.
	fields := strings.Fields(s)
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if resolved := extract.ResolveAbbrev(last); resolved != nil {
			loc = resolved
			s = strings.TrimSpace(strings.TrimSuffix(s, last))
		}
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched")
}
