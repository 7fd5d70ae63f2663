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

// Package webhook handles inbound email deliveries. The inbound-email
// provider POSTs each message forwarded to the engine's domain; the handler
// normalizes the delivery into an InboundMessage, dedups on Message-ID, and
// hands it to the interpretation engine in the background.
package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/quickbookingnow/engine/internal/dedup"
	"github.com/quickbookingnow/engine/internal/engine"
	"github.com/quickbookingnow/engine/internal/models"
)

// maxPayloadBytes bounds a single delivery. Forwarded booking emails run a
// few hundred KB at most even with an ICS attachment.
const maxPayloadBytes = 10 << 20

// inboundPayload is the JSON shape of a delivery. Attachment content is
// base64 in the `content` field.
type inboundPayload struct {
	MessageID   string              `json:"message_id"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	Text        string              `json:"text"`
	HTML        string              `json:"html"`
	Attachments []inboundAttachment `json:"attachments"`
}

type inboundAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Handler processes inbound email webhook requests.
type Handler struct {
	engine *engine.Engine
	filter *dedup.Filter
}

// NewHandler creates an inbound email handler.
func NewHandler(eng *engine.Engine, filter *dedup.Filter) *Handler {
	return &Handler{
		engine: eng,
		filter: filter,
	}
}

// ServeInbound handles inbound email webhook requests.
//
// Two delivery formats are accepted:
//   - application/json with an inboundPayload body
//   - multipart/form-data with the raw RFC 5322 message in the "email" field
//     (the format SendGrid-style inbound parse posts)
//
// Either way we respond 202 Accepted as soon as the message is decoded and
// interpret it in the background. The provider retries on 5xx, so malformed
// bodies get a 4xx to stop redelivery of garbage.
func (h *Handler) ServeInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)

	msg, err := decodeDelivery(r)
	if err != nil {
		slog.Warn("rejecting undecodable delivery", "error", err)
		http.Error(w, "undecodable delivery", http.StatusBadRequest)
		return
	}

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	// Dedup on Message-ID. Providers redeliver on timeout and merchants
	// occasionally forward the same notice twice.
	if msg.MessageID != "" {
		isNew, err := h.filter.IsNew(r.Context(), msg.MessageID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "error", err)
		} else if !isNew {
			slog.Debug("skipping duplicate message", "message_id", msg.MessageID)
			w.WriteHeader(http.StatusAccepted)
			return
		}
	}

	// Respond immediately — the provider expects a fast response
	w.WriteHeader(http.StatusAccepted)

	go func() {
		outcome := h.engine.Process(context.Background(), msg)
		slog.Info("delivery processed",
			"message_id", msg.MessageID,
			"created", outcome.Created,
			"reason", outcome.Reason,
		)
	}()
}

// decodeDelivery normalizes either delivery format into an InboundMessage.
func decodeDelivery(r *http.Request) (*models.InboundMessage, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		return decodeRawMIME(r)
	}
	return DecodeJSON(r.Body)
}

// DecodeJSON parses a JSON delivery body into an InboundMessage.
func DecodeJSON(body io.Reader) (*models.InboundMessage, error) {
	var payload inboundPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode json delivery: %w", err)
	}
	if payload.To == "" {
		return nil, fmt.Errorf("delivery missing recipient")
	}

	msg := &models.InboundMessage{
		MessageID: payload.MessageID,
		From:      payload.From,
		To:        payload.To,
		Subject:   payload.Subject,
		TextBody:  payload.Text,
		HTMLBody:  payload.HTML,
	}
	for _, a := range payload.Attachments {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			slog.Warn("dropping attachment with bad base64", "name", a.Name)
			continue
		}
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Content:     content,
		})
	}
	return msg, nil
}

// decodeRawMIME parses a multipart/form-data delivery carrying the raw
// message in the "email" field.
func decodeRawMIME(r *http.Request) (*models.InboundMessage, error) {
	if err := r.ParseMultipartForm(maxPayloadBytes); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	raw := r.FormValue("email")
	if raw == "" {
		return nil, fmt.Errorf("multipart delivery missing email field")
	}

	msg, err := DecodeRaw(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}

	// Some providers put the envelope recipient in the form instead
	if v := r.FormValue("to"); v != "" {
		msg.To = v
	}
	if msg.To == "" {
		return nil, fmt.Errorf("delivery missing recipient")
	}
	return msg, nil
}

// DecodeRaw parses a raw RFC 5322 message into an InboundMessage.
func DecodeRaw(r io.Reader) (*models.InboundMessage, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("parse mime envelope: %w", err)
	}

	msg := &models.InboundMessage{
		MessageID: strings.Trim(env.GetHeader("Message-Id"), "<>"),
		From:      env.GetHeader("From"),
		To:        env.GetHeader("To"),
		Subject:   env.GetHeader("Subject"),
		TextBody:  env.Text,
		HTMLBody:  env.HTML,
	}
	for _, a := range env.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Name:        a.FileName,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}
	// Calendar parts sometimes arrive inline rather than as attachments
	for _, p := range env.OtherParts {
		if strings.Contains(p.ContentType, "text/calendar") {
			msg.Attachments = append(msg.Attachments, models.Attachment{
				Name:        p.FileName,
				ContentType: p.ContentType,
				Content:     p.Content,
			})
		}
	}
	return msg, nil
}

// Serve starts the webhook HTTP server on the given port.
// It binds the port immediately and signals readiness via the returned channel
// before starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/inbound", handler.ServeInbound)
	mux.HandleFunc("/inbound/", handler.ServeInbound)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind webhook port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("webhook server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("webhook server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()

	return ready, nil
}
