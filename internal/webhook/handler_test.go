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

package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickbookingnow/engine/internal/dedup"
	"github.com/quickbookingnow/engine/internal/engine"
	"github.com/quickbookingnow/engine/internal/models"
)

// Engine fakes. The handler hands decoded messages to a real engine; the
// collaborators behind it are stubbed.

type stubMerchants struct{}

func (stubMerchants) ByToken(ctx context.Context, token string) (*models.MerchantContext, error) {
	return &models.MerchantContext{
		MerchantID:         "m-1",
		RoutingToken:       token,
		Timezone:           "America/New_York",
		DefaultDurationMin: 30,
		AutoOpenings:       true,
	}, nil
}

type stubOpenings struct{}

func (stubOpenings) Create(ctx context.Context, o *models.Opening) error { return nil }

type stubNotifier struct{}

func (stubNotifier) NotifyUnparsed(ctx context.Context, mc *models.MerchantContext, msg *models.InboundMessage, reason models.UnresolvedReason) error {
	return nil
}

// chanAudit signals each processed message so tests can wait for the
// handler's background goroutine.
type chanAudit struct {
	events chan *models.AuditEvent
}

func (c *chanAudit) Record(ctx context.Context, ev *models.AuditEvent) error {
	c.events <- ev
	return nil
}

func newTestHandler() (*Handler, *chanAudit) {
	audit := &chanAudit{events: make(chan *models.AuditEvent, 8)}
	eng := engine.New(engine.Config{
		Merchants: stubMerchants{},
		Openings:  stubOpenings{},
		Notifier:  stubNotifier{},
		Audit:     audit,
	})
	// An unreachable Redis makes every dedup check fail open, which is the
	// behavior under test for deliveries.
	filter := dedup.NewFilter(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
	return NewHandler(eng, filter), audit
}

func waitForAudit(t *testing.T, audit *chanAudit) *models.AuditEvent {
	t.Helper()
	select {
	case ev := <-audit.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the delivery to be processed")
		return nil
	}
}

// TestServeInbound_JSONDelivery: a JSON delivery is accepted and processed
// in the background.
func TestServeInbound_JSONDelivery(t *testing.T) {
	handler, audit := newTestHandler()

	payload := map[string]any{
		"message_id": "mid-json-1",
		"from":       "scheduling@acuityscheduling.com",
		"to":         "inbox+tok1@notices.example.com",
		"subject":    "Appointment canceled: Mon 3 Feb 2025 at 2:30 PM (EST)",
		"text":       "The appointment has been canceled.",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/inbound", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeInbound(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	ev := waitForAudit(t, audit)
	if ev.MessageID != "mid-json-1" {
		t.Errorf("MessageID = %q", ev.MessageID)
	}
	if ev.Outcome != models.AuditOpeningCreated {
		t.Errorf("Outcome = %q, want %q", ev.Outcome, models.AuditOpeningCreated)
	}
}

// TestServeInbound_RawMIMEDelivery: the multipart form carrying a raw
// message parses through enmime.
func TestServeInbound_RawMIMEDelivery(t *testing.T) {
	handler, audit := newTestHandler()

	raw := strings.Join([]string{
		"Message-Id: <mid-raw-1@mail.example.com>",
		"From: scheduling@acuityscheduling.com",
		"To: inbox+tok1@notices.example.com",
		"Subject: Appointment canceled: Mon 3 Feb 2025 at 2:30 PM (EST)",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"The appointment has been canceled.",
	}, "\r\n")

	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	fw, _ := w.CreateFormField("email")
	fw.Write([]byte(raw))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/inbound", &form)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.ServeInbound(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	ev := waitForAudit(t, audit)
	if ev.MessageID != "mid-raw-1@mail.example.com" {
		t.Errorf("MessageID = %q", ev.MessageID)
	}
	if ev.Outcome != models.AuditOpeningCreated {
		t.Errorf("Outcome = %q", ev.Outcome)
	}
}

// TestServeInbound_BadBody: garbage is rejected with 400 so the provider
// stops redelivering it.
func TestServeInbound_BadBody(t *testing.T) {
	handler, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeInbound(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestServeInbound_MissingRecipient: a delivery with no To address cannot be
// routed and is rejected.
func TestServeInbound_MissingRecipient(t *testing.T) {
	handler, _ := newTestHandler()

	body, _ := json.Marshal(map[string]any{
		"message_id": "mid-2",
		"subject":    "hello",
		"text":       "hi",
	})
	req := httptest.NewRequest(http.MethodPost, "/inbound", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeInbound(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestServeInbound_MethodNotAllowed rejects GET probes.
func TestServeInbound_MethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/inbound", nil)
	rec := httptest.NewRecorder()

	handler.ServeInbound(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// TestDecodeJSON_Attachments: base64 attachment content decodes; bad base64
// drops the attachment but keeps the message.
func TestDecodeJSON_Attachments(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"
	body, _ := json.Marshal(map[string]any{
		"message_id": "mid-3",
		"from":       "a@example.com",
		"to":         "inbox+tok1@notices.example.com",
		"subject":    "canceled",
		"text":       "body",
		"attachments": []map[string]any{
			{"name": "cancel.ics", "content_type": "text/calendar", "content": base64.StdEncoding.EncodeToString([]byte(ics))},
			{"name": "broken.bin", "content_type": "application/octet-stream", "content": "%%%not-base64%%%"},
		},
	})

	msg, err := DecodeJSON(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1 (bad base64 dropped)", len(msg.Attachments))
	}
	if string(msg.Attachments[0].Content) != ics {
		t.Errorf("attachment content mismatch")
	}
}

// TestDecodeRaw_WithICSAttachment: a multipart message with a calendar part
// surfaces it as an attachment.
func TestDecodeRaw_WithICSAttachment(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nMETHOD:CANCEL\r\nEND:VCALENDAR\r\n"
	raw := strings.Join([]string{
		"Message-Id: <mid-4@mail.example.com>",
		"From: scheduling@acuityscheduling.com",
		"To: inbox+tok1@notices.example.com",
		"Subject: Appointment canceled",
		`Content-Type: multipart/mixed; boundary="BOUND"`,
		"",
		"--BOUND",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"The appointment has been canceled.",
		"--BOUND",
		`Content-Type: text/calendar; method=CANCEL; name="cancel.ics"`,
		`Content-Disposition: attachment; filename="cancel.ics"`,
		"",
		ics,
		"--BOUND--",
		"",
	}, "\r\n")

	msg, err := DecodeRaw(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if msg.MessageID != "mid-4@mail.example.com" {
		t.Errorf("MessageID = %q", msg.MessageID)
	}
	if msg.TextBody == "" {
		t.Errorf("TextBody empty")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1: %+v", len(msg.Attachments), msg.Attachments)
	}
	if !strings.Contains(msg.Attachments[0].ContentType, "text/calendar") {
		t.Errorf("ContentType = %q", msg.Attachments[0].ContentType)
	}
}
