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

package classify

import (
	"testing"

	"github.com/quickbookingnow/engine/internal/models"
)

// TestClassify verifies intake classification across the message kinds.
func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		msg          models.InboundMessage
		wantKind     models.MessageKind
		wantProvider models.Provider
	}{
		{
			name: "acuity cancellation",
			msg: models.InboundMessage{
				From:    "scheduling@acuityscheduling.com",
				Subject: "Appointment canceled: Mon 3 Feb 2025 at 2:30 PM (EST)",
				TextBody: "The following appointment has been canceled.\n" +
					"Haircut with Dana, Monday 3 Feb 2025 at 2:30 PM (EST)",
			},
			wantKind:     models.KindCancellation,
			wantProvider: models.ProviderAcuity,
		},
		{
			name: "booksy cancellation",
			msg: models.InboundMessage{
				From:     "no-reply@booksy.com",
				Subject:  "Booking cancelled",
				TextBody: "Your client cancelled the appointment for Gel Manicure on:\nThursday, March 6, 2025, 10:00 AM - 10:45 AM",
			},
			wantKind:     models.KindCancellation,
			wantProvider: models.ProviderBooksy,
		},
		{
			name: "reschedule beats cancellation keywords",
			msg: models.InboundMessage{
				From:     "notify@vagaro.com",
				Subject:  "Appointment rescheduled",
				TextBody: "The original booking was cancelled and rescheduled from Tuesday 2:00 PM to Friday 3:00 PM.",
			},
			wantKind:     models.KindReschedule,
			wantProvider: models.ProviderVagaro,
		},
		{
			name: "gmail forwarding verification",
			msg: models.InboundMessage{
				From:    "forwarding-noreply@google.com",
				Subject: "Gmail Forwarding Confirmation",
				TextBody: "salon@example.com has requested to automatically forward mail to " +
					"inbox+tok@notices.example.com. To allow them to forward mail, click:\n" +
					"https://mail.google.com/mail/vf-abc123",
			},
			wantKind:     models.KindVerification,
			wantProvider: models.ProviderUnknown,
		},
		{
			name: "newsletter is ignorable",
			msg: models.InboundMessage{
				From:     "hello@newsletter.example.com",
				Subject:  "March specials at your favorite salon",
				TextBody: "Spring promotions are here. Book today!",
			},
			wantKind:     models.KindIgnorable,
			wantProvider: models.ProviderUnknown,
		},
		{
			name: "spanish cancellation",
			msg: models.InboundMessage{
				From:     "notificaciones@booksy.com",
				Subject:  "Cita cancelada",
				TextBody: "Su cita del 6 de marzo ha sido cancelada.",
			},
			wantKind:     models.KindCancellation,
			wantProvider: models.ProviderBooksy,
		},
		{
			name: "french cancellation",
			msg: models.InboundMessage{
				From:     "noreply@unknown-salon.fr",
				Subject:  "Rendez-vous annulé",
				TextBody: "Votre rendez-vous du 6 mars a été annulé.",
			},
			wantKind:     models.KindCancellation,
			wantProvider: models.ProviderUnknown,
		},
		{
			name: "squarespace scheduling maps to acuity",
			msg: models.InboundMessage{
				From:     "no-reply@squarespace scheduling.example",
				Subject:  "Appointment canceled",
				TextBody: "An appointment was canceled.",
			},
			wantKind:     models.KindCancellation,
			wantProvider: models.ProviderAcuity,
		},
		{
			name: "html body only",
			msg: models.InboundMessage{
				From:     "no-reply@booksy.com",
				Subject:  "Booking update",
				HTMLBody: "<html><body><p>Your client <b>cancelled</b> the appointment.</p></body></html>",
			},
			wantKind:     models.KindCancellation,
			wantProvider: models.ProviderBooksy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(&tt.msg)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Provider != tt.wantProvider {
				t.Errorf("Provider = %v, want %v", got.Provider, tt.wantProvider)
			}
		})
	}
}

// TestClassify_VerificationWinsOverCancellation: a verification email whose
// body happens to mention cancelling forwarding must stay a verification.
func TestClassify_VerificationWinsOverCancellation(t *testing.T) {
	msg := models.InboundMessage{
		From:    "forwarding-noreply@google.com",
		Subject: "Forwarding Confirmation",
		TextBody: "user@example.com has requested to automatically forward mail. " +
			"If you did not request this you may cancel the request.\n" +
			"https://mail.google.com/mail/vf-token99",
	}

	got := Classify(&msg)
	if got.Kind != models.KindVerification {
		t.Fatalf("Kind = %v, want %v", got.Kind, models.KindVerification)
	}
	if got.VerificationURL != "https://mail.google.com/mail/vf-token99" {
		t.Errorf("VerificationURL = %q", got.VerificationURL)
	}
}

// TestDetectProvider_TokenOrder verifies that more specific tokens beat
// their substrings.
func TestDetectProvider_TokenOrder(t *testing.T) {
	tests := []struct {
		scan string
		want models.Provider
	}{
		{"mail from acuityscheduling.com", models.ProviderAcuity},
		{"sent via squareup.com", models.ProviderSquare},
		{"square appointments reminder", models.ProviderSquare},
		{"mindbodyonline notice", models.ProviderMindbody},
		{"plain personal email", models.ProviderUnknown},
	}

	for _, tt := range tests {
		if got := detectProvider(tt.scan); got != tt.want {
			t.Errorf("detectProvider(%q) = %v, want %v", tt.scan, got, tt.want)
		}
	}
}
