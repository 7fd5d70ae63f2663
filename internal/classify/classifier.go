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

// Package classify decides what an inbound forwarded email is — a
// forwarding-setup verification, a cancellation, a reschedule, or noise —
// and which upstream booking platform produced it.
package classify

import (
	"strings"

	"github.com/quickbookingnow/engine/internal/extract"
	"github.com/quickbookingnow/engine/internal/models"
)

// providerTokens maps platform name tokens to providers. Matched
// case-insensitively against sender, subject, and body; first match wins, so
// more specific tokens come before substrings they contain ("squarespace"
// before "square").
var providerTokens = []struct {
	token    string
	provider models.Provider
}{
	{"acuityscheduling", models.ProviderAcuity},
	{"acuity", models.ProviderAcuity},
	{"squarespace scheduling", models.ProviderAcuity},
	{"booksy", models.ProviderBooksy},
	{"vagaro", models.ProviderVagaro},
	{"squareup", models.ProviderSquare},
	{"square appointments", models.ProviderSquare},
	{"mindbody", models.ProviderMindbody},
}

// verificationPhrases mark a forwarding-setup confirmation email. These win
// over any cancellation keyword: Gmail's confirmation text mentions the
// forwarded address, not an appointment.
var verificationPhrases = []string{
	"forwarding confirmation",
	"confirm your forwarding",
	"verify your email forwarding",
	"has requested to automatically forward",
	"to allow them to forward mail",
}

// cancellationKeywords cover English plus the Spanish and French strings the
// platforms localise their notices to.
var cancellationKeywords = []string{
	"cancellation", "cancelled", "canceled", "cancel",
	"cancelación", "cancelada", "cancelado", "anulada", "anulado",
	"annulation", "annulé", "annulée",
}

var rescheduleKeywords = []string{
	"reschedule", "rescheduled", "changed", "moved",
	"reprogramada", "reprogramado", "reprogrammé", "reprogrammée",
}

// Classify inspects sender, subject, and body (HTML stripped) and returns
// the classification that drives extractor dispatch.
func Classify(msg *models.InboundMessage) models.ClassificationResult {
	body := msg.TextBody
	if strings.TrimSpace(body) == "" {
		body = extract.StripHTML(msg.HTMLBody)
	}
	scan := strings.ToLower(msg.From + "\n" + msg.Subject + "\n" + body)

	result := models.ClassificationResult{
		Kind:     models.KindIgnorable,
		Provider: detectProvider(scan),
	}

	if matchAny(scan, verificationPhrases) {
		result.Kind = models.KindVerification
		result.VerificationURL = extract.FirstURL(body)
		return result
	}

	// Reschedule wins when both keyword families match: a reschedule notice
	// frequently mentions the cancelled original too.
	switch {
	case matchAny(scan, rescheduleKeywords):
		result.Kind = models.KindReschedule
	case matchAny(scan, cancellationKeywords):
		result.Kind = models.KindCancellation
	}
	return result
}

func detectProvider(scan string) models.Provider {
	for _, pt := range providerTokens {
		if strings.Contains(scan, pt.token) {
			return pt.provider
		}
	}
	return models.ProviderUnknown
}

func matchAny(scan string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(scan, kw) {
			return true
		}
	}
	return false
}
