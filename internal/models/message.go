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

// Package models defines the data structures shared across the notice engine.
package models

import "time"

// Attachment represents a file attached to a forwarded email.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content,omitempty"`
}

// InboundMessage is one forwarded cancellation/reschedule email as delivered
// by the inbound-email webhook. Constructed once per delivery, read-only
// thereafter.
type InboundMessage struct {
	MessageID   string       `json:"message_id"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	TextBody    string       `json:"text_body"`
	HTMLBody    string       `json:"html_body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
}

// MerchantContext is the per-merchant configuration resolved from the routing
// token embedded in the destination address. Immutable for the duration of
// processing.
type MerchantContext struct {
	MerchantID         string
	RoutingToken       string
	Timezone           string // IANA zone name, e.g. "America/New_York"
	DefaultDurationMin int
	AutoOpenings       bool
	LocationID         string
	NotifyPhone        string
}

// Provider identifies the upstream booking platform that produced a
// forwarded email. The enumeration is closed: adding a platform means adding
// a constant here and a case to the adapter dispatch.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderAcuity           // ICS-attachment style notices
	ProviderBooksy           // marked-up-range style notices
	ProviderVagaro           // detected but handled by the generic path
	ProviderSquare           // detected but handled by the generic path
	ProviderMindbody         // detected but handled by the generic path
)

// String returns the provider's wire/audit name.
func (p Provider) String() string {
	switch p {
	case ProviderAcuity:
		return "acuity"
	case ProviderBooksy:
		return "booksy"
	case ProviderVagaro:
		return "vagaro"
	case ProviderSquare:
		return "square"
	case ProviderMindbody:
		return "mindbody"
	default:
		return "unknown"
	}
}

// MessageKind is the intake classification of an inbound message.
type MessageKind int

const (
	KindIgnorable MessageKind = iota
	KindVerification
	KindCancellation
	KindReschedule
)

// String returns the kind's audit name.
func (k MessageKind) String() string {
	switch k {
	case KindVerification:
		return "verification"
	case KindCancellation:
		return "cancellation"
	case KindReschedule:
		return "reschedule"
	default:
		return "ignorable"
	}
}

// ClassificationResult is the output of the intake classifier. It decides
// which extractor path runs, if any.
type ClassificationResult struct {
	Kind            MessageKind
	Provider        Provider
	VerificationURL string // first URL in the body, set only for KindVerification
}
