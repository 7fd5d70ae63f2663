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

package models

import "time"

// Audit outcome values.
const (
	AuditOpeningCreated = "opening-created"
	AuditUnresolved     = "unresolved"
	AuditVerification   = "verification"
	AuditIgnored        = "ignored"
)

// AuditEvent is one auditable record per processed message: what the message
// was, what the engine extracted, and what it did about it.
type AuditEvent struct {
	ID         string           `json:"id"`
	MessageID  string           `json:"message_id"`
	MerchantID string           `json:"merchant_id,omitempty"`
	Kind       string           `json:"kind"`
	Provider   string           `json:"provider"`
	Outcome    string           `json:"outcome"`
	Reason     string           `json:"reason,omitempty"`
	Candidates []ParseCandidate `json:"candidates,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	ReceivedAt time.Time        `json:"received_at"`
	CreatedAt  time.Time        `json:"created_at"`
}
