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

// DurationSource records how a candidate's duration was determined.
type DurationSource string

const (
	DurationFromRange   DurationSource = "explicit-range"
	DurationFromPhrase  DurationSource = "explicit-phrase"
	DurationFromDefault DurationSource = "merchant-default"
)

// ExtractionPath tags which extraction strategy produced a candidate.
type ExtractionPath string

const (
	PathProviderICS        ExtractionPath = "provider-ics"
	PathProviderMarkup     ExtractionPath = "provider-markup"
	PathProviderSubject    ExtractionPath = "provider-subject"
	PathProviderPrevField  ExtractionPath = "provider-previous-field"
	PathExplicitDate       ExtractionPath = "explicit-date-text"
	PathRelativeDate       ExtractionPath = "relative-date"
	PathWeekdayRelative    ExtractionPath = "weekday-relative"
	PathReschedulePrevious ExtractionPath = "reschedule-previous-window"
	PathLanguageModel      ExtractionPath = "language-model"
)

// ParseCandidate is one proposed cancelled-appointment window. Multiple
// candidates from a single message signal ambiguity; the engine never picks
// among them.
type ParseCandidate struct {
	Start          time.Time      `json:"start"` // UTC
	End            time.Time      `json:"end"`   // UTC
	DurationMin    int            `json:"duration_min"`
	DurationSource DurationSource `json:"duration_source"`
	ServiceName    string         `json:"service_name,omitempty"`
	Path           ExtractionPath `json:"path"`
	Confidence     float64        `json:"confidence"`
}

// ConfidenceInputs is the evidence the confidence model scores from.
// A flag is set only when the corresponding signal was actually observed in
// the source text; the model cannot be bribed by absent evidence.
type ConfidenceInputs struct {
	ExplicitDate      bool // calendar date present in text
	RelativeDate      bool // "tomorrow", "next Friday", ...
	AmbiguousRelative bool // phrase pins no exact day ("next week")
	ExplicitTime      bool // a clock time present in text
	ExplicitRange     bool // start-end pair, duration derivable
	TimezoneAbbrev    bool // explicit zone abbreviation next to the time
	MultipleAppts     bool // more than one independent appointment mentioned
	Reschedule        bool // two competing windows in the message
	FromLanguageModel bool // candidate originated from the LLM fallback
}

// UnresolvedReason explains why the engine declined to act.
type UnresolvedReason string

const (
	ReasonNoDate             UnresolvedReason = "no-date"
	ReasonNoTime             UnresolvedReason = "no-time"
	ReasonMultipleCandidates UnresolvedReason = "multiple-candidates"
	ReasonLowConfidence      UnresolvedReason = "low-confidence"
	ReasonNotACancellation   UnresolvedReason = "not-a-cancellation"
)

// EngineOutcome is the terminal result of processing one message. Exactly one
// of Opening or Reason is meaningful: Opening is set iff Created is true.
type EngineOutcome struct {
	Created bool
	Opening *ParseCandidate
	Reason  UnresolvedReason
}

// Opening is the bookable record handed to the opening-creation store.
type Opening struct {
	ID          string    `json:"id"`
	MerchantID  string    `json:"merchant_id"`
	LocationID  string    `json:"location_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMin int       `json:"duration_min"`
	ServiceName string    `json:"service_name,omitempty"`
	Source      string    `json:"source"` // always "email" for this engine
	CreatedAt   time.Time `json:"created_at"`
}
