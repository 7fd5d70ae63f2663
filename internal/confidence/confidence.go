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

// Package confidence scores heuristic and language-model candidates from the
// evidence used to build them. The score is the sole gate for automatic
// opening creation; provider-structured results bypass it at a fixed 1.0.
package confidence

import "github.com/quickbookingnow/engine/internal/models"

const (
	// MinAutoAct is the score below which the engine declines to create an
	// opening and notifies the merchant instead.
	MinAutoAct = 0.70

	// llmCeiling caps any candidate that originated from the language-model
	// fallback. An external model's structured guess is never ground truth.
	llmCeiling = 0.75

	// ambiguousCeiling caps candidates built from a relative phrase that
	// pins no exact day ("next week").
	ambiguousCeiling = 0.55
)

// Score computes a candidate's confidence from its evidence, clamped to
// [0.1, 1.0].
func Score(in models.ConfidenceInputs) float64 {
	score := 0.0

	switch {
	case in.ExplicitDate:
		score += 0.5
	case in.RelativeDate:
		score += 0.5
	default:
		score -= 0.4
	}

	switch {
	case in.ExplicitRange:
		score += 0.45
	case in.ExplicitTime:
		score += 0.35
	default:
		score -= 0.4
	}

	if in.TimezoneAbbrev {
		score += 0.05
	}
	if in.MultipleAppts {
		score -= 0.2
	}
	if in.Reschedule {
		score -= 0.05
	}

	if in.AmbiguousRelative && score > ambiguousCeiling {
		score = ambiguousCeiling
	}
	if in.FromLanguageModel && score > llmCeiling {
		score = llmCeiling
	}

	if score < 0.1 {
		return 0.1
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
