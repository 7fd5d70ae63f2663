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

package extract

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/quickbookingnow/engine/internal/models"
)

var errNoProperty = errors.New("ics: property not present")

// Structured dispatches to the provider-specific adapter for the detected
// platform. The first adapter that recognises the message's shape wins
// outright; a recognised structured result is template-exact and carries
// confidence 1.0. ok=false routes the message to the generic heuristic path.
//
// The switch is exhaustive over the Provider enumeration: adding a platform
// without deciding its adapter is a compile-time visible omission.
func Structured(msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, loc *time.Location) (*Extraction, bool) {
	switch class.Provider {
	case models.ProviderAcuity:
		return extractAcuity(msg, mc, class, loc)
	case models.ProviderBooksy:
		return extractBooksy(msg, mc, class, loc)
	case models.ProviderVagaro, models.ProviderSquare, models.ProviderMindbody, models.ProviderUnknown:
		return nil, false
	default:
		return nil, false
	}
}

// Subject-line fallback shared by both adapters: date, time, and a trailing
// parenthetical timezone abbreviation, e.g.
// "Appointment canceled: Mon 3 Feb 2025 at 2:30 PM (EST)".
var reSubjectNotice = regexp.MustCompile(`(?i)\b(?:(?:mon|tues?|wed(?:nes)?|thur?s?|fri|sat(?:ur)?|sun)(?:day)?\.?,?\s+)?(\d{1,2})\s+([a-z]{3,9})\.?\s+(\d{4})\s+at\s+(\d{1,2}):(\d{2})\s*(a\.?m\.?|p\.?m\.?)\s*\(([A-Za-z]{2,4})\)`)

// subjectFallback parses the shared subject-line template. The cancelled
// window is a single instant; duration comes from the merchant default.
func subjectFallback(subject string, mc *models.MerchantContext, loc *time.Location) (*Extraction, bool) {
	m := reSubjectNotice.FindStringSubmatch(subject)
	if m == nil {
		return nil, false
	}
	day, _ := strconv.Atoi(m[1])
	month, ok := monthByName(m[2])
	if !ok {
		return nil, false
	}
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	hour = applyMeridiem(hour, m[6])

	tzLoc := ResolveAbbrev(m[7])
	if tzLoc == nil {
		tzLoc = loc
	}

	start := time.Date(year, month, day, hour, minute, 0, 0, tzLoc)
	if start.Day() != day || hour > 23 || minute > 59 {
		return nil, false
	}
	end := start.Add(time.Duration(mc.DefaultDurationMin) * time.Minute)

	return &Extraction{
		Candidate: models.ParseCandidate{
			Start:          start.UTC().Truncate(time.Minute),
			End:            end.UTC().Truncate(time.Minute),
			DurationMin:    mc.DefaultDurationMin,
			DurationSource: models.DurationFromDefault,
			Path:           models.PathProviderSubject,
			Confidence:     1.0,
		},
	}, true
}
