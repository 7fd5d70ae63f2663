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
	"time"

	"github.com/quickbookingnow/engine/internal/models"
)

// extractAcuity handles Acuity's ICS-attachment style notices.
//
// Precedence: the iCalendar attachment is authoritative when present and
// usable; otherwise the HTML body is scanned for the struck-through
// (visually cancelled) date and time; otherwise the shared subject-line
// template is tried. A reschedule notice extracts the old window only — the
// attachment Acuity sends for a reschedule carries the cancelled original.
func extractAcuity(msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, loc *time.Location) (*Extraction, bool) {
	for _, att := range msg.Attachments {
		if !isCalendarAttachment(att) {
			continue
		}
		win, ok := parseCancelledICS(att, loc)
		if !ok {
			continue
		}
		start := win.start.UTC().Truncate(time.Minute)
		end := win.end.UTC().Truncate(time.Minute)
		return &Extraction{
			Candidate: models.ParseCandidate{
				Start:          start,
				End:            end,
				DurationMin:    int(end.Sub(start).Minutes()),
				DurationSource: models.DurationFromRange,
				ServiceName:    serviceFromSummary(win.summary),
				Path:           models.PathProviderICS,
				Confidence:     1.0,
			},
		}, true
	}

	if ex, ok := acuityStruckWindow(msg, mc, loc); ok {
		return ex, true
	}

	return subjectFallback(msg.Subject, mc, loc)
}

// acuityStruckWindow scans the HTML body for struck-through date and time
// strings. Both the date and a start-end time range must come from the same
// struck-through group; a lone struck date without its time (or vice versa)
// is not enough to act on.
func acuityStruckWindow(msg *models.InboundMessage, mc *models.MerchantContext, loc *time.Location) (*Extraction, bool) {
	if msg.HTMLBody == "" {
		return nil, false
	}

	for _, group := range StruckGroups(msg.HTMLBody) {
		dates := findDates(group)
		times := findTimes(group)
		if len(dates) == 0 || len(times) == 0 {
			continue
		}
		d, t := dates[0], times[0]
		if !t.isRange {
			continue
		}
		cand, _, ok := assemble(d, t, msg.ReceivedAt, mc, loc, 0)
		if !ok {
			continue
		}
		cand.Path = models.PathProviderMarkup
		cand.Confidence = 1.0
		return &Extraction{Candidate: cand}, true
	}
	return nil, false
}
