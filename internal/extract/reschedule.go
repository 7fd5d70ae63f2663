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
	"regexp"
	"time"

	"github.com/quickbookingnow/engine/internal/models"
)

// "rescheduled from Friday 2pm to Monday 10am" — only the "from" window is
// the appointment the merchant lost.
var reReschedFrom = regexp.MustCompile(`(?i)\b(?:rescheduled|changed|moved)\s+from\s+(.{3,120}?)\s+to\s+`)

// rescheduleFromWindow extracts the lost window from a "changed from X to Y"
// phrase. The fragment between "from" and "to" must contain a time and some
// date signal (explicit, weekday, or relative).
func rescheduleFromWindow(text string, received time.Time, mc *models.MerchantContext, loc *time.Location) (Extraction, bool) {
	m := reReschedFrom.FindStringSubmatch(text)
	if m == nil {
		return Extraction{}, false
	}
	frag := m[1]

	times := findTimes(frag)
	if len(times) == 0 {
		return Extraction{}, false
	}
	t := times[0]

	var d dateMention
	inputs := models.ConfidenceInputs{Reschedule: true}
	switch {
	case len(findDates(frag)) > 0:
		d = findDates(frag)[0]
		inputs.ExplicitDate = true
	case len(findWeekdays(frag)) > 0:
		y, mo, day := resolveWeekday(findWeekdays(frag)[0], received, loc)
		d = dateMention{year: y, month: mo, day: day}
		inputs.RelativeDate = true
	case len(findRelative(frag)) > 0:
		r := findRelative(frag)[0]
		y, mo, day := resolveRelative(r.kind, received, loc)
		d = dateMention{year: y, month: mo, day: day}
		inputs.RelativeDate = true
		inputs.AmbiguousRelative = r.ambiguous
	default:
		return Extraction{}, false
	}

	cand, assembled, ok := assemble(d, t, received, mc, loc, 0)
	if !ok {
		return Extraction{}, false
	}
	cand.Path = models.PathReschedulePrevious
	inputs.ExplicitTime = assembled.ExplicitTime
	inputs.ExplicitRange = assembled.ExplicitRange
	inputs.TimezoneAbbrev = assembled.TimezoneAbbrev
	return Extraction{Candidate: cand, Inputs: inputs}, true
}
