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

// pairWindow is the maximum character distance between a date mention and the
// time mention it gets paired with. Pairing only nearby mentions avoids
// cross-associating unrelated numbers in long bodies.
const pairWindow = 160

// Extraction is one candidate window plus the evidence the confidence model
// scores it from.
type Extraction struct {
	Candidate models.ParseCandidate
	Inputs    models.ConfidenceInputs
}

// Evidence summarises what the heuristic pass observed in the message text,
// independent of whether any candidate was assembled. The language-model
// fallback uses it to validate and correct the model's guess.
type Evidence struct {
	HasExplicitDate  bool
	HasExplicitTime  bool
	HasExplicitRange bool
	TimezoneSeen     bool
	MultipleAppts    bool
	RelativeDate     *time.Time // resolved local midnight of the first relative phrase
}

// Heuristic is the provider-agnostic fallback extractor. It scans the
// concatenated subject + stripped body for date/time patterns and assembles
// zero or more candidates. Multiple candidates deliberately signal ambiguity.
func Heuristic(msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, loc *time.Location) ([]Extraction, Evidence) {
	text := ScanText(msg.Subject, msg.TextBody, msg.HTMLBody)
	resched := class.Kind == models.KindReschedule

	dates := findDates(text)
	times := findTimes(text)
	relatives := findRelative(text)
	weekdays := standaloneWeekdays(text, dates)

	ev := Evidence{
		HasExplicitDate: len(dates) > 0,
		HasExplicitTime: len(times) > 0,
		MultipleAppts:   len(dates) >= 2 || len(times) >= 2,
	}
	for _, t := range times {
		if t.isRange {
			ev.HasExplicitRange = true
		}
		if t.tzAbbrev != "" {
			ev.TimezoneSeen = true
		}
	}
	if len(relatives) > 0 {
		y, mo, d := resolveRelative(relatives[0].kind, msg.ReceivedAt, loc)
		resolved := time.Date(y, mo, d, 0, 0, 0, 0, loc)
		ev.RelativeDate = &resolved
	}

	// A reschedule's "changed from X to Y" pair explains two windows; only
	// the lost one is actionable. When the pattern matches, it is the sole
	// candidate.
	if resched {
		if ex, ok := rescheduleFromWindow(text, msg.ReceivedAt, mc, loc); ok {
			return []Extraction{ex}, ev
		}
	}

	durationPhrase := findDurationPhrase(text)
	var out []Extraction

	// Explicit dates paired with the nearest time mention.
	for _, d := range dates {
		t, ok := nearestTime(times, d.pos)
		if !ok {
			continue
		}
		cand, inputs, ok := assemble(d, t, msg.ReceivedAt, mc, loc, durationPhrase)
		if !ok {
			continue
		}
		cand.Path = models.PathExplicitDate
		inputs.ExplicitDate = true
		inputs.MultipleAppts = ev.MultipleAppts
		inputs.Reschedule = resched
		out = appendDedup(out, Extraction{Candidate: cand, Inputs: inputs})
	}

	// Relative-date phrases paired with a time.
	seenKinds := map[relativeKind]bool{}
	for _, r := range relatives {
		if seenKinds[r.kind] {
			continue
		}
		seenKinds[r.kind] = true
		t, ok := nearestTime(times, r.pos)
		if !ok {
			continue
		}
		y, mo, d := resolveRelative(r.kind, msg.ReceivedAt, loc)
		cand, inputs, ok := assemble(dateMention{year: y, month: mo, day: d}, t, msg.ReceivedAt, mc, loc, durationPhrase)
		if !ok {
			continue
		}
		cand.Path = models.PathRelativeDate
		inputs.RelativeDate = true
		inputs.AmbiguousRelative = r.ambiguous
		inputs.MultipleAppts = ev.MultipleAppts
		inputs.Reschedule = resched
		out = appendDedup(out, Extraction{Candidate: cand, Inputs: inputs})
	}

	// Weekday references paired with a time.
	for _, w := range weekdays {
		t, ok := nearestTime(times, w.pos)
		if !ok {
			continue
		}
		y, mo, d := resolveWeekday(w, msg.ReceivedAt, loc)
		cand, inputs, ok := assemble(dateMention{year: y, month: mo, day: d}, t, msg.ReceivedAt, mc, loc, durationPhrase)
		if !ok {
			continue
		}
		cand.Path = models.PathWeekdayRelative
		inputs.RelativeDate = true
		inputs.MultipleAppts = ev.MultipleAppts
		inputs.Reschedule = resched
		out = appendDedup(out, Extraction{Candidate: cand, Inputs: inputs})
	}

	return out, ev
}

// standaloneWeekdays returns weekday mentions that are not the leading
// weekday of an explicit date ("Thursday, March 6" is one date, not a date
// plus a weekday reference).
func standaloneWeekdays(text string, dates []dateMention) []weekdayMention {
	var out []weekdayMention
	for _, w := range findWeekdays(text) {
		partOfDate := false
		for _, d := range dates {
			if w.pos >= d.pos-16 && w.pos < d.pos+len(d.text) {
				partOfDate = true
				break
			}
		}
		if !partOfDate {
			out = append(out, w)
		}
	}
	return out
}

// nearestTime returns the time mention closest to pos within pairWindow.
func nearestTime(times []timeMention, pos int) (timeMention, bool) {
	best := -1
	bestDist := pairWindow + 1
	for i, t := range times {
		dist := t.pos - pos
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	if best < 0 {
		return timeMention{}, false
	}
	return times[best], true
}

// assemble builds one candidate from a date and a time mention. Duration
// priority: explicit range > explicit duration phrase > merchant default.
func assemble(d dateMention, t timeMention, received time.Time, mc *models.MerchantContext, loc *time.Location, durationPhrase int) (models.ParseCandidate, models.ConfidenceInputs, bool) {
	tzLoc := loc
	if t.tzAbbrev != "" {
		if resolved := ResolveAbbrev(t.tzAbbrev); resolved != nil {
			tzLoc = resolved
		}
	}

	year := d.year
	if year == 0 {
		year = received.In(loc).Year()
	}
	start := time.Date(year, d.month, d.day, t.hour, t.minute, 0, 0, tzLoc)

	// Year-omitted dates near the calendar boundary: "Jan 3" forwarded in
	// late December means next year.
	if d.year == 0 && start.Before(received.Add(-24*time.Hour)) {
		start = start.AddDate(1, 0, 0)
	}
	if start.Day() != d.day {
		return models.ParseCandidate{}, models.ConfidenceInputs{}, false // impossible date, e.g. Feb 31
	}

	var end time.Time
	var durMin int
	var src models.DurationSource
	switch {
	case t.isRange:
		end = time.Date(start.Year(), start.Month(), start.Day(), t.endHour, t.endMin, 0, 0, tzLoc)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		durMin = int(end.Sub(start).Minutes())
		src = models.DurationFromRange
	case durationPhrase > 0:
		durMin = durationPhrase
		end = start.Add(time.Duration(durMin) * time.Minute)
		src = models.DurationFromPhrase
	default:
		durMin = mc.DefaultDurationMin
		end = start.Add(time.Duration(durMin) * time.Minute)
		src = models.DurationFromDefault
	}

	cand := models.ParseCandidate{
		Start:          start.UTC().Truncate(time.Minute),
		End:            end.UTC().Truncate(time.Minute),
		DurationMin:    durMin,
		DurationSource: src,
	}
	inputs := models.ConfidenceInputs{
		ExplicitTime:   true,
		ExplicitRange:  t.isRange,
		TimezoneAbbrev: t.tzAbbrev != "",
	}
	return cand, inputs, true
}

// appendDedup drops a candidate whose start instant duplicates an existing
// one — "tomorrow, March 6 at 10" is one appointment, not two. The earlier
// (higher-precedence) path wins.
func appendDedup(out []Extraction, ex Extraction) []Extraction {
	for _, e := range out {
		if e.Candidate.Start.Equal(ex.Candidate.Start) {
			return out
		}
	}
	return append(out, ex)
}
