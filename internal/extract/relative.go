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
	"strings"
	"time"
)

// relativeKind distinguishes the supported relative-date phrases.
type relativeKind int

const (
	relToday relativeKind = iota
	relTomorrow
	relNextWeek
)

// relativePhrases maps phrase → kind. English plus the Spanish and French
// equivalents the booking platforms localise to.
var relativePhrases = map[string]relativeKind{
	"today":                relToday,
	"hoy":                  relToday,
	"aujourd'hui":          relToday,
	"tomorrow":             relTomorrow,
	"mañana":               relTomorrow,
	"demain":               relTomorrow,
	"next week":            relNextWeek,
	"la próxima semana":    relNextWeek,
	"la semana que viene":  relNextWeek,
	"la semaine prochaine": relNextWeek,
}

// relativeMention is one relative-date phrase found in text.
type relativeMention struct {
	pos       int
	phrase    string
	kind      relativeKind
	ambiguous bool // "next week" pins no exact day
}

// weekdayMention is one weekday reference found in text.
type weekdayMention struct {
	pos     int
	weekday time.Weekday
	next    bool // "next Friday" vs plain "Friday"
}

var reWeekday = regexp.MustCompile(`(?i)\b(next\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

// findRelative scans text for relative-date phrases.
func findRelative(text string) []relativeMention {
	lower := strings.ToLower(text)
	var out []relativeMention
	for phrase, kind := range relativePhrases {
		idx := strings.Index(lower, phrase)
		for idx >= 0 {
			out = append(out, relativeMention{
				pos:       idx,
				phrase:    phrase,
				kind:      kind,
				ambiguous: kind == relNextWeek,
			})
			next := strings.Index(lower[idx+len(phrase):], phrase)
			if next < 0 {
				break
			}
			idx += len(phrase) + next
		}
	}
	return out
}

// findWeekdays scans text for weekday references. Weekday names that are part
// of an explicit long-form date ("Thursday, March 6") are excluded by the
// caller via position overlap with date mentions.
func findWeekdays(text string) []weekdayMention {
	var out []weekdayMention
	for _, idx := range reWeekday.FindAllStringSubmatchIndex(text, -1) {
		name := strings.ToLower(text[idx[4]:idx[5]])
		wd, ok := weekdayNames[name]
		if !ok {
			continue
		}
		out = append(out, weekdayMention{
			pos:     idx[0],
			weekday: wd,
			next:    idx[2] >= 0,
		})
	}
	return out
}

// resolveRelative resolves a relative phrase against the received instant in
// the merchant's timezone, returning a calendar date. "next week" resolves to
// the Monday after the coming Sunday; it pins no exact day and the caller
// must treat it as ambiguous.
func resolveRelative(kind relativeKind, received time.Time, loc *time.Location) (year int, month time.Month, day int) {
	local := received.In(loc)
	switch kind {
	case relToday:
		return local.Date()
	case relTomorrow:
		return local.AddDate(0, 0, 1).Date()
	default: // relNextWeek
		offset := (8 - int(local.Weekday())) % 7
		if offset == 0 {
			offset = 7
		}
		return local.AddDate(0, 0, offset).Date()
	}
}

// resolveWeekday resolves "Friday" / "next Friday" to the nearest matching
// calendar date at or after the received instant. "next" skips an extra week
// when the computed offset would otherwise land within the current
// (Monday-based) week.
func resolveWeekday(m weekdayMention, received time.Time, loc *time.Location) (year int, month time.Month, day int) {
	local := received.In(loc)
	offset := (int(m.weekday) - int(local.Weekday()) + 7) % 7
	if m.next {
		iso := int(local.Weekday())
		if iso == 0 {
			iso = 7 // Sunday closes the week
		}
		remaining := 7 - iso
		if offset <= remaining {
			offset += 7
		}
	}
	return local.AddDate(0, 0, offset).Date()
}
