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

// Package extract turns forwarded cancellation emails into candidate
// appointment windows. It contains the provider-specific structured adapters,
// the generic heuristic extractor, and the shared date/time pattern library
// both rely on.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateMention is one calendar date found in text. Year is 0 when the source
// text omitted it.
type dateMention struct {
	pos   int
	text  string
	year  int
	month time.Month
	day   int
}

// timeMention is one clock time (or start-end range) found in text.
type timeMention struct {
	pos      int
	text     string
	hour     int
	minute   int
	tzAbbrev string
	isRange  bool
	endHour  int
	endMin   int
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// monthByName resolves a month from a full or abbreviated English name.
func monthByName(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	m, ok := months[name[:3]]
	if !ok {
		return 0, false
	}
	// Reject things like "mayhem" — the name must be a real month prefix.
	full := strings.ToLower(m.String())
	if !strings.HasPrefix(full, strings.TrimSuffix(name, ".")) {
		return 0, false
	}
	return m, true
}

var (
	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reSlashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)

	// "Thursday, March 6, 2025" / "March 6" / "Mar 6th 2025"
	reLongDate = regexp.MustCompile(`(?i)\b(?:(?:mon|tues?|wed(?:nes)?|thur?s?|fri|sat(?:ur)?|sun)day,?\s+)?([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)

	// "3 Feb 2025" — day-first form used in subject lines.
	reDayMonth = regexp.MustCompile(`(?i)\b(\d{1,2})\s+([a-z]{3,9})\.?\s+(\d{4})\b`)

	// Clock times: "2:30 PM", "14:00", "2pm".
	reClockTime = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(a\.?m\.?|p\.?m\.?)?|\b(\d{1,2})\s*(a\.?m\.?|p\.?m\.?)`)

	// Joiner between the two halves of a time range.
	reRangeJoin = regexp.MustCompile(`^\s*(?:-|–|—|to|until|hasta|à)\s*$`)

	// Explicit duration phrases: "45 minutes", "1.5 hours".
	reDurationPhrase = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(hours?|hrs?|minutes?|mins?)\b`)

	// Trailing timezone abbreviation, optionally parenthesised: " (EST)".
	reTrailingTZ = regexp.MustCompile(`^\s*\(?([A-Z]{2,4})\)?(?:[^A-Za-z]|$)`)

	reURL = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// FirstURL returns the first URL in text, or "".
func FirstURL(text string) string {
	return reURL.FindString(text)
}

// findDates scans text for explicit calendar dates. Trial order: ISO, US
// slash, long-form month-day, day-first. Overlapping later matches are
// dropped so "2025-02-03" is not re-found as a slash or long date.
func findDates(text string) []dateMention {
	var out []dateMention
	var spans [][2]int

	overlaps := func(s, e int) bool {
		for _, sp := range spans {
			if s < sp[1] && e > sp[0] {
				return true
			}
		}
		return false
	}
	add := func(m dateMention, s, e int) {
		if m.month < time.January || m.month > time.December || m.day < 1 || m.day > 31 {
			return
		}
		if overlaps(s, e) {
			return
		}
		out = append(out, m)
		spans = append(spans, [2]int{s, e})
	}

	for _, idx := range reISODate.FindAllStringSubmatchIndex(text, -1) {
		y, _ := strconv.Atoi(text[idx[2]:idx[3]])
		mo, _ := strconv.Atoi(text[idx[4]:idx[5]])
		d, _ := strconv.Atoi(text[idx[6]:idx[7]])
		add(dateMention{pos: idx[0], text: text[idx[0]:idx[1]], year: y, month: time.Month(mo), day: d}, idx[0], idx[1])
	}

	for _, idx := range reSlashDate.FindAllStringSubmatchIndex(text, -1) {
		mo, _ := strconv.Atoi(text[idx[2]:idx[3]])
		d, _ := strconv.Atoi(text[idx[4]:idx[5]])
		y, _ := strconv.Atoi(text[idx[6]:idx[7]])
		if y < 100 {
			y += 2000
		}
		add(dateMention{pos: idx[0], text: text[idx[0]:idx[1]], year: y, month: time.Month(mo), day: d}, idx[0], idx[1])
	}

	for _, idx := range reLongDate.FindAllStringSubmatchIndex(text, -1) {
		mo, ok := monthByName(text[idx[2]:idx[3]])
		if !ok {
			continue
		}
		d, _ := strconv.Atoi(text[idx[4]:idx[5]])
		y := 0
		if idx[6] >= 0 {
			y, _ = strconv.Atoi(text[idx[6]:idx[7]])
		}
		add(dateMention{pos: idx[0], text: text[idx[0]:idx[1]], year: y, month: mo, day: d}, idx[0], idx[1])
	}

	for _, idx := range reDayMonth.FindAllStringSubmatchIndex(text, -1) {
		d, _ := strconv.Atoi(text[idx[2]:idx[3]])
		mo, ok := monthByName(text[idx[4]:idx[5]])
		if !ok {
			continue
		}
		y, _ := strconv.Atoi(text[idx[6]:idx[7]])
		add(dateMention{pos: idx[0], text: text[idx[0]:idx[1]], year: y, month: mo, day: d}, idx[0], idx[1])
	}

	return out
}

// parseClock converts one reClockTime submatch-index set into hour/minute.
// Returns ok=false for invalid clock values. hasMeridiem reports whether the
// match carried its own AM/PM marker.
func parseClock(text string, idx []int) (hour, minute int, hasMeridiem bool, ok bool) {
	if idx[2] >= 0 { // H:MM form
		hour, _ = strconv.Atoi(text[idx[2]:idx[3]])
		minute, _ = strconv.Atoi(text[idx[4]:idx[5]])
		if idx[6] >= 0 {
			hour = applyMeridiem(hour, text[idx[6]:idx[7]])
			hasMeridiem = true
		}
	} else { // bare "2pm" form
		hour, _ = strconv.Atoi(text[idx[8]:idx[9]])
		hour = applyMeridiem(hour, text[idx[10]:idx[11]])
		hasMeridiem = true
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false, false
	}
	return hour, minute, hasMeridiem, true
}

// applyMeridiem converts a 12-hour value to 24-hour.
func applyMeridiem(hour int, meridiem string) int {
	pm := strings.HasPrefix(strings.ToLower(meridiem), "p")
	if pm && hour != 12 {
		return hour + 12
	}
	if !pm && hour == 12 {
		return 0
	}
	return hour
}

// findTimes scans text for clock times, merging adjacent pairs joined by a
// hyphen/en-dash/"to" into a single range mention. A trailing recognised
// timezone abbreviation is attached to the mention.
func findTimes(text string) []timeMention {
	matches := reClockTime.FindAllStringSubmatchIndex(text, -1)

	type raw struct {
		start, end  int
		hour, min   int
		hasMeridiem bool
	}
	var raws []raw
	for _, idx := range matches {
		h, m, hasMer, ok := parseClock(text, idx)
		if !ok {
			continue
		}
		raws = append(raws, raw{start: idx[0], end: idx[1], hour: h, min: m, hasMeridiem: hasMer})
	}

	var out []timeMention
	for i := 0; i < len(raws); i++ {
		r := raws[i]
		tm := timeMention{pos: r.start, hour: r.hour, minute: r.min}

		// Try to pair with the next time to form a range.
		if i+1 < len(raws) {
			next := raws[i+1]
			between := text[r.end:next.start]
			if len(between) <= 12 && reRangeJoin.MatchString(between) {
				startHour := r.hour
				// "1:00 - 2:30 PM": the first half inherits the second
				// half's meridiem when that keeps the range ordered.
				if !r.hasMeridiem && next.hasMeridiem && startHour < 12 &&
					(startHour+12)*60+r.min <= next.hour*60+next.min {
					startHour += 12
				}
				tm.hour = startHour
				tm.isRange = true
				tm.endHour = next.hour
				tm.endMin = next.min
				tm.text = text[r.start:next.end]
				tm.tzAbbrev = trailingTZ(text, next.end)
				out = append(out, tm)
				i++
				continue
			}
		}

		tm.text = text[r.start:r.end]
		tm.tzAbbrev = trailingTZ(text, r.end)
		out = append(out, tm)
	}
	return out
}

// trailingTZ returns a recognised timezone abbreviation immediately following
// offset in text, or "".
func trailingTZ(text string, offset int) string {
	rest := text[offset:]
	m := reTrailingTZ.FindStringSubmatch(rest)
	if m == nil {
		return ""
	}
	abbrev := m[1]
	if _, ok := tzAbbrevs[abbrev]; !ok {
		return ""
	}
	return abbrev
}

// findDurationPhrase returns the first explicit duration phrase in minutes,
// or 0 if none is present.
func findDurationPhrase(text string) int {
	m := reDurationPhrase.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		return int(n * 60)
	}
	return int(n)
}
