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
	"strconv"
	"strings"
	"time"

	"github.com/quickbookingnow/engine/internal/models"
)

// Booksy cancellation bodies carry one fixed "long-date, time - time" line:
// "Thursday, March 6, 2025, 10:00 AM - 10:45 AM".
var reBooksyRange = regexp.MustCompile(`(?i)\b(?:(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday),?\s+)?([a-z]{3,9})\.?\s+(\d{1,2}),?\s+(\d{4}),?\s+(\d{1,2}):(\d{2})\s*(a\.?m\.?|p\.?m\.?)\s*(?:-|–|—|to)\s*(\d{1,2}):(\d{2})\s*(a\.?m\.?|p\.?m\.?)\b`)

// The service name precedes the range: "cancelled appointment for Haircut on:".
var reBooksyService = regexp.MustCompile(`(?i)\bfor\s+([^\n]{1,60}?)\s+on:?\s*$`)

// Booksy reschedule bodies label the lost window explicitly.
var reBooksyPrevious = regexp.MustCompile(`(?i)previous\s+appointment\s+date:?\s*([^\n]+?)\s+at:?\s*(\d{1,2}):(\d{2})\s*(a\.?m\.?|p\.?m\.?)?`)

// extractBooksy handles Booksy's marked-up-range style notices.
//
// A cancellation carries the full window inline (duration = range length).
// A reschedule instead labels the previous appointment's date and start
// time; duration falls back to the merchant default. When neither template
// matches, the shared subject-line fallback is tried.
func extractBooksy(msg *models.InboundMessage, mc *models.MerchantContext, class models.ClassificationResult, loc *time.Location) (*Extraction, bool) {
	body := ScanText("", msg.TextBody, msg.HTMLBody)

	if ex, ok := booksyRangeWindow(body, mc, loc); ok {
		return ex, true
	}
	if class.Kind == models.KindReschedule {
		if ex, ok := booksyPreviousWindow(body, msg.ReceivedAt, mc, loc); ok {
			return ex, true
		}
	}
	return subjectFallback(msg.Subject, mc, loc)
}

func booksyRangeWindow(body string, mc *models.MerchantContext, loc *time.Location) (*Extraction, bool) {
	idx := reBooksyRange.FindStringSubmatchIndex(body)
	if idx == nil {
		return nil, false
	}
	get := func(n int) string { return body[idx[2*n]:idx[2*n+1]] }

	month, ok := monthByName(get(1))
	if !ok {
		return nil, false
	}
	day, _ := strconv.Atoi(get(2))
	year, _ := strconv.Atoi(get(3))
	startHour, _ := strconv.Atoi(get(4))
	startMin, _ := strconv.Atoi(get(5))
	startHour = applyMeridiem(startHour, get(6))
	endHour, _ := strconv.Atoi(get(7))
	endMin, _ := strconv.Atoi(get(8))
	endHour = applyMeridiem(endHour, get(9))

	start := time.Date(year, month, day, startHour, startMin, 0, 0, loc)
	if start.Day() != day {
		return nil, false
	}
	end := time.Date(year, month, day, endHour, endMin, 0, 0, loc)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	startUTC := start.UTC().Truncate(time.Minute)
	endUTC := end.UTC().Truncate(time.Minute)
	return &Extraction{
		Candidate: models.ParseCandidate{
			Start:          startUTC,
			End:            endUTC,
			DurationMin:    int(endUTC.Sub(startUTC).Minutes()),
			DurationSource: models.DurationFromRange,
			ServiceName:    booksyServiceName(body, idx[0]),
			Path:           models.PathProviderMarkup,
			Confidence:     1.0,
		},
	}, true
}

// booksyServiceName pulls the service name out of the text immediately
// preceding the matched range line.
func booksyServiceName(body string, rangeStart int) string {
	prefix := body[:rangeStart]
	if len(prefix) > 120 {
		prefix = prefix[len(prefix)-120:]
	}
	m := reBooksyService.FindStringSubmatch(strings.TrimRight(prefix, " \t"))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func booksyPreviousWindow(body string, received time.Time, mc *models.MerchantContext, loc *time.Location) (*Extraction, bool) {
	m := reBooksyPrevious.FindStringSubmatch(body)
	if m == nil {
		return nil, false
	}

	dates := findDates(m[1])
	if len(dates) == 0 {
		return nil, false
	}
	d := dates[0]

	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if m[4] != "" {
		hour = applyMeridiem(hour, m[4])
	}
	if hour > 23 || minute > 59 {
		return nil, false
	}

	year := d.year
	if year == 0 {
		year = received.In(loc).Year()
	}
	start := time.Date(year, d.month, d.day, hour, minute, 0, 0, loc)
	if start.Day() != d.day {
		return nil, false
	}
	end := start.Add(time.Duration(mc.DefaultDurationMin) * time.Minute)

	return &Extraction{
		Candidate: models.ParseCandidate{
			Start:          start.UTC().Truncate(time.Minute),
			End:            end.UTC().Truncate(time.Minute),
			DurationMin:    mc.DefaultDurationMin,
			DurationSource: models.DurationFromDefault,
			Path:           models.PathProviderPrevField,
			Confidence:     1.0,
		},
	}, true
}
