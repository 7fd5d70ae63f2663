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
	"bytes"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/quickbookingnow/engine/internal/models"
)

// icsWindow is a cancelled event window read from a calendar attachment.
type icsWindow struct {
	start   time.Time
	end     time.Time
	summary string
}

// isCalendarAttachment reports whether an attachment looks like an iCalendar
// file.
func isCalendarAttachment(att models.Attachment) bool {
	if strings.Contains(strings.ToLower(att.ContentType), "text/calendar") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(att.Name), ".ics")
}

// parseCancelledICS extracts the first cancelled event from an iCalendar
// attachment. Only a CANCEL method or a CANCELLED status counts; a plain
// confirmation attachment is not a cancellation signal.
func parseCancelledICS(att models.Attachment, loc *time.Location) (icsWindow, bool) {
	cal, err := ics.ParseCalendar(bytes.NewReader(att.Content))
	if err != nil {
		return icsWindow{}, false
	}

	method := ""
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, "METHOD") {
			method = strings.ToUpper(strings.TrimSpace(p.Value))
		}
	}

	for _, ev := range cal.Events() {
		status := ""
		if p := ev.GetProperty(ics.ComponentProperty("STATUS")); p != nil {
			status = strings.ToUpper(strings.TrimSpace(p.Value))
		}
		if method != "CANCEL" && status != "CANCELLED" {
			continue
		}

		start, err := ev.GetStartAt()
		if err != nil {
			start, err = parseICSStamp(ev, ics.ComponentPropertyDtStart, loc)
			if err != nil {
				continue
			}
		}
		end, err := ev.GetEndAt()
		if err != nil {
			end, err = parseICSStamp(ev, ics.ComponentPropertyDtEnd, loc)
			if err != nil {
				continue
			}
		}
		if !end.After(start) {
			continue
		}

		summary := ""
		if p := ev.GetProperty(ics.ComponentPropertySummary); p != nil {
			summary = p.Value
		}
		return icsWindow{start: start, end: end, summary: summary}, true
	}
	return icsWindow{}, false
}

// parseICSStamp parses a DTSTART/DTEND value the library could not handle
// itself (floating local times resolve in the merchant's zone).
func parseICSStamp(ev *ics.VEvent, prop ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	p := ev.GetProperty(prop)
	if p == nil {
		return time.Time{}, errNoProperty
	}
	v := strings.TrimSpace(p.Value)
	if t, err := time.Parse("20060102T150405Z", v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("20060102T150405", v, loc)
}

// serviceFromSummary derives the appointment/service name from an ICS
// summary like "Appointment for Haircut": the text after the first " for ".
func serviceFromSummary(summary string) string {
	lower := strings.ToLower(summary)
	idx := strings.Index(lower, " for ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(summary[idx+len(" for "):])
}
