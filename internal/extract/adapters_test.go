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
	"strings"
	"testing"
	"time"

	"github.com/quickbookingnow/engine/internal/models"
)

// TestSubjectFallback parses the shared subject-line template.
func TestSubjectFallback(t *testing.T) {
	loc := nyLoc(t)
	mc := testMerchant()

	ex, ok := subjectFallback("Appointment canceled: Mon 3 Feb 2025 at 2:30 PM (EST)", mc, loc)
	if !ok {
		t.Fatalf("subjectFallback did not match")
	}

	cand := ex.Candidate
	// 2:30 PM EST = 19:30 UTC
	wantStart := time.Date(2025, 2, 3, 19, 30, 0, 0, time.UTC)
	if !cand.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", cand.Start, wantStart)
	}
	wantEnd := wantStart.Add(30 * time.Minute)
	if !cand.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", cand.End, wantEnd)
	}
	if cand.Path != models.PathProviderSubject {
		t.Errorf("Path = %s", cand.Path)
	}
	if cand.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", cand.Confidence)
	}
}

// TestSubjectFallback_NoMatch rejects subjects without the full template.
func TestSubjectFallback_NoMatch(t *testing.T) {
	loc := nyLoc(t)
	mc := testMerchant()

	subjects := []string{
		"Appointment canceled",
		"Appointment canceled: 3 Feb 2025",              // no time
		"Appointment canceled: 3 Feb 2025 at 2:30 PM",   // no timezone
		"Appointment canceled: Feb 2025 at 2:30 PM (EST)", // no day
	}
	for _, s := range subjects {
		if _, ok := subjectFallback(s, mc, loc); ok {
			t.Errorf("subjectFallback(%q) matched, want no match", s)
		}
	}
}

// TestStructured_Acuity_SubjectOnly: an Acuity notice with neither
// attachment nor struck markup falls through to the subject template.
func TestStructured_Acuity_SubjectOnly(t *testing.T) {
	loc := nyLoc(t)
	msg := &models.InboundMessage{
		Subject:    "Appointment canceled: Mon 3 Feb 2025 at 2:30 PM (EST)",
		TextBody:   "The appointment has been canceled.",
		ReceivedAt: testReceived,
	}
	class := models.ClassificationResult{Kind: models.KindCancellation, Provider: models.ProviderAcuity}

	ex, ok := Structured(msg, testMerchant(), class, loc)
	if !ok {
		t.Fatalf("Structured did not match")
	}
	if ex.Candidate.Path != models.PathProviderSubject {
		t.Errorf("Path = %s", ex.Candidate.Path)
	}
	wantStart := time.Date(2025, 2, 3, 19, 30, 0, 0, time.UTC)
	if !ex.Candidate.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ex.Candidate.Start, wantStart)
	}
}

// TestStructured_Acuity_StruckMarkup: the struck-through date and range in
// the HTML body win over the subject line.
func TestStructured_Acuity_StruckMarkup(t *testing.T) {
	loc := nyLoc(t)
	msg := &models.InboundMessage{
		Subject:  "Appointment canceled",
		HTMLBody: `<p>Your appointment <s>Thursday, March 6, 2025 2:30 PM - 3:15 PM</s> is canceled.</p>`,
		ReceivedAt: testReceived,
	}
	class := models.ClassificationResult{Kind: models.KindCancellation, Provider: models.ProviderAcuity}

	ex, ok := Structured(msg, testMerchant(), class, loc)
	if !ok {
		t.Fatalf("Structured did not match")
	}
	cand := ex.Candidate
	if cand.Path != models.PathProviderMarkup {
		t.Errorf("Path = %s", cand.Path)
	}
	wantStart := time.Date(2025, 3, 6, 19, 30, 0, 0, time.UTC) // 2:30 PM EST
	if !cand.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", cand.Start, wantStart)
	}
	if cand.DurationMin != 45 {
		t.Errorf("DurationMin = %d, want 45", cand.DurationMin)
	}
	if cand.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", cand.Confidence)
	}
}

// TestStructured_Acuity_StruckDateWithoutRange: a struck date with no struck
// time range is not template-exact; the adapter declines.
func TestStructured_Acuity_StruckDateWithoutRange(t *testing.T) {
	loc := nyLoc(t)
	msg := &models.InboundMessage{
		Subject:    "Appointment update",
		HTMLBody:   `<p><s>Thursday, March 6, 2025</s> no longer works.</p>`,
		ReceivedAt: testReceived,
	}
	class := models.ClassificationResult{Kind: models.KindCancellation, Provider: models.ProviderAcuity}

	if _, ok := Structured(msg, testMerchant(), class, loc); ok {
		t.Fatalf("Structured matched, want fall-through to heuristic")
	}
}

// TestStructured_Booksy_Range parses the fixed long-date range line.
func TestStructured_Booksy_Range(t *testing.T) {
	loc := nyLoc(t)
	msg := &models.InboundMessage{
		Subject: "Booking cancelled",
		TextBody: "Your client cancelled the appointment for Gel Manicure on:\n" +
			"Thursday, March 6, 2025, 10:00 AM - 10:45 AM",
		ReceivedAt: testReceived,
	}
	class := models.ClassificationResult{Kind: models.KindCancellation, Provider: models.ProviderBooksy}

	ex, ok := Structured(msg, testMerchant(), class, loc)
	if !ok {
		t.Fatalf("Structured did not match")
	}
	cand := ex.Candidate
	wantStart := time.Date(2025, 3, 6, 15, 0, 0, 0, time.UTC) // 10:00 EST
	if !cand.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", cand.Start, wantStart)
	}
	if cand.DurationMin != 45 || cand.DurationSource != models.DurationFromRange {
		t.Errorf("duration = %d (%s), want 45 (range)", cand.DurationMin, cand.DurationSource)
	}
	if cand.ServiceName != "Gel Manicure" {
		t.Errorf("ServiceName = %q, want %q", cand.ServiceName, "Gel Manicure")
	}
	if cand.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", cand.Confidence)
	}
}

// TestStructured_Booksy_PreviousField: a reschedule notice extracts the
// labelled previous window with the merchant-default duration.
func TestStructured_Booksy_PreviousField(t *testing.T) {
	loc := nyLoc(t)
	msg := &models.InboundMessage{
		Subject: "Booking rescheduled",
		TextBody: "Your client moved the appointment.\n" +
			"Previous appointment date: March 6, 2025 at: 2:30 PM\n" +
			"New appointment date: March 12, 2025 at: 4:00 PM",
		ReceivedAt: testReceived,
	}
	class := models.ClassificationResult{Kind: models.KindReschedule, Provider: models.ProviderBooksy}

	ex, ok := Structured(msg, testMerchant(), class, loc)
	if !ok {
		t.Fatalf("Structured did not match")
	}
	cand := ex.Candidate
	wantStart := time.Date(2025, 3, 6, 19, 30, 0, 0, time.UTC) // 2:30 PM EST
	if !cand.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", cand.Start, wantStart)
	}
	if cand.Path != models.PathProviderPrevField {
		t.Errorf("Path = %s", cand.Path)
	}
	if cand.DurationMin != 30 || cand.DurationSource != models.DurationFromDefault {
		t.Errorf("duration = %d (%s), want 30 (default)", cand.DurationMin, cand.DurationSource)
	}
}

// TestStructured_UnknownProviderFallsThrough: no adapter claims a message
// from an unrecognised platform.
func TestStructured_UnknownProviderFallsThrough(t *testing.T) {
	loc := nyLoc(t)
	msg := cancellation("Cancelled", "Appointment on March 6, 2025 at 2:30 PM cancelled.")
	class := models.ClassificationResult{Kind: models.KindCancellation, Provider: models.ProviderUnknown}

	if _, ok := Structured(msg, testMerchant(), class, loc); ok {
		t.Fatalf("Structured matched for unknown provider")
	}
}

// TestParseCancelledICS reads a CANCEL-method attachment.
func TestParseCancelledICS(t *testing.T) {
	loc := nyLoc(t)
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Acuity Scheduling//EN",
		"METHOD:CANCEL",
		"BEGIN:VEVENT",
		"UID:appt-123",
		"DTSTAMP:20250304T120000Z",
		"DTSTART:20250306T193000Z",
		"DTEND:20250306T201500Z",
		"STATUS:CANCELLED",
		"SUMMARY:Appointment for Haircut",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	att := models.Attachment{
		Name:        "cancel.ics",
		ContentType: "text/calendar; method=CANCEL",
		Content:     []byte(ics),
	}

	win, ok := parseCancelledICS(att, loc)
	if !ok {
		t.Fatalf("parseCancelledICS did not match")
	}
	wantStart := time.Date(2025, 3, 6, 19, 30, 0, 0, time.UTC)
	if !win.start.UTC().Equal(wantStart) {
		t.Errorf("start = %v, want %v", win.start.UTC(), wantStart)
	}
	if got := int(win.end.Sub(win.start).Minutes()); got != 45 {
		t.Errorf("window length = %d minutes, want 45", got)
	}
	if serviceFromSummary(win.summary) != "Haircut" {
		t.Errorf("service = %q", serviceFromSummary(win.summary))
	}
}

// TestParseCancelledICS_ConfirmationIgnored: a plain REQUEST confirmation is
// not a cancellation signal.
func TestParseCancelledICS_ConfirmationIgnored(t *testing.T) {
	loc := nyLoc(t)
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Acuity Scheduling//EN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:appt-124",
		"DTSTAMP:20250304T120000Z",
		"DTSTART:20250306T193000Z",
		"DTEND:20250306T201500Z",
		"STATUS:CONFIRMED",
		"SUMMARY:Appointment for Haircut",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	att := models.Attachment{Name: "invite.ics", ContentType: "text/calendar", Content: []byte(ics)}
	if _, ok := parseCancelledICS(att, loc); ok {
		t.Fatalf("confirmation attachment treated as cancellation")
	}
}

// TestStructured_Acuity_ICSBeatsSubject: the attachment is authoritative
// even when the subject also parses.
func TestStructured_Acuity_ICSBeatsSubject(t *testing.T) {
	loc := nyLoc(t)
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"METHOD:CANCEL",
		"BEGIN:VEVENT",
		"UID:appt-125",
		"DTSTAMP:20250304T120000Z",
		"DTSTART:20250306T150000Z",
		"DTEND:20250306T154500Z",
		"STATUS:CANCELLED",
		"SUMMARY:Appointment for Beard Trim",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	msg := &models.InboundMessage{
		Subject: "Appointment canceled: Mon 3 Feb 2025 at 2:30 PM (EST)",
		Attachments: []models.Attachment{
			{Name: "cancel.ics", ContentType: "text/calendar", Content: []byte(ics)},
		},
		ReceivedAt: testReceived,
	}
	class := models.ClassificationResult{Kind: models.KindCancellation, Provider: models.ProviderAcuity}

	ex, ok := Structured(msg, testMerchant(), class, loc)
	if !ok {
		t.Fatalf("Structured did not match")
	}
	if ex.Candidate.Path != models.PathProviderICS {
		t.Errorf("Path = %s, want ICS to win", ex.Candidate.Path)
	}
	wantStart := time.Date(2025, 3, 6, 15, 0, 0, 0, time.UTC)
	if !ex.Candidate.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ex.Candidate.Start, wantStart)
	}
	if ex.Candidate.ServiceName != "Beard Trim" {
		t.Errorf("ServiceName = %q", ex.Candidate.ServiceName)
	}
}
