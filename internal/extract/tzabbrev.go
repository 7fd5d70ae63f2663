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
	"time"
)

// tzAbbrevs maps common timezone abbreviations seen in booking-platform
// emails to IANA zone names. Read-only; never mutated at runtime.
//
// An abbreviation resolves to the zone, not a fixed offset — "2:30 PM (EST)"
// on a July date resolves through America/New_York and therefore to EDT. The
// platforms that emit these abbreviations emit the seasonally correct one, so
// the zone's own DST rules give the right instant either way.
var tzAbbrevs = map[string]string{
	"ET":   "America/New_York",
	"EST":  "America/New_York",
	"EDT":  "America/New_York",
	"CT":   "America/Chicago",
	"CST":  "America/Chicago",
	"CDT":  "America/Chicago",
	"MT":   "America/Denver",
	"MST":  "America/Denver",
	"MDT":  "America/Denver",
	"PT":   "America/Los_Angeles",
	"PST":  "America/Los_Angeles",
	"PDT":  "America/Los_Angeles",
	"AKST": "America/Anchorage",
	"AKDT": "America/Anchorage",
	"HST":  "Pacific/Honolulu",
	"AST":  "America/Halifax",
	"ADT":  "America/Halifax",
	"NST":  "America/St_Johns",
	"NDT":  "America/St_Johns",
	"UTC":  "UTC",
	"GMT":  "UTC",
	"BST":  "Europe/London",
	"CET":  "Europe/Paris",
	"CEST": "Europe/Paris",
}

// ResolveAbbrev returns the location for a timezone abbreviation, or nil if
// the abbreviation is unknown (or the zone database lacks the zone).
func ResolveAbbrev(abbrev string) *time.Location {
	name, ok := tzAbbrevs[strings.ToUpper(strings.TrimSpace(abbrev))]
	if !ok {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil
	}
	return loc
}
