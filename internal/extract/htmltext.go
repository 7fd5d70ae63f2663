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

	"github.com/jaytaylor/html2text"
)

// StripHTML converts an HTML body to scannable plain text. On conversion
// failure it falls back to a crude tag strip so classification can still run.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	text, err := html2text.FromString(html, html2text.Options{TextOnly: true})
	if err != nil {
		return reAnyTag.ReplaceAllString(html, " ")
	}
	return text
}

// ScanText returns the concatenated subject + plain body used by the
// classifier and the heuristic extractor. The HTML body is only consulted
// when no plain-text body was delivered.
func ScanText(subject, textBody, htmlBody string) string {
	body := textBody
	if strings.TrimSpace(body) == "" {
		body = StripHTML(htmlBody)
	}
	return subject + "\n" + body
}

var (
	reAnyTag = regexp.MustCompile(`<[^>]*>`)

	// Struck-through spans mark the cancelled values in Acuity's HTML
	// templates.
	reStruck = regexp.MustCompile(`(?is)<(?:s|strike|del)[^>]*>(.*?)</(?:s|strike|del)>`)
)

// StruckGroups returns the plain text of each struck-through region in an
// HTML body, in document order. Nested tags inside a region are stripped.
func StruckGroups(html string) []string {
	var groups []string
	for _, m := range reStruck.FindAllStringSubmatch(html, -1) {
		inner := strings.TrimSpace(reAnyTag.ReplaceAllString(m[1], " "))
		if inner != "" {
			groups = append(groups, inner)
		}
	}
	return groups
}
