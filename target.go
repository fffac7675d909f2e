// Copyright 2025 Agentic World, LLC (Sherin Thomas)
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

package leadsnake

import (
	"net/url"
	"regexp"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// DefaultBaseURL is the people-search site all searches are built against.
const DefaultBaseURL = "https://www.fastpeoplesearch.com"

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

var (
	namePartPattern = regexp.MustCompile(`[^A-Za-z\- ]`)
	// Trailing ", City, ST" with an optional ", 12345" after it.
	cityStatePattern  = regexp.MustCompile(`(?i),\s*([^,]+),\s*([A-Za-z]{2})(?:,\s*\d{5})?$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeNamePart strips a raw name component down to letters, hyphens and
// spaces, then joins the remaining words with hyphens. The result is safe to
// embed in a search URL path without further escaping.
func SanitizeNamePart(s string) string {
	cleaned := namePartPattern.ReplaceAllString(s, "")
	cleaned = strings.TrimSpace(cleaned)
	return strings.ReplaceAll(cleaned, " ", "-")
}

// CityStateSlug extracts a "City-ST" slug from the trailing portion of a
// mailing address. Returns "" when the address does not end in a
// ", City, ST" (optionally followed by a ZIP) pattern.
func CityStateSlug(address string) string {
	m := cityStatePattern.FindStringSubmatch(strings.TrimSpace(address))
	if m == nil {
		return ""
	}
	city := whitespacePattern.ReplaceAllString(strings.TrimSpace(m[1]), "-")
	return city + "-" + strings.ToUpper(m[2])
}

// SearchLocation picks the location component for a search URL. A ZIP code
// wins when present (truncated to its first five characters); otherwise the
// address is mined for a city-state slug. Returns "" when neither is usable,
// which still produces a valid (site-wide) search.
func SearchLocation(address, zip string) string {
	if z := strings.TrimSpace(zip); z != "" {
		if len(z) > 5 {
			z = z[:5]
		}
		return z
	}
	return CityStateSlug(address)
}

// SearchURL builds the people-search URL for a person. It is total: any
// combination of inputs yields a well-formed URL, degrading to a search
// without a location component when no usable location exists.
func SearchURL(baseURL, first, last, address, zip string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	fn := SanitizeNamePart(first)
	ln := SanitizeNamePart(last)
	where := SearchLocation(address, zip)

	raw := baseURL + "/name/" + url.QueryEscape(fn) + "-" + url.QueryEscape(ln) + "_" + url.QueryEscape(where)
	if parsed, err := urlParser.Parse(raw); err == nil {
		return parsed.Href(false)
	}
	return raw
}

// Substrings that mark a name as a trust, company or multi-person composite.
// Searching these verbatim wastes a page load and often triggers the gate.
var compositeNameMarkers = []string{
	" & ", " and ", " revocable trust", " trust of ", " trustees",
	" survivors", " llc", " inc",
}

// LooksLikeCompositeName reports whether a name field appears to hold an
// organization or a joined pair of people rather than a single person.
func LooksLikeCompositeName(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range compositeNameMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
