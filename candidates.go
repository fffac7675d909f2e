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
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gobwas/glob"
)

// Candidate is one clickable element on a results page that may lead to a
// person detail page.
type Candidate struct {
	// Href is the resolved absolute URL, or "" for buttons without one.
	Href string
	// Text is the visible label.
	Text string
	// Position is the element's document order among collected candidates.
	Position int
	// Score is the name-match score assigned by ScoreCandidate.
	Score int
	// IsButton marks elements that navigate via script rather than href.
	IsButton bool
}

// Glob patterns for URL paths that lead to person detail pages.
var detailPathGlobs = []glob.Glob{
	glob.MustCompile("*/person*"),
	glob.MustCompile("*/people*"),
	glob.MustCompile("*/details*"),
}

// matchesDetailPath reports whether a href looks like a detail-page URL.
func matchesDetailPath(href string) bool {
	href = strings.ToLower(href)
	for _, g := range detailPathGlobs {
		if g.Match(href) {
			return true
		}
	}
	return false
}

// viewDetailLabel reports whether an element's label reads like a
// "View Details" control.
func viewDetailLabel(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "view") && strings.Contains(t, "detail")
}

var nonAlphaPattern = regexp.MustCompile(`[^a-z\s]`)

// normalizeNameText lowercases and strips everything but letters so that
// name matching is insensitive to punctuation and markup noise.
func normalizeNameText(s string) string {
	s = strings.ToLower(s)
	s = nonAlphaPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ScoreCandidate scores how well a candidate matches a person: +2 when both
// name tokens appear in the visible text, +1 when only one does, and +1 more
// when both appear in the href.
func ScoreCandidate(c *Candidate, first, last string) int {
	nf := normalizeNameText(first)
	nl := normalizeNameText(last)
	txt := normalizeNameText(c.Text)
	href := normalizeNameText(c.Href)

	score := 0
	inTxt := func(tok string) bool { return tok != "" && strings.Contains(txt, tok) }
	if inTxt(nf) && inTxt(nl) {
		score += 2
	} else if inTxt(nf) || inTxt(nl) {
		score++
	}
	if nf != "" && nl != "" && strings.Contains(href, nf) && strings.Contains(href, nl) {
		score++
	}
	return score
}

// CollectCandidates gathers detail links and view-detail buttons from a
// results page in document order, deduplicated by resolved href. Elements
// without a href are kept and deduplicated by label and position.
func CollectCandidates(doc *goquery.Document, pageURL string) []*Candidate {
	var out []*Candidate
	seen := make(map[string]bool)

	add := func(c *Candidate) {
		key := c.Href
		if key == "" {
			key = fmt.Sprintf("%s_%d", c.Text, c.Position)
		}
		if seen[key] {
			return
		}
		seen[key] = true
		c.Position = len(out)
		out = append(out, c)
	}

	pos := 0
	doc.Find("a, button").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" {
			href, _ = sel.Attr("data-href")
		}
		text := strings.TrimSpace(sel.Text())
		isButton := goquery.NodeName(sel) == "button"

		keep := false
		if href != "" && matchesDetailPath(href) {
			keep = true
		}
		if viewDetailLabel(text) {
			keep = true
		}
		if !keep {
			return
		}

		resolved := resolveHref(pageURL, href)
		add(&Candidate{Href: resolved, Text: text, Position: pos, IsButton: isButton})
		pos++
	})
	return out
}

// resolveHref resolves href against the page URL, returning href unchanged
// when resolution fails (e.g. javascript: pseudo-links).
func resolveHref(pageURL, href string) string {
	if href == "" {
		return ""
	}
	if u, err := urlParser.ParseRef(pageURL, href); err == nil {
		return u.Href(false)
	}
	return href
}

// SelectCandidate parses a results page and returns the highest-scoring
// candidate for the person, ties broken by document order. Returns nil when
// the page has no candidates at all; that is a signal for the manual
// fallback, not an error.
func SelectCandidate(html, pageURL, first, last string) *Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	cands := CollectCandidates(doc, pageURL)
	if len(cands) == 0 {
		return nil
	}

	best := cands[0]
	best.Score = ScoreCandidate(best, first, last)
	for _, c := range cands[1:] {
		c.Score = ScoreCandidate(c, first, last)
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}
