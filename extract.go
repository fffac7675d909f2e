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
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	agePattern            = regexp.MustCompile(`(?i)\bage\s*:?\s*(\d{1,3})\b`)
	ageSignalPattern      = regexp.MustCompile(`(?i)age\s*:?\s*\d{1,3}`)
	currentAddressPattern = regexp.MustCompile(`(?i)current address\s*:?\s*(.+?)(?:\s{2,}|$)`)
	maritalPattern        = regexp.MustCompile(`(?i)\bmarital status\s*:?\s*(single|married|divorced|widowed|separated)\b`)
	backgroundPattern     = regexp.MustCompile(`(?i)((?:background report|background check).{0,300})`)
	faqPattern            = regexp.MustCompile(`(?is)(faqs?\s*:?.+)$`)
)

var (
	relativeHeadingKeywords  = []string{"possible relatives", "relatives"}
	associateHeadingKeywords = []string{"associated people", "associates"}
	peopleKeywordSignals     = []string{"possible relatives", "relatives", "associated people", "associates"}
)

// ConfirmDetailPage decides whether the page is a person detail page by
// counting independent signal families: phone links or phone numbers,
// address links or address phrasing, an age marker, and relative/associate
// sections. Challenge and blocked pages are never accepted, whatever their
// text contains. minSignals below 1 is treated as 1.
func ConfirmDetailPage(htmlStr string, minSignals int) bool {
	if minSignals < 1 {
		minSignals = 1
	}
	if htmlStr == "" {
		return false
	}
	switch Classify(htmlStr) {
	case PageChallenge, PageBlocked:
		return false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return false
	}
	bodyText := strings.ToLower(documentText(doc))

	signals := 0
	if doc.Find("a[href^='tel:'], a[href*='/phone/']").Length() > 0 || phonePattern.MatchString(bodyText) {
		signals++
	}
	if doc.Find("a[href*='/address/']").Length() > 0 ||
		strings.Contains(bodyText, "current address") || strings.Contains(bodyText, "address history") {
		signals++
	}
	if ageSignalPattern.MatchString(bodyText) {
		signals++
	}
	for _, k := range peopleKeywordSignals {
		if strings.Contains(bodyText, k) {
			signals++
			break
		}
	}
	return signals >= minSignals
}

// Extract pulls every enrichment field it can find out of a detail page.
// Individual field failures leave that field empty; Extract itself never
// fails, returning at minimum the page URL.
func Extract(htmlStr, pageURL string) *EnrichedFields {
	f := &EnrichedFields{PageURL: pageURL}
	root, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return f
	}
	doc := goquery.NewDocumentFromNode(root)
	bodyText := documentText(doc)

	// Address: first address link wins, then the labeled-text fallback.
	addrTexts := addressLinkTexts(doc)
	if len(addrTexts) > 0 {
		f.HomeAddress = addrTexts[0]
	}
	if f.HomeAddress == "" {
		if m := currentAddressPattern.FindStringSubmatch(bodyText); m != nil {
			f.HomeAddress = strings.TrimSpace(m[1])
		}
	}
	if len(addrTexts) > 1 {
		f.PreviousAddresses = addrTexts[1:]
	}

	// Phones: tel/phone links first, whole-page regex only as fallback.
	var phones []string
	doc.Find("a[href^='tel:'], a[href*='/phone/']").Each(func(_ int, sel *goquery.Selection) {
		t := nodeText(sel)
		if t == "" {
			t, _ = sel.Attr("href")
		}
		phones = append(phones, phonePattern.FindAllString(t, -1)...)
	})
	if len(phones) == 0 {
		phones = phonePattern.FindAllString(bodyText, -1)
	}
	for i, p := range phones {
		phones[i] = NormalizePhone(p)
	}
	phones = DedupePreserveOrder(phones)
	if len(phones) > MaxPhones {
		phones = phones[:MaxPhones]
	}
	f.Phones = phones

	// Age
	if m := agePattern.FindStringSubmatch(bodyText); m != nil {
		f.Age = m[1]
	}

	// Emails: obfuscated spans and mailto links first, text harvest only
	// when neither yields anything.
	var emails []string
	doc.Find("a.__cf_email__, [data-cfemail]").Each(func(_ int, sel *goquery.Selection) {
		if payload, ok := sel.Attr("data-cfemail"); ok {
			if dec := DecodeProtectedEmail(payload); dec != "" {
				emails = append(emails, dec)
			}
		}
	})
	doc.Find("a[href^='mailto:']").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if addr := strings.TrimPrefix(href, "mailto:"); addr != href {
			emails = append(emails, addr)
		}
	})
	if len(emails) == 0 {
		emails = FindEmails(bodyText)
	}
	f.Emails = DedupePreserveOrder(emails)

	// Relatives / associates live under keyword headings.
	f.Relatives = extractNamesByHeading(root, relativeHeadingKeywords)
	f.Associates = extractNamesByHeading(root, associateHeadingKeywords)

	if m := maritalPattern.FindStringSubmatch(bodyText); m != nil {
		f.MaritalStatus = strings.ToLower(m[1])
	}
	if m := backgroundPattern.FindStringSubmatch(bodyText); m != nil {
		f.BackgroundReport = strings.TrimSpace(m[1])
	}
	if m := faqPattern.FindStringSubmatch(bodyText); m != nil {
		f.FAQs = strings.TrimSpace(m[1])
	}

	return f
}

// addressLinkTexts returns the visible text of every address link in
// document order, deduplicated.
func addressLinkTexts(doc *goquery.Document) []string {
	var out []string
	doc.Find("a[href*='/address/']").Each(func(_ int, sel *goquery.Selection) {
		out = append(out, nodeText(sel))
	})
	return DedupePreserveOrder(out)
}

// extractNamesByHeading finds headings whose text contains one of the
// keywords, then collects person-link names from the first div, section, ul
// or ol that follows each heading in document order. Labels that are
// navigation ("...details...") rather than names are dropped.
func extractNamesByHeading(root *html.Node, keywords []string) []string {
	headings, err := htmlquery.QueryAll(root, "//h1|//h2|//h3|//h4|//h5|//h6")
	if err != nil {
		return nil
	}
	var out []string
	for _, h := range headings {
		title := strings.ToLower(collapseText(h))
		matched := false
		for _, k := range keywords {
			if strings.Contains(title, k) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		container := nextContainer(h)
		if container == nil {
			continue
		}
		links, err := htmlquery.QueryAll(container,
			"//a[contains(@href,'/name/') or contains(@href,'/person/') or contains(@href,'/people/')]")
		if err != nil {
			continue
		}
		for _, a := range links {
			name := collapseText(a)
			if name != "" && !strings.Contains(strings.ToLower(name), "detail") {
				out = append(out, name)
			}
		}
	}
	return DedupePreserveOrder(out)
}

// containerTags are the elements that hold a heading's member list.
var containerTags = map[string]bool{"div": true, "section": true, "ul": true, "ol": true}

// nextContainer walks document order after n (skipping n's own subtree) and
// returns the first list-holding element.
func nextContainer(n *html.Node) *html.Node {
	for cur := nextInDocument(n, true); cur != nil; cur = nextInDocument(cur, false) {
		if cur.Type == html.ElementNode && containerTags[cur.Data] {
			return cur
		}
	}
	return nil
}

// nextInDocument is the document-order successor of n. With skipChildren it
// does not descend into n's subtree.
func nextInDocument(n *html.Node, skipChildren bool) *html.Node {
	if !skipChildren && n.FirstChild != nil {
		return n.FirstChild
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.NextSibling != nil {
			return cur.NextSibling
		}
	}
	return nil
}

// collapseText renders the subtree's text the way a reader sees it: text
// nodes joined by single spaces, script and style contents skipped.
func collapseText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && (cur.Data == "script" || cur.Data == "style") {
			return
		}
		if cur.Type == html.TextNode {
			if t := strings.TrimSpace(cur.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// nodeText is collapseText over a goquery selection's first node.
func nodeText(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	return collapseText(sel.Nodes[0])
}

// documentText is the page's full visible text.
func documentText(doc *goquery.Document) string {
	body := doc.Find("body")
	if len(body.Nodes) > 0 {
		return collapseText(body.Nodes[0])
	}
	if len(doc.Nodes) > 0 {
		return collapseText(doc.Nodes[0])
	}
	return ""
}
