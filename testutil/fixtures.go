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

// Package testutil provides shared test fixtures for leadsnake tests:
// canned people-search pages in each of the states the crawler has to
// recognize (results, detail, challenge, blocked).
package testutil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ChallengePage is a minimal anti-bot interstitial.
var ChallengePage = `<!DOCTYPE html>
<html>
<head><title>Just a moment...</title></head>
<body>
<div class="cf-challenge">
<p>Checking your browser before accessing the site.</p>
<p>Please wait while we check your browser...</p>
</div>
</body>
</html>`

// BlockedPage is a hard denial with no way forward for automation.
var BlockedPage = `<!DOCTYPE html>
<html>
<head><title>Access Denied</title></head>
<body>
<h1>Access denied</h1>
<p>We detected unusual traffic from your network. Please enable cookies.</p>
</body>
</html>`

// ResultsCard is one hit on a results page.
type ResultsCard struct {
	Name    string
	Href    string
	Details string
}

// ResultsPage renders a search results page containing the given cards.
func ResultsPage(cards ...ResultsCard) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head><title>Search Results</title></head>
<body>
<header><a href="/">FastPeopleSearch</a></header>
<div id="results">
`)
	for _, c := range cards {
		fmt.Fprintf(&b, `<div class="card">
<a href="%s">%s</a>
<p>%s</p>
<a href="%s">View Free Details</a>
</div>
`, c.Href, c.Name, c.Details, c.Href)
	}
	b.WriteString(`</div>
</body>
</html>`)
	return b.String()
}

// DetailPerson describes the subject of a detail page fixture.
type DetailPerson struct {
	Name       string
	Age        int
	Address    string
	PrevAddrs  []string
	Phones     []string
	Email      string
	CFEmail    string
	Relatives  []string
	Associates []string
}

// DetailPage renders a person detail page with the usual sections:
// current address, phone numbers, email, possible relatives and
// associated people.
func DetailPage(p DetailPerson) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<header><a href="/">FastPeopleSearch</a></header>
<h1>%s</h1>
<p>Age: %d</p>
<h2>Current Address</h2>
<a href="/address/%s">%s</a>
`, p.Name, p.Name, p.Age, slugify(p.Address), p.Address)
	if len(p.PrevAddrs) > 0 {
		b.WriteString("<h2>Address History</h2>\n")
		for _, a := range p.PrevAddrs {
			fmt.Fprintf(&b, `<a href="/address/%s">%s</a>`+"\n", slugify(a), a)
		}
	}
	if len(p.Phones) > 0 {
		b.WriteString("<h2>Phone Numbers</h2>\n<ul>\n")
		for _, ph := range p.Phones {
			fmt.Fprintf(&b, `<li><a href="tel:%s">%s</a></li>`+"\n", ph, ph)
		}
		b.WriteString("</ul>\n")
	}
	if p.Email != "" {
		fmt.Fprintf(&b, `<h2>Email Addresses</h2>
<a href="mailto:%s">%s</a>
`, p.Email, p.Email)
	}
	if p.CFEmail != "" {
		fmt.Fprintf(&b, `<span class="__cf_email__" data-cfemail="%s">[email protected]</span>`+"\n",
			EncodeProtectedEmail(p.CFEmail, 0x5a))
	}
	if len(p.Relatives) > 0 {
		b.WriteString("<h2>Possible Relatives</h2>\n<div>\n")
		for _, r := range p.Relatives {
			fmt.Fprintf(&b, `<a href="/name/%s">%s</a>`+"\n", slugify(r), r)
		}
		b.WriteString("</div>\n")
	}
	if len(p.Associates) > 0 {
		b.WriteString("<h2>Associated People</h2>\n<div>\n")
		for _, a := range p.Associates {
			fmt.Fprintf(&b, `<a href="/name/%s">%s</a>`+"\n", slugify(a), a)
		}
		b.WriteString("</div>\n")
	}
	b.WriteString(`</body>
</html>`)
	return b.String()
}

// EncodeProtectedEmail obfuscates an address the way Cloudflare email
// protection does: a hex key byte followed by each address byte XORed
// with that key.
func EncodeProtectedEmail(email string, key byte) string {
	out := make([]byte, 0, len(email)+1)
	out = append(out, key)
	for i := 0; i < len(email); i++ {
		out = append(out, email[i]^key)
	}
	return hex.EncodeToString(out)
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
	return strings.Trim(s, "-")
}
