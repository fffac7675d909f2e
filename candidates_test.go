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
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/agentberlin/leadsnake/testutil"
)

const resultsPageURL = "https://www.fastpeoplesearch.com/name/John-Smith_33101"

func TestScoreCandidate(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want int
	}{
		{"both names in text", Candidate{Text: "John Smith, 44"}, 2},
		{"one name in text", Candidate{Text: "John Doe"}, 1},
		{"no names", Candidate{Text: "Jane Doe"}, 0},
		{"both in text and href", Candidate{
			Text: "John Smith", Href: "https://x.com/person/john-smith/1",
		}, 3},
		{"href only", Candidate{
			Text: "View Free Details", Href: "https://x.com/person/john-smith/1",
		}, 1},
		{"punctuation ignored", Candidate{Text: "SMITH, John (44)"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreCandidate(&tt.c, "John", "Smith"); got != tt.want {
				t.Errorf("ScoreCandidate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCollectCandidates(t *testing.T) {
	page := testutil.ResultsPage(
		testutil.ResultsCard{Name: "John Smith", Href: "/person/john-smith/1", Details: "Age 44, Miami FL"},
		testutil.ResultsCard{Name: "Jonathan Smith", Href: "/person/jonathan-smith/2", Details: "Age 61, Tampa FL"},
	)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	cands := CollectCandidates(doc, resultsPageURL)
	// Each card carries a name link and a view-details link with the same
	// href; dedup should leave one candidate per card.
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(cands), cands)
	}
	if !strings.HasSuffix(cands[0].Href, "/person/john-smith/1") {
		t.Errorf("first candidate href = %q", cands[0].Href)
	}
	if !strings.HasPrefix(cands[0].Href, "https://www.fastpeoplesearch.com/") {
		t.Errorf("href not resolved against page URL: %q", cands[0].Href)
	}
	if cands[0].Position != 0 || cands[1].Position != 1 {
		t.Errorf("positions = %d, %d, want document order", cands[0].Position, cands[1].Position)
	}
}

func TestCollectCandidatesButtons(t *testing.T) {
	page := `<html><body>
<div id="results">
<button data-href="/person/john-smith/1">View Details</button>
<button>View Full Details</button>
</div>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}

	cands := CollectCandidates(doc, resultsPageURL)
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(cands), cands)
	}
	if !cands[0].IsButton || cands[0].Href == "" {
		t.Errorf("data-href button: %+v", cands[0])
	}
	if !cands[1].IsButton || cands[1].Href != "" {
		t.Errorf("href-less button: %+v", cands[1])
	}
}

func TestSelectCandidateBestMatch(t *testing.T) {
	page := testutil.ResultsPage(
		testutil.ResultsCard{Name: "Jane Brown", Href: "/person/jane-brown/1"},
		testutil.ResultsCard{Name: "John Smith", Href: "/person/john-smith/2"},
		testutil.ResultsCard{Name: "John Doe", Href: "/person/john-doe/3"},
	)
	best := SelectCandidate(page, resultsPageURL, "John", "Smith")
	if best == nil {
		t.Fatal("no candidate selected")
	}
	if !strings.HasSuffix(best.Href, "/person/john-smith/2") {
		t.Errorf("selected %q, want the john-smith card", best.Href)
	}
}

func TestSelectCandidateTieKeepsDocumentOrder(t *testing.T) {
	page := testutil.ResultsPage(
		testutil.ResultsCard{Name: "John Smith", Href: "/person/john-smith/1"},
		testutil.ResultsCard{Name: "John Smith", Href: "/person/john-smith/9"},
	)
	best := SelectCandidate(page, resultsPageURL, "John", "Smith")
	if best == nil {
		t.Fatal("no candidate selected")
	}
	if !strings.HasSuffix(best.Href, "/person/john-smith/1") {
		t.Errorf("selected %q, want the earlier card on a tie", best.Href)
	}
}

func TestSelectCandidateNone(t *testing.T) {
	page := `<html><body><div id="results"><p>No records found.</p></div></body></html>`
	if best := SelectCandidate(page, resultsPageURL, "John", "Smith"); best != nil {
		t.Errorf("selected %+v from an empty results page", best)
	}
}
