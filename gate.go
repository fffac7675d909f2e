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
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNavigationTimeout is returned when a page never shows recognizable
	// content: nothing loaded within the first-wait window, or the site
	// blocked the session outright and the block never lifted.
	ErrNavigationTimeout = errors.New("page did not load expected content")
	// ErrChallengeNotCleared is returned when an anti-bot challenge stays on
	// screen past the gate-wait window.
	ErrChallengeNotCleared = errors.New("challenge not cleared in time")
)

// PageState classifies what the browser is currently showing.
type PageState int

const (
	// PageUnknown means none of the known signals matched.
	PageUnknown PageState = iota
	// PageNormal means recognizable site content is visible.
	PageNormal
	// PageChallenge means an anti-bot interstitial is visible.
	PageChallenge
	// PageBlocked means the site refused the session outright.
	PageBlocked
)

func (s PageState) String() string {
	switch s {
	case PageNormal:
		return "normal"
	case PageChallenge:
		return "challenge"
	case PageBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Signal phrases for page classification. Centralized so a site change only
// needs an edit here.
var (
	challengePhrases = []string{
		"checking your browser", "please wait while we check your browser",
		"verifying you are human", "just a moment",
		"cloudflare", "cf-challenge", "turnstile", "captcha",
	}
	blockedPhrases = []string{
		"access denied", "unusual traffic", "are you a human",
		"verify you are human", "security check", "please enable cookies",
	}
	detailHrefMarkers = []string{"/person", "/people", "/details"}
)

// Classify inspects raw page HTML and reports its state. Challenge signals
// take precedence over blocked signals, which take precedence over normal
// content markers; a page with none of the three is PageUnknown.
func Classify(html string) PageState {
	if strings.TrimSpace(html) == "" {
		return PageUnknown
	}
	lowered := strings.ToLower(html)
	for _, phrase := range challengePhrases {
		if strings.Contains(lowered, phrase) {
			return PageChallenge
		}
	}
	for _, phrase := range blockedPhrases {
		if strings.Contains(lowered, phrase) {
			return PageBlocked
		}
	}
	if hasNormalContent(html) {
		return PageNormal
	}
	return PageUnknown
}

// hasNormalContent looks for the markers that real site pages carry: a
// results container, detail links, or the site header.
func hasNormalContent(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	if doc.Find("#results, [class*='results']").Length() > 0 {
		return true
	}
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.ToLower(href)
		for _, marker := range detailHrefMarkers {
			if strings.Contains(href, marker) {
				found = true
				return false
			}
		}
		return true
	})
	if found {
		return true
	}
	return doc.Find("header [class*='navbar'], header").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return strings.Contains(sel.Text(), "FastPeopleSearch") || sel.Find("[class*='navbar']").Length() > 0
	}).Length() > 0
}

// NavigationMode selects who drives the per-record flow.
type NavigationMode int

const (
	// ModeAuto lets the enricher drive searches and clicks itself.
	ModeAuto NavigationMode = iota
	// ModeManual hands each record to the operator.
	ModeManual
)

func (m NavigationMode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "auto"
}

// GateMonitor counts anti-bot gates across a run and decides when the
// automated flow has to give way to the operator. The transition to manual
// is one-way: once flipped, the monitor never reports auto again.
type GateMonitor struct {
	gatesSeen int
	mode      NavigationMode
	maxGates  int
}

// NewGateMonitor returns a monitor starting in the given mode. maxGates is
// the number of gates tolerated before a permanent switch to manual; zero or
// negative means the default of 3.
func NewGateMonitor(mode NavigationMode, maxGates int) *GateMonitor {
	if maxGates <= 0 {
		maxGates = 3
	}
	return &GateMonitor{mode: mode, maxGates: maxGates}
}

// RecordGate notes one gate encounter and flips to manual when the budget
// is exhausted.
func (g *GateMonitor) RecordGate() {
	g.gatesSeen++
	if g.gatesSeen >= g.maxGates {
		g.mode = ModeManual
	}
}

// GatesSeen returns the number of gates encountered so far.
func (g *GateMonitor) GatesSeen() int { return g.gatesSeen }

// Mode returns the current navigation mode.
func (g *GateMonitor) Mode() NavigationMode { return g.mode }

// ForceManual switches the monitor to manual regardless of the gate count.
func (g *GateMonitor) ForceManual() { g.mode = ModeManual }

// GateConfig holds the timing knobs for OpenWithGate.
type GateConfig struct {
	// FirstWait is how long to wait for recognizable content after a
	// navigation before deciding the page is gated or dead.
	FirstWait time.Duration
	// GateWait is how long the operator gets to clear a challenge.
	GateWait time.Duration
	// PollInterval is the cadence for re-reading the page while waiting.
	PollInterval time.Duration
}

// DefaultGateConfig returns the timings used by the original operator
// workflow: 20s to first content, 240s for a human to clear a gate, polling
// every 3s.
func DefaultGateConfig() *GateConfig {
	return &GateConfig{
		FirstWait:    20 * time.Second,
		GateWait:     240 * time.Second,
		PollInterval: 3 * time.Second,
	}
}

// OpenWithGate navigates the session to target and waits until the page
// shows recognizable content. When an anti-bot gate appears instead, the
// operator is told to clear it in the browser window and the page is re-read
// on PollInterval until it clears or GateWait expires.
//
// The returned state is what stood in the way: PageNormal when the page
// loaded clean, PageChallenge or PageBlocked when a gate was seen (even one
// the operator cleared). A challenge left standing past GateWait ends in
// ErrChallengeNotCleared; a block the operator could not lift ends in
// ErrNavigationTimeout, since no amount of waiting will clear it.
func OpenWithGate(ctx context.Context, s Session, op Operator, target string, cfg *GateConfig, logger *log.Logger) (PageState, error) {
	if cfg == nil {
		cfg = DefaultGateConfig()
	}
	if err := s.Navigate(ctx, target); err != nil {
		return PageUnknown, fmt.Errorf("navigate %s: %w", target, err)
	}

	if waitForNormal(ctx, s, cfg.FirstWait, cfg.PollInterval) {
		return PageNormal, nil
	}

	html, err := s.Content(ctx)
	if err != nil {
		return PageUnknown, fmt.Errorf("read page after navigation: %w", err)
	}
	state := Classify(html)
	if state != PageChallenge && state != PageBlocked {
		return state, ErrNavigationTimeout
	}

	if logger != nil {
		logger.Printf("anti-bot gate detected (%s) at %s; waiting for operator", state, target)
	}
	if op != nil {
		op.Notify("Anti-bot check detected. Please clear it in the browser window.")
	}

	deadline := time.Now().Add(cfg.GateWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
		if waitForNormal(ctx, s, cfg.PollInterval, cfg.PollInterval) {
			if logger != nil {
				logger.Printf("gate cleared at %s", target)
			}
			return state, nil
		}
	}
	if state == PageBlocked {
		return state, ErrNavigationTimeout
	}
	return state, ErrChallengeNotCleared
}

// waitForNormal polls the session until the page classifies as normal or
// the window elapses.
func waitForNormal(ctx context.Context, s Session, window, poll time.Duration) bool {
	deadline := time.Now().Add(window)
	for {
		html, err := s.Content(ctx)
		if err == nil && Classify(html) == PageNormal {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		sleep := poll
		if sleep <= 0 || sleep > 500*time.Millisecond {
			sleep = 500 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(sleep):
		}
	}
}
