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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentberlin/leadsnake/internal/store"
	"github.com/agentberlin/leadsnake/testutil"
)

// fakeSession serves canned pages keyed by navigated URL.
type fakeSession struct {
	stubSession

	mu      sync.Mutex
	pages   map[string]string
	current string
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = url
	return nil
}

func (s *fakeSession) Content(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[s.current], nil
}

func (s *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

// scriptedOperator answers prompts from a fixed script, then keeps
// repeating the last answer.
type scriptedOperator struct {
	mu       sync.Mutex
	answers  []string
	notified []string
	prompted []string
}

func (o *scriptedOperator) Notify(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notified = append(o.notified, msg)
}

func (o *scriptedOperator) Prompt(msg string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompted = append(o.prompted, msg)
	if len(o.answers) == 0 {
		return "", nil
	}
	answer := o.answers[0]
	if len(o.answers) > 1 {
		o.answers = o.answers[1:]
	}
	return answer, nil
}

func fastTestConfig(t *testing.T, csvContent string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InputPath = writeTestCSV(t, csvContent)
	cfg.OutputDir = t.TempDir()
	cfg.JournalDisabled = true
	cfg.MinDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Gate = &GateConfig{
		FirstWait:    60 * time.Millisecond,
		GateWait:     80 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
	return cfg
}

func TestEnricherHappyPath(t *testing.T) {
	cfg := fastTestConfig(t, `First Name,Last Name,address,ZIP
John,Smith,"123 Main St, Miami, FL",33101
`)

	searchURL := SearchURL(cfg.BaseURL, "John", "Smith", "123 Main St, Miami, FL", "33101")
	detailURL := cfg.BaseURL + "/person/john-smith/1"
	session := &fakeSession{pages: map[string]string{
		searchURL: testutil.ResultsPage(testutil.ResultsCard{
			Name: "John Smith", Href: "/person/john-smith/1", Details: "Age 44, Miami FL",
		}),
		detailURL: detailFixture(),
	}}
	op := &scriptedOperator{}

	e, err := NewEnricher(cfg, session, op, nil)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Enriched != 1 || summary.Errors != 0 || summary.Skipped != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.GatesSeen != 0 {
		t.Errorf("GatesSeen = %d, want 0", summary.GatesSeen)
	}
	if len(op.prompted) != 0 {
		t.Errorf("operator prompted on the happy path: %v", op.prompted)
	}

	table := e.Table()
	if got := table.Get(0, "Phone1"); got != "(305) 555-0111" {
		t.Errorf("Phone1 = %q", got)
	}
	if got := table.Get(0, "Age"); got != "44" {
		t.Errorf("Age = %q", got)
	}
	if got := table.Get(0, "Full Address"); got != "123 Main St, Miami, FL 33101" {
		t.Errorf("Full Address = %q", got)
	}
	if got := table.Get(0, "Page URL"); got != detailURL {
		t.Errorf("Page URL = %q, want %q", got, detailURL)
	}

	// Final save landed in the input file.
	reloaded, err := LoadRecordTable(cfg.InputPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Get(0, "Phone1"); got != "(305) 555-0111" {
		t.Errorf("checkpointed Phone1 = %q", got)
	}
	assertNoTempFiles(t, filepath.Dir(cfg.InputPath))

	// Backups and summary report exist in the output dir.
	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	var haveCSV, haveXLSX, haveSummary bool
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasPrefix(name, "scraped_results_") && strings.HasSuffix(name, ".csv"):
			haveCSV = true
		case strings.HasPrefix(name, "scraped_results_") && strings.HasSuffix(name, ".xlsx"):
			haveXLSX = true
		case strings.HasPrefix(name, "run_summary_") && strings.HasSuffix(name, ".json"):
			haveSummary = true
		}
	}
	if !haveCSV || !haveXLSX || !haveSummary {
		t.Errorf("missing run artifacts: csv=%v xlsx=%v summary=%v", haveCSV, haveXLSX, haveSummary)
	}
}

func TestEnricherNoCandidateFallsBackToManual(t *testing.T) {
	cfg := fastTestConfig(t, `First Name,Last Name,address,ZIP
John,Smith,"123 Main St, Miami, FL",33101
`)

	searchURL := SearchURL(cfg.BaseURL, "John", "Smith", "123 Main St, Miami, FL", "33101")
	session := &fakeSession{pages: map[string]string{
		searchURL: `<html><body><div id="results"><p>No records found.</p></div></body></html>`,
	}}
	op := &scriptedOperator{answers: []string{"skip"}}

	e, err := NewEnricher(cfg, session, op, nil)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 1 || summary.Enriched != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ManualRecords != 1 {
		t.Errorf("ManualRecords = %d, want 1", summary.ManualRecords)
	}
	if len(op.prompted) != 1 {
		t.Errorf("prompted %d times, want 1", len(op.prompted))
	}
	// Row untouched.
	if got := e.Table().Get(0, "Phone1"); got != "" {
		t.Errorf("Phone1 = %q, want empty", got)
	}
}

func TestEnricherSkipsInvalidAndCompositeNames(t *testing.T) {
	cfg := fastTestConfig(t, `First Name,Last Name,address,ZIP
,Smith,"123 Main St, Miami, FL",33101
John & Jane,Smith,"123 Main St, Miami, FL",33101
Smith Family Revocable Trust,Smith,"123 Main St, Miami, FL",33101
`)
	session := &fakeSession{pages: map[string]string{}}
	op := &scriptedOperator{}

	e, err := NewEnricher(cfg, session, op, nil)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Skipped != 3 || summary.Processed != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	// No searches happened at all.
	if session.current != "" {
		t.Errorf("session navigated to %q for skipped records", session.current)
	}
}

func TestEnricherGateBudgetFlipsRunToManual(t *testing.T) {
	cfg := fastTestConfig(t, `First Name,Last Name,address,ZIP
John,Smith,"123 Main St, Miami, FL",33101
Jane,Doe,"456 Oak Ave, Tampa, FL",33601
Bob,Brown,"789 Pine Rd, Orlando, FL",32801
`)
	cfg.MaxGatesBeforeManual = 2

	// Every navigation lands on a challenge that never clears.
	session := &challengeEverywhereSession{}
	op := &scriptedOperator{answers: []string{"skip"}}

	e, err := NewEnricher(cfg, session, op, nil)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if e.GateMonitor().Mode() != ModeManual {
		t.Error("run did not flip to manual after the gate budget")
	}
	if summary.GatesSeen != 2 {
		t.Errorf("GatesSeen = %d, want 2", summary.GatesSeen)
	}
	// Records 1 and 2 hit gates then fell back to manual; record 3 went
	// straight to manual without touching the browser.
	if summary.ManualRecords != 3 {
		t.Errorf("ManualRecords = %d, want 3", summary.ManualRecords)
	}
	if summary.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", summary.Skipped)
	}
	if navs := session.navCount(); navs != 2 {
		t.Errorf("navigations = %d, want 2 (manual records must not auto-navigate)", navs)
	}
}

// challengeEverywhereSession shows an anti-bot challenge on every page.
type challengeEverywhereSession struct {
	stubSession
	mu   sync.Mutex
	navs int
}

func (s *challengeEverywhereSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navs++
	return nil
}

func (s *challengeEverywhereSession) Content(ctx context.Context) (string, error) {
	return testutil.ChallengePage, nil
}

func (s *challengeEverywhereSession) navCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navs
}

// blockedEverywhereSession shows a hard block on every page.
type blockedEverywhereSession struct {
	stubSession
}

func (s *blockedEverywhereSession) Content(ctx context.Context) (string, error) {
	return testutil.BlockedPage, nil
}

func TestEnricherJournalsGateState(t *testing.T) {
	db, err := store.NewStoreForTesting(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	run, err := db.CreateRun("leads.csv", "auto", 1)
	if err != nil {
		t.Fatal(err)
	}

	cfg := fastTestConfig(t, sampleCSV)
	e := &Enricher{
		cfg:      cfg,
		operator: &scriptedOperator{},
		gate:     NewGateMonitor(ModeAuto, 3),
		journal:  db,
		runID:    run.ID,
	}

	e.session = &blockedEverywhereSession{}
	if err := e.openTracked(context.Background(), InputRecord{Index: 0}, "https://example.com/a"); err == nil {
		t.Fatal("openTracked on a blocked page returned nil error")
	}
	e.session = &challengeEverywhereSession{}
	if err := e.openTracked(context.Background(), InputRecord{Index: 1}, "https://example.com/b"); err == nil {
		t.Fatal("openTracked on a challenge page returned nil error")
	}

	events, err := db.GetRunGateEvents(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("gate events = %d, want 2", len(events))
	}
	if events[0].State != "blocked" || events[0].Cleared {
		t.Errorf("event 0 = state %q cleared %v, want blocked/false", events[0].State, events[0].Cleared)
	}
	if events[1].State != "challenge" || events[1].Cleared {
		t.Errorf("event 1 = state %q cleared %v, want challenge/false", events[1].State, events[1].Cleared)
	}
	if e.gate.GatesSeen() != 2 {
		t.Errorf("GatesSeen = %d, want 2", e.gate.GatesSeen())
	}
}

func TestEnricherCheckpointCadence(t *testing.T) {
	cfg := fastTestConfig(t, `First Name,Last Name,address,ZIP
,One,"x",1
,Two,"x",2
,Three,"x",3
`)
	cfg.CheckpointEvery = 2

	e, err := NewEnricher(cfg, &fakeSession{pages: map[string]string{}}, &scriptedOperator{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Capture the checkpoint state after record 2 by watching the input
	// file's modification time.
	before, err := os.Stat(cfg.InputPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	after, err := os.Stat(cfg.InputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().After(before.ModTime()) && after.Size() == before.Size() {
		t.Error("input file never rewritten")
	}

	reloaded, err := LoadRecordTable(cfg.InputPath)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.NumRows() != 3 {
		t.Errorf("rows after run = %d, want 3", reloaded.NumRows())
	}
	for _, col := range EnrichmentColumns {
		if !reloaded.HasColumn(col) {
			t.Errorf("checkpoint missing column %q", col)
		}
	}
}

func TestEnricherContextCancelLeavesSnapshot(t *testing.T) {
	cfg := fastTestConfig(t, `First Name,Last Name,address,ZIP
John,Smith,"123 Main St, Miami, FL",33101
Jane,Doe,"456 Oak Ave, Tampa, FL",33601
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := NewEnricher(cfg, &fakeSession{pages: map[string]string{}}, &scriptedOperator{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(ctx); err == nil {
		t.Fatal("Run() with cancelled context returned nil error")
	}

	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "error_backup_") {
			found = true
		}
	}
	if !found {
		t.Error("no error snapshot written on abort")
	}
}

func TestNeedsManual(t *testing.T) {
	recoverable := []error{
		ErrNoCandidateFound, ErrDetailNotConfirmed,
		ErrNavigationTimeout, ErrChallengeNotCleared,
	}
	for _, err := range recoverable {
		if !needsManual(err) {
			t.Errorf("needsManual(%v) = false", err)
		}
	}
	if needsManual(os.ErrPermission) {
		t.Error("needsManual accepted an unrelated error")
	}
	if needsManual(context.Canceled) {
		t.Error("needsManual accepted context cancellation")
	}
}

func TestWriteSummary(t *testing.T) {
	cfg := fastTestConfig(t, sampleCSV)
	e, err := NewEnricher(cfg, &fakeSession{pages: map[string]string{}}, &scriptedOperator{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	e.summary.StartedAt = time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	e.summary.Enriched = 5

	dir := t.TempDir()
	if err := e.WriteSummary(dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "run_summary_20260825_103000.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"enriched": 5`) {
		t.Errorf("summary content: %s", data)
	}
}
