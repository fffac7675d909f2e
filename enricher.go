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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentberlin/leadsnake/internal/store"
)

var (
	// ErrNoCandidateFound means the results page rendered but offered no
	// detail link worth clicking. Not fatal: the manual flow takes over.
	ErrNoCandidateFound = errors.New("no candidate link found on results page")
	// ErrDetailNotConfirmed means the opened page never showed enough
	// detail-page signals to be trusted for extraction.
	ErrDetailNotConfirmed = errors.New("detail page not confirmed")
)

// SkipToken is what the operator types to give up on a record.
const SkipToken = "skip"

// Operator is the human in the loop. Notify is fire-and-forget; Prompt
// blocks until the operator answers.
type Operator interface {
	Notify(msg string)
	Prompt(msg string) (string, error)
}

// ConsoleOperator talks to the operator over stdin/stdout.
type ConsoleOperator struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleOperator returns an operator bound to the process terminal.
func NewConsoleOperator() *ConsoleOperator {
	return &ConsoleOperator{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// Notify implements Operator.
func (o *ConsoleOperator) Notify(msg string) {
	fmt.Fprintln(o.out, msg)
}

// Prompt implements Operator. The answer is lowercased and trimmed so
// "Skip", "skip " and "skip" all read the same.
func (o *ConsoleOperator) Prompt(msg string) (string, error) {
	fmt.Fprintln(o.out, msg)
	line, err := o.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// Summary is the end-of-run report.
type Summary struct {
	InputPath      string    `json:"input_path"`
	Mode           string    `json:"starting_mode"`
	TotalRecords   int       `json:"total_records"`
	Processed      int       `json:"processed"`
	Enriched       int       `json:"enriched"`
	Skipped        int       `json:"skipped"`
	Errors         int       `json:"errors"`
	GatesSeen      int       `json:"gates_seen"`
	ManualRecords  int       `json:"manual_records"`
	PhonesFound    int       `json:"phones_found"`
	EmailsFound    int       `json:"emails_found"`
	EnrichmentRate float64   `json:"enrichment_rate"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Enricher drives one enrichment run: one record table, one browser
// session, one operator, strictly sequential.
type Enricher struct {
	cfg      *Config
	session  Session
	operator Operator
	gate     *GateMonitor
	table    *RecordTable
	journal  *store.Store
	runID    uint
	logger   *log.Logger
	dumps    *DumpWriter
	limiter  *rate.Limiter
	rng      *rand.Rand
	summary  Summary
}

// NewEnricher loads the input table and assembles a run. The journal is
// best-effort: a store that fails to open is logged and skipped, never
// fatal.
func NewEnricher(cfg *Config, session Session, operator Operator, logger *log.Logger) (*Enricher, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Gate == nil {
		cfg.Gate = DefaultGateConfig()
	}
	table, err := LoadRecordTable(cfg.InputPath)
	if err != nil {
		return nil, fmt.Errorf("load input: %w", err)
	}

	debugDir := cfg.DebugDir
	if debugDir == "" {
		debugDir = filepath.Join(cfg.OutputDir, "debug")
	}

	minDelay := cfg.MinDelay
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}

	e := &Enricher{
		cfg:      cfg,
		session:  session,
		operator: operator,
		gate:     NewGateMonitor(cfg.Mode, cfg.MaxGatesBeforeManual),
		table:    table,
		logger:   logger,
		dumps:    NewDumpWriter(debugDir, cfg.DebugDumps, logger),
		limiter:  rate.NewLimiter(rate.Every(minDelay), 1),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if !cfg.JournalDisabled {
		journal, err := store.NewStore()
		if err != nil {
			e.logf("run journal unavailable: %v", err)
		} else {
			e.journal = journal
		}
	}
	return e, nil
}

// Table exposes the record table, mainly for inspection after a run.
func (e *Enricher) Table() *RecordTable { return e.table }

// GateMonitor exposes the gate monitor state.
func (e *Enricher) GateMonitor() *GateMonitor { return e.gate }

func (e *Enricher) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// Run processes every record, checkpointing along the way, and finishes
// with a final save, timestamped backups and a summary report. Record-level
// failures are logged and skipped; only session-level failures and context
// cancellation abort the run, and those leave an emergency snapshot behind.
func (e *Enricher) Run(ctx context.Context) (*Summary, error) {
	e.summary = Summary{
		InputPath:    e.cfg.InputPath,
		Mode:         e.gate.Mode().String(),
		TotalRecords: e.table.NumRows(),
		StartedAt:    time.Now(),
	}

	if e.journal != nil {
		if run, err := e.journal.CreateRun(e.cfg.InputPath, e.gate.Mode().String(), e.table.NumRows()); err == nil {
			e.runID = run.ID
		} else {
			e.logf("run journal: %v", err)
			e.journal = nil
		}
	}

	limit := e.table.NumRows()
	if e.cfg.LimitRows > 0 && e.cfg.LimitRows < limit {
		limit = e.cfg.LimitRows
	}
	e.logf("processing %d records (of total %d)", limit, e.table.NumRows())

	checkpointEvery := e.cfg.CheckpointEvery
	if checkpointEvery <= 0 {
		checkpointEvery = 10
	}

	var fatal error
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}

		rec := e.table.InputRecordAt(i)
		e.processRecord(ctx, rec, limit)
		e.summary.Processed++

		if (i+1)%checkpointEvery == 0 {
			e.logf("saving progress checkpoint")
			if err := e.table.SaveAtomic(e.cfg.InputPath); err != nil {
				e.logf("checkpoint failed: %v", err)
			}
		}
		e.pause(ctx)
	}

	e.summary.GatesSeen = e.gate.GatesSeen()
	e.summary.FinishedAt = time.Now()
	if e.summary.Processed > 0 {
		e.summary.EnrichmentRate = float64(e.summary.Enriched) / float64(e.summary.Processed)
	}

	if fatal != nil {
		if path, err := e.table.SaveErrorSnapshot(e.cfg.OutputDir, time.Now()); err == nil {
			e.logf("saved error snapshot: %s", path)
		}
		e.finishJournal(store.RunStateFailed)
		return &e.summary, fatal
	}

	if err := e.table.SaveAtomic(e.cfg.InputPath); err != nil {
		e.finishJournal(store.RunStateFailed)
		return &e.summary, fmt.Errorf("final save: %w", err)
	}
	if csvPath, _, err := e.table.SaveBackups(e.cfg.OutputDir, time.Now()); err != nil {
		e.logf("backups failed: %v", err)
	} else {
		e.logf("saved backups next to %s", csvPath)
	}
	if err := e.WriteSummary(e.cfg.OutputDir); err != nil {
		e.logf("summary report failed: %v", err)
	}
	e.finishJournal(store.RunStateCompleted)
	return &e.summary, nil
}

func (e *Enricher) finishJournal(state string) {
	if e.journal == nil {
		return
	}
	err := e.journal.FinishRun(e.runID, state,
		e.summary.Processed, e.summary.Enriched, e.summary.Skipped, e.gate.GatesSeen())
	if err != nil {
		e.logf("run journal: %v", err)
	}
}

// processRecord runs one record through the auto flow, falling back to
// manual when the auto path gives up or the gate budget is spent. All
// record-level errors end here.
func (e *Enricher) processRecord(ctx context.Context, rec InputRecord, total int) {
	outcome := &store.RecordOutcome{
		RunID:       e.runID,
		RecordIndex: rec.Index,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
	}
	defer func() {
		if e.journal != nil {
			if err := e.journal.SaveRecordOutcome(outcome); err != nil {
				e.logf("run journal: %v", err)
			}
		}
	}()

	if rec.FirstName == "" || rec.LastName == "" {
		e.logf("skipping record %d - invalid name", rec.Index+1)
		e.summary.Skipped++
		outcome.Outcome = store.OutcomeSkipped
		outcome.Detail = "invalid name"
		return
	}
	if LooksLikeCompositeName(rec.FirstName) || LooksLikeCompositeName(rec.LastName) {
		e.logf("skipping record %d - composite/org-like name", rec.Index+1)
		e.summary.Skipped++
		outcome.Outcome = store.OutcomeSkipped
		outcome.Detail = "composite name"
		return
	}

	stub := NameStub(rec.FirstName, rec.LastName, rec.Index)
	var (
		fields *EnrichedFields
		err    error
	)

	if e.gate.Mode() == ModeAuto {
		e.logf("[%d/%d] searching: %s %s", rec.Index+1, total, rec.FirstName, rec.LastName)
		fields, err = e.processAuto(ctx, rec, stub)
		if err != nil && !needsManual(err) {
			e.logf("record %d failed: %v", rec.Index+1, err)
			e.summary.Errors++
			outcome.Outcome = store.OutcomeError
			outcome.Detail = err.Error()
			return
		}
		if err != nil {
			e.logf("auto flow gave up on record %d (%v); manual fallback", rec.Index+1, err)
		}
	}

	if fields == nil {
		outcome.Manual = true
		e.summary.ManualRecords++
		fields, err = e.processManual(ctx, rec, stub)
		if err != nil {
			e.logf("record %d failed: %v", rec.Index+1, err)
			e.summary.Errors++
			outcome.Outcome = store.OutcomeError
			outcome.Detail = err.Error()
			return
		}
	}

	if fields == nil {
		e.summary.Skipped++
		outcome.Outcome = store.OutcomeSkipped
		outcome.Detail = "operator skip or manual timeout"
		return
	}

	e.table.ApplyFields(rec.Index, fields)
	e.summary.Enriched++
	e.summary.PhonesFound += len(fields.Phones)
	e.summary.EmailsFound += len(fields.Emails)
	outcome.Outcome = store.OutcomeEnriched
	outcome.PageURL = fields.PageURL
	outcome.PhonesFound = len(fields.Phones)
	outcome.EmailsFound = len(fields.Emails)
}

// needsManual reports whether an auto-flow error is the kind the operator
// can fix by hand.
func needsManual(err error) bool {
	return errors.Is(err, ErrNoCandidateFound) ||
		errors.Is(err, ErrDetailNotConfirmed) ||
		errors.Is(err, ErrNavigationTimeout) ||
		errors.Is(err, ErrChallengeNotCleared)
}

// processAuto is the automated happy path: search, pick the best candidate,
// open it, confirm and extract.
func (e *Enricher) processAuto(ctx context.Context, rec InputRecord, stub string) (*EnrichedFields, error) {
	searchURL := SearchURL(e.cfg.BaseURL, rec.FirstName, rec.LastName, rec.Address, rec.ZIP)

	if err := e.openTracked(ctx, rec, searchURL); err != nil {
		return nil, err
	}
	e.dumps.Dump(ctx, e.session, stub, "results")

	if err := e.session.ScrollToBottom(ctx); err != nil {
		e.logf("scroll failed: %v", err)
	}
	html, err := e.session.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("read results page: %w", err)
	}

	cand := SelectCandidate(html, searchURL, rec.FirstName, rec.LastName)
	if cand == nil {
		return nil, ErrNoCandidateFound
	}

	if cand.Href != "" {
		if err := e.openTracked(ctx, rec, cand.Href); err != nil {
			return nil, err
		}
	} else {
		clicked, err := e.session.ClickMatching(ctx, cand.Text)
		if err != nil || !clicked {
			return nil, ErrNoCandidateFound
		}
	}

	return e.scrapeCurrent(ctx, rec, stub, "detail")
}

// openTracked is OpenWithGate plus gate accounting.
func (e *Enricher) openTracked(ctx context.Context, rec InputRecord, url string) error {
	gateState, err := OpenWithGate(ctx, e.session, e.operator, url, e.cfg.Gate, e.logger)
	if gateState == PageChallenge || gateState == PageBlocked {
		e.gate.RecordGate()
		if e.journal != nil {
			if jerr := e.journal.SaveGateEvent(e.runID, rec.Index, url, gateState.String(), err == nil); jerr != nil {
				e.logf("run journal: %v", jerr)
			}
		}
	}
	return err
}

// scrapeCurrent extracts from whatever page the browser is showing, once it
// confirms the page really is a detail page.
func (e *Enricher) scrapeCurrent(ctx context.Context, rec InputRecord, stub, stage string) (*EnrichedFields, error) {
	confirmWindow := e.cfg.Gate.FirstWait
	if confirmWindow <= 0 {
		confirmWindow = 30 * time.Second
	}
	deadline := time.Now().Add(confirmWindow)
	for {
		html, err := e.session.Content(ctx)
		if err == nil && ConfirmDetailPage(html, e.cfg.MinSignals) {
			break
		}
		if !time.Now().Before(deadline) {
			url, _ := e.session.CurrentURL(ctx)
			return nil, fmt.Errorf("%w (url: %s)", ErrDetailNotConfirmed, url)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(confirmPoll(e.cfg.Gate)):
		}
	}

	e.session.DismissCookieBanner(ctx)
	e.session.ExpandSections(ctx)
	if err := e.session.ScrollToBottom(ctx); err != nil {
		e.logf("scroll failed: %v", err)
	}

	html, err := e.session.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("read detail page: %w", err)
	}
	switch Classify(html) {
	case PageChallenge, PageBlocked:
		return nil, fmt.Errorf("%w: gate reappeared", ErrDetailNotConfirmed)
	}
	e.dumps.Dump(ctx, e.session, stub, stage)

	url, err := e.session.CurrentURL(ctx)
	if err != nil {
		url = ""
	}
	fields := Extract(html, url)
	e.logf("parsed detail: phones=%d emails=%d addr=%q age=%q",
		len(fields.Phones), len(fields.Emails), fields.HomeAddress, fields.Age)
	return fields, nil
}

func confirmPoll(g *GateConfig) time.Duration {
	if g != nil && g.PollInterval > 0 && g.PollInterval < time.Second {
		return g.PollInterval
	}
	return time.Second
}

// processManual hands the record to the operator: they navigate and clear
// gates in the real browser window, and the enricher scrapes whatever
// detail page they land on. A nil, nil return means the record was skipped.
func (e *Enricher) processManual(ctx context.Context, rec InputRecord, stub string) (*EnrichedFields, error) {
	searchURL := SearchURL(e.cfg.BaseURL, rec.FirstName, rec.LastName, rec.Address, rec.ZIP)

	answer, err := e.operator.Prompt(fmt.Sprintf(
		"MANUAL: %s %s\n"+
			"1) In the browser window, go to: %s\n"+
			"2) Clear any checks and click into the correct detail page.\n"+
			"3) Press ENTER here when the detail page is visible (or type %q to skip).",
		rec.FirstName, rec.LastName, searchURL, SkipToken))
	if err != nil {
		return nil, fmt.Errorf("operator prompt: %w", err)
	}
	if answer == SkipToken {
		return nil, nil
	}

	budget := e.cfg.Gate.GateWait
	if budget <= 0 {
		budget = 240 * time.Second
	}
	start := time.Now()
	for {
		e.dumps.Dump(ctx, e.session, stub, "manual_detail")
		fields, err := e.scrapeCurrent(ctx, rec, stub, "manual_detail")
		if err == nil {
			return fields, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		remaining := budget - time.Since(start)
		if remaining <= 0 {
			e.logf("timed out waiting for manual clearance; skipping record %d", rec.Index+1)
			return nil, nil
		}
		answer, perr := e.operator.Prompt(fmt.Sprintf(
			"Not ready: %v. Fix in the browser, then press ENTER (or type %q). Time left ~%ds",
			err, SkipToken, int(remaining.Seconds())))
		if perr != nil {
			return nil, fmt.Errorf("operator prompt: %w", perr)
		}
		if answer == SkipToken {
			return nil, nil
		}
	}
}

// pause spaces records out: a rate-limit floor plus a randomized human-like
// delay.
func (e *Enricher) pause(ctx context.Context) {
	if err := e.limiter.Wait(ctx); err != nil {
		return
	}
	min, max := e.cfg.MinDelay, e.cfg.MaxDelay
	if min <= 0 {
		min = 500 * time.Millisecond
	}
	if max <= min {
		max = min + time.Second
	}
	extra := time.Duration(e.rng.Int63n(int64(max - min)))
	select {
	case <-ctx.Done():
	case <-time.After(extra):
	}
}

// WriteSummary writes the run summary as JSON into dir.
func (e *Enricher) WriteSummary(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run_summary_%s.json", e.summary.StartedAt.Format("20060102_150405")))
	data, err := json.MarshalIndent(&e.summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	e.logf("wrote summary report: %s", path)
	return nil
}
