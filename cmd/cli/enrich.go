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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentberlin/leadsnake"
)

// enrichFlags holds all the flags for the enrich command
type enrichFlags struct {
	// Output
	outputDir string

	// Navigation
	mode       string
	baseURL    string
	minSignals int

	// Browser session
	port        int
	userDataDir string
	profileDir  string
	browserPath string

	// Timings
	firstWaitSecs int
	gateWaitSecs  int
	maxGates      int
	minDelayMs    int
	maxDelayMs    int

	// Run shape
	checkpointEvery int
	limitRows       int
	debugDumps      bool
	noJournal       bool
}

func runEnrich(args []string) error {
	fs := flag.NewFlagSet("enrich", flag.ExitOnError)

	var flags enrichFlags

	fs.StringVar(&flags.outputDir, "output", "./scraped_data", "Output directory for backups and reports")
	fs.StringVar(&flags.outputDir, "o", "./scraped_data", "Output directory (shorthand)")

	fs.StringVar(&flags.mode, "mode", "auto", "Navigation mode: auto, manual")
	fs.StringVar(&flags.baseURL, "base-url", leadsnake.DefaultBaseURL, "People-search site root")
	fs.IntVar(&flags.minSignals, "min-signals", 1, "Detail-page signal families required before extraction")

	fs.IntVar(&flags.port, "port", 9222, "Remote debugging port to attach to")
	fs.StringVar(&flags.userDataDir, "user-data-dir", "", "Browser profile root (default: browser's own)")
	fs.StringVar(&flags.profileDir, "profile", "Default", "Profile directory name")
	fs.StringVar(&flags.browserPath, "browser", "", "Browser binary path (default: auto-discover)")

	fs.IntVar(&flags.firstWaitSecs, "first-wait", 20, "Seconds to wait for page content after navigation")
	fs.IntVar(&flags.gateWaitSecs, "gate-wait", 240, "Seconds the operator gets to clear an anti-bot check")
	fs.IntVar(&flags.maxGates, "max-gates", 3, "Gates tolerated before switching to manual for good")
	fs.IntVar(&flags.minDelayMs, "min-delay", 500, "Minimum delay between records in milliseconds")
	fs.IntVar(&flags.maxDelayMs, "max-delay", 1600, "Maximum delay between records in milliseconds")

	fs.IntVar(&flags.checkpointEvery, "checkpoint-every", 10, "Save progress after this many records")
	fs.IntVar(&flags.limitRows, "limit", 0, "Only process the first N rows (0 = all)")
	fs.BoolVar(&flags.debugDumps, "debug-dumps", false, "Dump per-record HTML and screenshots")
	fs.BoolVar(&flags.noJournal, "no-journal", false, "Disable the sqlite run journal")

	fs.Usage = func() {
		fmt.Println(`Usage: leadsnake enrich <input.csv|input.xlsx> [flags]

Run an enrichment pass over a record file. Progress is checkpointed back
into the input file; backups and a summary report land in the output
directory.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Enrich through a browser already running with --remote-debugging-port=9222
  leadsnake enrich ./leads.csv

  # Fully manual run with debug dumps
  leadsnake enrich ./leads.csv --mode manual --debug-dumps`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("input file is required")
	}
	inputPath := fs.Arg(0)
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	// Local .env can carry LEADSNAKE_* overrides; absence is fine.
	_ = godotenv.Load()

	cfg := leadsnake.DefaultConfig()
	cfg.InputPath = inputPath
	cfg.OutputDir = flags.outputDir
	cfg.BaseURL = flags.baseURL
	cfg.MinSignals = flags.minSignals
	cfg.MaxGatesBeforeManual = flags.maxGates
	cfg.CheckpointEvery = flags.checkpointEvery
	cfg.LimitRows = flags.limitRows
	cfg.DebugDumps = flags.debugDumps
	cfg.JournalDisabled = flags.noJournal
	cfg.MinDelay = time.Duration(flags.minDelayMs) * time.Millisecond
	cfg.MaxDelay = time.Duration(flags.maxDelayMs) * time.Millisecond
	cfg.Gate.FirstWait = time.Duration(flags.firstWaitSecs) * time.Second
	cfg.Gate.GateWait = time.Duration(flags.gateWaitSecs) * time.Second
	cfg.Session.DebugPort = flags.port
	cfg.Session.UserDataDir = flags.userDataDir
	cfg.Session.ProfileDir = flags.profileDir
	cfg.Session.BrowserPath = flags.browserPath

	switch flags.mode {
	case "auto":
		cfg.Mode = leadsnake.ModeAuto
	case "manual":
		cfg.Mode = leadsnake.ModeManual
	default:
		return fmt.Errorf("invalid mode %q (expected auto or manual)", flags.mode)
	}

	cfg.ApplyEnv()

	logger, logClose, err := newRunLogger(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer logClose()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("starting enrichment (mode=%s, input=%s)", cfg.Mode, cfg.InputPath)
	session, err := leadsnake.NewBrowserSession(ctx, cfg.Session, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if info := leadsnake.ExitIPInfo(ctx, session); info.IP != "" {
		logger.Printf("IP check -> %s %s %s", info.IP, info.Country, info.Region)
	}

	enricher, err := leadsnake.NewEnricher(cfg, session, leadsnake.NewConsoleOperator(), logger)
	if err != nil {
		return err
	}

	summary, err := enricher.Run(ctx)
	if summary != nil {
		logger.Printf("done: processed=%d enriched=%d skipped=%d errors=%d gates=%d",
			summary.Processed, summary.Enriched, summary.Skipped, summary.Errors, summary.GatesSeen)
	}
	return err
}

// newRunLogger logs to stderr and to a timestamped file under the output
// directory's logs/ folder.
func newRunLogger(outputDir string) (*log.Logger, func(), error) {
	logDir := filepath.Join(outputDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(logDir, fmt.Sprintf("enrich_%s.log", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create log file: %w", err)
	}
	logger := log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags)
	return logger, func() { f.Close() }, nil
}
