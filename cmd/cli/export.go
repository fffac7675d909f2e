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
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/agentberlin/leadsnake/internal/store"
)

// Exporter writes the outcomes of one run out of the journal
type Exporter struct {
	store     *store.Store
	runID     uint
	outputDir string
	format    string
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)

	runID := fs.Int("run-id", 0, "Run ID to export (default: latest)")
	format := fs.String("format", "json", "Output format: json, csv")
	fs.StringVar(format, "f", "json", "Output format (shorthand)")
	output := fs.String("output", ".", "Output directory")
	fs.StringVar(output, "o", ".", "Output directory (shorthand)")

	fs.Usage = func() {
		fmt.Println(`Usage: leadsnake export [flags]

Export per-record outcomes and gate events for a run.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Export the latest run as JSON
  leadsnake export

  # Export run 3 as CSV into ./export
  leadsnake export --run-id 3 --format csv -o ./export`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "json" && *format != "csv" {
		return fmt.Errorf("invalid format %q (expected json or csv)", *format)
	}

	s, err := store.NewStore()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	id := uint(*runID)
	if id == 0 {
		latest, err := s.GetLatestRun()
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("no runs recorded yet")
		}
		id = latest.ID
	}

	e := &Exporter{store: s, runID: id, outputDir: *output, format: *format}
	return e.Export()
}

// Export writes the run, its outcomes and its gate events
func (e *Exporter) Export() error {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	run, err := e.store.GetRunByID(e.runID)
	if err != nil {
		return err
	}
	outcomes, err := e.store.GetRunOutcomes(e.runID)
	if err != nil {
		return err
	}
	events, err := e.store.GetRunGateEvents(e.runID)
	if err != nil {
		return err
	}

	if e.format == "json" {
		return e.exportJSON(run, outcomes, events)
	}
	return e.exportCSV(outcomes)
}

func (e *Exporter) exportJSON(run *store.Run, outcomes []store.RecordOutcome, events []store.GateEvent) error {
	output := struct {
		Run        *store.Run            `json:"run"`
		ExportedAt string                `json:"exportedAt"`
		Outcomes   []store.RecordOutcome `json:"outcomes"`
		GateEvents []store.GateEvent     `json:"gateEvents"`
	}{
		Run:        run,
		ExportedAt: time.Now().Format(time.RFC3339),
		Outcomes:   outcomes,
		GateEvents: events,
	}

	path := filepath.Join(e.outputDir, fmt.Sprintf("run_%d.json", e.runID))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&output); err != nil {
		return err
	}
	fmt.Printf("Exported %d outcomes to %s\n", len(outcomes), path)
	return nil
}

func (e *Exporter) exportCSV(outcomes []store.RecordOutcome) error {
	path := filepath.Join(e.outputDir, fmt.Sprintf("run_%d.csv", e.runID))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"record_index", "first_name", "last_name", "outcome", "detail", "page_url", "manual", "phones_found", "emails_found"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, o := range outcomes {
		row := []string{
			strconv.Itoa(o.RecordIndex), o.FirstName, o.LastName,
			o.Outcome, o.Detail, o.PageURL,
			strconv.FormatBool(o.Manual),
			strconv.Itoa(o.PhonesFound), strconv.Itoa(o.EmailsFound),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	fmt.Printf("Exported %d outcomes to %s\n", len(outcomes), path)
	return nil
}
