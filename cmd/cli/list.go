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
	"flag"
	"fmt"
	"time"

	"github.com/agentberlin/leadsnake/internal/store"
)

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: leadsnake list runs

List every enrichment run in the journal, newest first.`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.Arg(0) != "runs" {
		fs.Usage()
		return fmt.Errorf("expected: leadsnake list runs")
	}

	s, err := store.NewStore()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	runs, err := s.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-5s %-20s %-8s %-12s %-10s %-9s %-8s %-6s %s\n",
		"ID", "Started", "Mode", "State", "Processed", "Enriched", "Skipped", "Gates", "Input")
	for _, run := range runs {
		started := time.Unix(run.StartedAt, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("%-5d %-20s %-8s %-12s %-10d %-9d %-8d %-6d %s\n",
			run.ID, started, run.Mode, run.State,
			run.Processed, run.Enriched, run.Skipped, run.GatesSeen, run.InputPath)
	}
	return nil
}
