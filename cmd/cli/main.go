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

// LeadSnake CLI
//
// Command-line interface for the LeadSnake contact-enrichment crawler.
// Drives a real browser session over a record file, enriching each row
// from the matching people-search detail page.
//
// Usage:
//
//	leadsnake <command> [flags]
//
// Commands:
//
//	enrich    Run an enrichment pass over a CSV or XLSX record file
//	export    Export run outcomes from the journal
//	list      List past runs
//	version   Show version information
package main

import (
	"fmt"
	"os"

	"github.com/agentberlin/leadsnake/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "enrich":
		if err := runEnrich(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "list":
		if err := runList(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "-v", "--version":
		fmt.Printf("LeadSnake CLI %s\n", version.CurrentVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`LeadSnake CLI - Browser-driven contact enrichment

Usage:
  leadsnake <command> [flags]

Commands:
  enrich    Run an enrichment pass over a CSV or XLSX record file
  export    Export run outcomes to JSON or CSV
  list      List past runs
  version   Show version information
  help      Show this help message

Examples:
  # Enrich a record file through the browser on port 9222
  leadsnake enrich ./leads.csv

  # Enrich in manual mode with a custom output directory
  leadsnake enrich ./leads.xlsx --mode manual -o ./out

  # Only process the first 20 rows
  leadsnake enrich ./leads.csv --limit 20

  # List all past runs
  leadsnake list runs

  # Export outcomes of run 3
  leadsnake export --run-id 3 --format csv -o ./export

Use "leadsnake <command> --help" for more information about a command.`)
}
