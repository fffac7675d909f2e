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
	"os"
	"strconv"
	"time"
)

// Config contains all configuration options for an enrichment run.
type Config struct {
	// InputPath is the CSV or XLSX record file. It is also the checkpoint
	// target: progress is saved back into it.
	InputPath string
	// OutputDir receives backups, the summary report and the error
	// snapshot.
	// Default: "./scraped_data"
	OutputDir string
	// DebugDir receives per-record page dumps when DebugDumps is on.
	// Default: OutputDir/debug
	DebugDir string
	// Mode selects who drives the per-record flow. Auto falls back to
	// manual per record when the automated path gives up.
	Mode NavigationMode
	// BaseURL is the people-search site root.
	BaseURL string
	// Session configures the browser attach/launch behavior.
	Session *SessionConfig
	// Gate configures navigation and challenge-wait timings.
	Gate *GateConfig
	// MaxGatesBeforeManual is the number of anti-bot gates tolerated before
	// the whole run flips to manual for good.
	// Default: 3
	MaxGatesBeforeManual int
	// MinSignals is the number of detail-page signal families required to
	// accept a page for extraction.
	// Default: 1
	MinSignals int
	// CheckpointEvery saves the record table after this many processed
	// records.
	// Default: 10
	CheckpointEvery int
	// MinDelay and MaxDelay bound the randomized pause between records.
	// Defaults: 500ms and 1600ms
	MinDelay time.Duration
	MaxDelay time.Duration
	// LimitRows processes only the first N rows when positive.
	LimitRows int
	// DebugDumps enables per-record HTML and screenshot dumps.
	DebugDumps bool
	// JournalDisabled turns off the sqlite run journal.
	JournalDisabled bool
}

// DefaultConfig returns a Config with the defaults used by the operator
// workflow.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:            "./scraped_data",
		Mode:                 ModeAuto,
		BaseURL:              DefaultBaseURL,
		Session:              DefaultSessionConfig(),
		Gate:                 DefaultGateConfig(),
		MaxGatesBeforeManual: 3,
		MinSignals:           1,
		CheckpointEvery:      10,
		MinDelay:             500 * time.Millisecond,
		MaxDelay:             1600 * time.Millisecond,
	}
}

// envMap maps environment variables to the config fields they override.
var envMap = map[string]func(*Config, string){
	"LEADSNAKE_DEBUG_DUMPS": func(c *Config, val string) {
		if v, err := strconv.Atoi(val); err == nil {
			c.DebugDumps = v != 0
		}
	},
	"LEADSNAKE_LIMIT_ROWS": func(c *Config, val string) {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.LimitRows = v
		}
	},
	"LEADSNAKE_PORT": func(c *Config, val string) {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.Session.DebugPort = v
		}
	},
	"LEADSNAKE_BROWSER": func(c *Config, val string) {
		c.Session.BrowserPath = val
	},
	"LEADSNAKE_GATE_WAIT_SECS": func(c *Config, val string) {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.Gate.GateWait = time.Duration(v) * time.Second
		}
	},
	"LEADSNAKE_NO_JOURNAL": func(c *Config, val string) {
		if v, err := strconv.Atoi(val); err == nil {
			c.JournalDisabled = v != 0
		}
	},
}

// ApplyEnv overrides config fields from the process environment.
func (c *Config) ApplyEnv() {
	if c.Session == nil {
		c.Session = DefaultSessionConfig()
	}
	if c.Gate == nil {
		c.Gate = DefaultGateConfig()
	}
	for key, apply := range envMap {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			apply(c, val)
		}
	}
}
