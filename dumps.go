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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kennygrant/sanitize"
)

var nameStubPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NameStub builds the filename prefix for a record's diagnostic artifacts:
// a zero-padded record index plus hyphenated lowercase name parts.
func NameStub(first, last string, idx int) string {
	slug := func(s string) string {
		s = nameStubPattern.ReplaceAllString(strings.ToLower(s), "-")
		return strings.Trim(s, "-")
	}
	return sanitize.BaseName(fmt.Sprintf("%05d-%s-%s", idx, slug(first), slug(last)))
}

// DumpWriter writes per-record page snapshots (HTML plus screenshot) for
// offline debugging. Disabled writers are no-ops, and consecutive dumps of
// an unchanged page are skipped by content fingerprint.
type DumpWriter struct {
	dir      string
	enabled  bool
	lastHash string
	logger   *log.Logger
}

// NewDumpWriter returns a writer rooted at dir. When enabled is false every
// call is a no-op and dir is never created.
func NewDumpWriter(dir string, enabled bool, logger *log.Logger) *DumpWriter {
	return &DumpWriter{dir: dir, enabled: enabled, logger: logger}
}

// Enabled reports whether the writer will produce files.
func (w *DumpWriter) Enabled() bool { return w != nil && w.enabled }

// Dump snapshots the session's current page as <stub>-<stage>.html and
// <stub>-<stage>.png. Dump failures are logged and swallowed: diagnostics
// must never take down a run.
func (w *DumpWriter) Dump(ctx context.Context, s Session, stub, stage string) {
	if !w.Enabled() {
		return
	}
	htmlContent, err := s.Content(ctx)
	if err != nil {
		w.logf("dump %s-%s: read page: %v", stub, stage, err)
		return
	}
	if fp := PageFingerprint(htmlContent); fp != "" && fp == w.lastHash {
		return
	} else if fp != "" {
		w.lastHash = fp
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.logf("dump %s-%s: %v", stub, stage, err)
		return
	}
	base := filepath.Join(w.dir, sanitize.BaseName(stub+"-"+stage))
	if err := os.WriteFile(base+".html", []byte(htmlContent), 0644); err != nil {
		w.logf("dump %s-%s: write html: %v", stub, stage, err)
	}
	if png, err := s.Screenshot(ctx); err == nil && len(png) > 0 {
		if err := os.WriteFile(base+".png", png, 0644); err != nil {
			w.logf("dump %s-%s: write screenshot: %v", stub, stage, err)
		}
	}
}

func (w *DumpWriter) logf(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
