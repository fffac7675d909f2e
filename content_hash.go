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
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

// Patterns for content that changes on every page load without the page
// itself changing. Interstitial pages rotate these constantly, which would
// otherwise make every poll look like a fresh page.
var (
	fingerprintTimestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`),
	}
	fingerprintTokenPattern   = regexp.MustCompile(`(?i)(?:ray|request|trace)[-_]?id[:=]\s*["']?[a-f0-9-]{8,}["']?`)
	fingerprintSpacePattern   = regexp.MustCompile(`\s+`)
	fingerprintCommentPattern = regexp.MustCompile(`<!--[\s\S]*?-->`)
)

// fingerprintExcludeTags are stripped before hashing. Scripts and styles
// carry nonces and inline state; nav and footer churn with session chrome.
var fingerprintExcludeTags = []string{"script", "style", "nav", "footer"}

// NormalizePageContent reduces page HTML to a stable form for change
// detection: volatile tags removed, comments, timestamps and rotating IDs
// stripped, whitespace collapsed. Whitespace touching a tag boundary is
// dropped entirely, so a pretty-printed page and its minified form
// normalize to the same bytes.
func NormalizePageContent(htmlContent []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	for _, tag := range fingerprintExcludeTags {
		doc.Find(tag).Remove()
	}
	rendered, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	content := []byte(rendered)
	content = fingerprintCommentPattern.ReplaceAll(content, nil)
	for _, p := range fingerprintTimestampPatterns {
		content = p.ReplaceAll(content, []byte("[TS]"))
	}
	content = fingerprintTokenPattern.ReplaceAll(content, nil)
	content = fingerprintSpacePattern.ReplaceAll(bytes.TrimSpace(content), []byte(" "))
	content = bytes.ReplaceAll(content, []byte("> "), []byte(">"))
	content = bytes.ReplaceAll(content, []byte(" <"), []byte("<"))
	return content, nil
}

// PageFingerprint hashes the normalized page content. Two fingerprints are
// equal exactly when the page is showing the same thing, ignoring rotating
// tokens and load timestamps. Returns "" for unparseable input.
func PageFingerprint(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}
	normalized, err := NormalizePageContent([]byte(htmlContent))
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(normalized))
}
