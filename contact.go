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
	"regexp"
	"strconv"
	"strings"

	emailaddress "github.com/mcnijman/go-emailaddress"
)

// MaxPhones caps how many phone numbers a record keeps.
const MaxPhones = 5

// phonePattern matches US phone numbers with optional +1 prefix and the
// separator characters seen in the wild, including unicode dashes.
var phonePattern = regexp.MustCompile(`(?:\+1[\s\-.\x{2011}\x{2012}\x{2013}\x{2014}]?)?\(?\d{3}\)?[\s\-.\x{2011}\x{2012}\x{2013}\x{2014}]?\d{3}[\s\-.\x{2011}\x{2012}\x{2013}\x{2014}]?\d{4}`)

var nonDigitPattern = regexp.MustCompile(`\D`)

// NormalizePhone formats a raw phone match as "(NNN) NNN-NNNN". An eleven
// digit number with a leading 1 loses the country code first. Inputs that do
// not reduce to ten digits are returned trimmed but otherwise untouched, so
// the function is idempotent on its own output.
func NormalizePhone(raw string) string {
	digits := nonDigitPattern.ReplaceAllString(raw, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	if len(digits) == 10 {
		return "(" + digits[0:3] + ") " + digits[3:6] + "-" + digits[6:10]
	}
	return strings.TrimSpace(raw)
}

// FindPhones extracts and normalizes every phone number in the text,
// preserving first-seen order.
func FindPhones(text string) []string {
	matches := phonePattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, NormalizePhone(m))
	}
	return DedupePreserveOrder(out)
}

// DecodeProtectedEmail decodes the hex payload used by email obfuscation
// scripts: the first byte is an XOR key applied to every following byte.
// Returns "" when the payload is malformed.
func DecodeProtectedEmail(cfHex string) string {
	if len(cfHex) < 4 || len(cfHex)%2 != 0 {
		return ""
	}
	key, err := strconv.ParseUint(cfHex[:2], 16, 8)
	if err != nil {
		return ""
	}
	var b strings.Builder
	for i := 2; i < len(cfHex); i += 2 {
		v, err := strconv.ParseUint(cfHex[i:i+2], 16, 8)
		if err != nil {
			return ""
		}
		b.WriteByte(byte(v) ^ byte(key))
	}
	return b.String()
}

// FindEmails harvests syntactically valid email addresses from free text,
// preserving first-seen order.
func FindEmails(text string) []string {
	found := emailaddress.Find([]byte(text), false)
	out := make([]string, 0, len(found))
	for _, e := range found {
		out = append(out, e.String())
	}
	return DedupePreserveOrder(out)
}

// DedupePreserveOrder trims each item and removes empties and duplicates
// while keeping first-seen order.
func DedupePreserveOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
