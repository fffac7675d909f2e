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
	"strings"
	"testing"
)

func TestSanitizeNamePart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John", "John"},
		{"Mary Jane", "Mary-Jane"},
		{"O'Brien", "OBrien"},
		{"Anne-Marie", "Anne-Marie"},
		{"  Smith Jr. ", "Smith-Jr"},
		{"José", "Jos"},
		{"", ""},
		{"123", ""},
	}
	for _, tt := range tests {
		if got := SanitizeNamePart(tt.in); got != tt.want {
			t.Errorf("SanitizeNamePart(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCityStateSlug(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"123 Main St, Miami, FL", "Miami-FL"},
		{"123 Main St, Miami, FL, 33101", "Miami-FL"},
		{"456 Oak Ave, New York, NY", "New-York-NY"},
		{"789 Pine Rd, winter park, fl", "winter-park-FL"},
		{"no commas here", ""},
		{"just one, comma", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CityStateSlug(tt.address); got != tt.want {
			t.Errorf("CityStateSlug(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestSearchLocation(t *testing.T) {
	tests := []struct {
		name    string
		address string
		zip     string
		want    string
	}{
		{"zip wins over address", "123 Main St, Miami, FL", "90210", "90210"},
		{"long zip truncated", "", "33101-4455", "33101"},
		{"address fallback", "123 Main St, Miami, FL", "", "Miami-FL"},
		{"nothing usable", "no location", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchLocation(tt.address, tt.zip); got != tt.want {
				t.Errorf("SearchLocation(%q, %q) = %q, want %q", tt.address, tt.zip, got, tt.want)
			}
		})
	}
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("", "John", "Smith", "", "33101")
	want := DefaultBaseURL + "/name/John-Smith_33101"
	if got != want {
		t.Errorf("SearchURL = %q, want %q", got, want)
	}
}

func TestSearchURLWithoutLocation(t *testing.T) {
	// No usable location still yields a well-formed site-wide search.
	got := SearchURL("", "John", "Smith", "nowhere", "")
	if !strings.HasSuffix(got, "/name/John-Smith_") {
		t.Errorf("SearchURL without location = %q, want trailing underscore form", got)
	}
}

func TestSearchURLIsTotal(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  string
	}{
		{"empty names", "", ""},
		{"punctuation only", "!!!", "###"},
		{"unicode", "Renée", "Müller"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchURL("", tt.first, tt.last, "", "")
			if !strings.HasPrefix(got, DefaultBaseURL+"/name/") {
				t.Errorf("SearchURL(%q, %q) = %q, want prefix %s/name/", tt.first, tt.last, got, DefaultBaseURL)
			}
		})
	}
}

func TestLooksLikeCompositeName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"John Smith", false},
		{"John & Jane Smith", true},
		{"John and Jane Smith", true},
		{"Smith Family Revocable Trust", true},
		{"Acme Holdings LLC", true},
		{"Anderson Inc", true},
		{"Sanderson", false},
		{"Andy", false},
	}
	for _, tt := range tests {
		if got := LooksLikeCompositeName(tt.in); got != tt.want {
			t.Errorf("LooksLikeCompositeName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
