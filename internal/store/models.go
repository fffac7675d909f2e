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

package store

// Run state constants
const (
	RunStateInProgress = "in_progress"
	RunStateCompleted  = "completed"
	RunStateFailed     = "failed"
)

// Run represents a single enrichment run over an input file
type Run struct {
	ID           uint   `gorm:"primaryKey"`
	InputPath    string `gorm:"not null"`
	Mode         string `gorm:"not null;default:'auto'"` // starting mode: auto or manual
	State        string `gorm:"not null;default:'in_progress'"`
	TotalRecords int    `gorm:"not null;default:0"`
	Processed    int    `gorm:"not null;default:0"`
	Enriched     int    `gorm:"not null;default:0"`
	Skipped      int    `gorm:"not null;default:0"`
	GatesSeen    int    `gorm:"not null;default:0"`
	StartedAt    int64  `gorm:"not null"`
	FinishedAt   int64
	Outcomes     []RecordOutcome `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	GateEvents   []GateEvent     `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt    int64           `gorm:"autoCreateTime"`
	UpdatedAt    int64           `gorm:"autoUpdateTime"`
}

// Record outcome constants
const (
	OutcomeEnriched = "enriched" // detail page confirmed and fields written
	OutcomeSkipped  = "skipped"  // invalid name, composite name, or operator skip
	OutcomeError    = "error"    // record-level failure, run continued
)

// RecordOutcome represents what happened to one input row during a run
type RecordOutcome struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       uint   `gorm:"not null;index"`
	RecordIndex int    `gorm:"not null"`
	FirstName   string `gorm:"type:text"`
	LastName    string `gorm:"type:text"`
	Outcome     string `gorm:"not null"`
	Detail      string `gorm:"type:text"` // human-readable reason for skips and errors
	PageURL     string `gorm:"type:text"` // detail page the fields came from
	Manual      bool   `gorm:"not null;default:false"` // record went through the manual flow
	PhonesFound int    `gorm:"not null;default:0"`
	EmailsFound int    `gorm:"not null;default:0"`
	CreatedAt   int64  `gorm:"autoCreateTime"`
	UpdatedAt   int64  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for RecordOutcome
func (RecordOutcome) TableName() string {
	return "record_outcomes"
}

// GateEvent represents one anti-bot gate encountered during a run
type GateEvent struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       uint   `gorm:"not null;index"`
	RecordIndex int    `gorm:"not null"`
	URL         string `gorm:"type:text"`
	State       string `gorm:"not null"` // challenge or blocked
	Cleared     bool   `gorm:"not null;default:false"`
	CreatedAt   int64  `gorm:"autoCreateTime"`
}
