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

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRun creates a new run for an input file
func (s *Store) CreateRun(inputPath, mode string, totalRecords int) (*Run, error) {
	run := Run{
		InputPath:    inputPath,
		Mode:         mode,
		State:        RunStateInProgress,
		TotalRecords: totalRecords,
		StartedAt:    time.Now().Unix(),
	}
	if err := s.db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to create run: %v", err)
	}
	return &run, nil
}

// FinishRun marks a run completed or failed and stores the final counters
func (s *Store) FinishRun(runID uint, state string, processed, enriched, skipped, gatesSeen int) error {
	return s.db.Model(&Run{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"state":       state,
		"processed":   processed,
		"enriched":    enriched,
		"skipped":     skipped,
		"gates_seen":  gatesSeen,
		"finished_at": time.Now().Unix(),
	}).Error
}

// GetRunByID gets a run by ID
func (s *Store) GetRunByID(id uint) (*Run, error) {
	var run Run
	result := s.db.First(&run, id)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get run: %v", result.Error)
	}
	return &run, nil
}

// ListRuns returns all runs, newest first
func (s *Store) ListRuns() ([]Run, error) {
	var runs []Run
	result := s.db.Order("started_at DESC").Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list runs: %v", result.Error)
	}
	return runs, nil
}

// GetLatestRun gets the most recent run, nil when the journal is empty
func (s *Store) GetLatestRun() (*Run, error) {
	var run Run
	result := s.db.Order("started_at DESC").First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run: %v", result.Error)
	}
	return &run, nil
}

// SaveRecordOutcome upserts the outcome for one record of a run. Records
// that go through auto then manual end up with a single row reflecting the
// final outcome.
func (s *Store) SaveRecordOutcome(o *RecordOutcome) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}, {Name: "record_index"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "last_name", "outcome", "detail", "page_url",
			"manual", "phones_found", "emails_found", "updated_at",
		}),
	}).Create(o).Error
}

// GetRunOutcomes returns all record outcomes for a run in record order
func (s *Store) GetRunOutcomes(runID uint) ([]RecordOutcome, error) {
	var outcomes []RecordOutcome
	result := s.db.Where("run_id = ?", runID).Order("record_index ASC").Find(&outcomes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get run outcomes: %v", result.Error)
	}
	return outcomes, nil
}

// SaveGateEvent records one anti-bot gate encounter
func (s *Store) SaveGateEvent(runID uint, recordIndex int, url, state string, cleared bool) error {
	event := GateEvent{
		RunID:       runID,
		RecordIndex: recordIndex,
		URL:         url,
		State:       state,
		Cleared:     cleared,
	}
	return s.db.Create(&event).Error
}

// GetRunGateEvents returns all gate events for a run in order
func (s *Store) GetRunGateEvents(runID uint) ([]GateEvent, error) {
	var events []GateEvent
	result := s.db.Where("run_id = ?", runID).Order("id ASC").Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get gate events: %v", result.Error)
	}
	return events, nil
}
