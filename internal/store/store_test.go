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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreForTesting(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return s
}

func TestCreateAndFinishRun(t *testing.T) {
	s := newTestStore(t)

	run, err := s.CreateRun("/data/leads.csv", "auto", 100)
	require.NoError(t, err)
	assert.NotZero(t, run.ID)
	assert.Equal(t, RunStateInProgress, run.State)
	assert.Equal(t, 100, run.TotalRecords)
	assert.NotZero(t, run.StartedAt)

	err = s.FinishRun(run.ID, RunStateCompleted, 100, 80, 15, 2)
	require.NoError(t, err)

	got, err := s.GetRunByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStateCompleted, got.State)
	assert.Equal(t, 80, got.Enriched)
	assert.Equal(t, 15, got.Skipped)
	assert.Equal(t, 2, got.GatesSeen)
	assert.NotZero(t, got.FinishedAt)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateRun("/data/a.csv", "auto", 10)
	require.NoError(t, err)
	// Same StartedAt resolution is possible; force distinct ordering.
	require.NoError(t, s.DB().Model(first).Update("started_at", first.StartedAt-60).Error)
	second, err := s.CreateRun("/data/b.csv", "manual", 20)
	require.NoError(t, err)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	latest, err := s.GetLatestRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}

func TestGetLatestRunEmpty(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.GetLatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSaveRecordOutcomeUpsert(t *testing.T) {
	s := newTestStore(t)
	run, err := s.CreateRun("/data/leads.csv", "auto", 5)
	require.NoError(t, err)

	err = s.SaveRecordOutcome(&RecordOutcome{
		RunID:       run.ID,
		RecordIndex: 0,
		FirstName:   "John",
		LastName:    "Smith",
		Outcome:     OutcomeError,
		Detail:      "challenge not cleared in time",
	})
	require.NoError(t, err)

	// Re-processing the same record replaces the outcome instead of
	// inserting a second row.
	err = s.SaveRecordOutcome(&RecordOutcome{
		RunID:       run.ID,
		RecordIndex: 0,
		FirstName:   "John",
		LastName:    "Smith",
		Outcome:     OutcomeEnriched,
		Manual:      true,
		PhonesFound: 3,
		EmailsFound: 1,
		PageURL:     "https://www.fastpeoplesearch.com/person/john-smith/1",
	})
	require.NoError(t, err)

	outcomes, err := s.GetRunOutcomes(run.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeEnriched, outcomes[0].Outcome)
	assert.True(t, outcomes[0].Manual)
	assert.Equal(t, 3, outcomes[0].PhonesFound)
}

func TestGetRunOutcomesOrder(t *testing.T) {
	s := newTestStore(t)
	run, err := s.CreateRun("/data/leads.csv", "auto", 5)
	require.NoError(t, err)

	for _, idx := range []int{2, 0, 1} {
		require.NoError(t, s.SaveRecordOutcome(&RecordOutcome{
			RunID:       run.ID,
			RecordIndex: idx,
			Outcome:     OutcomeSkipped,
		}))
	}

	outcomes, err := s.GetRunOutcomes(run.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, i, o.RecordIndex)
	}
}

func TestGateEvents(t *testing.T) {
	s := newTestStore(t)
	run, err := s.CreateRun("/data/leads.csv", "auto", 5)
	require.NoError(t, err)

	require.NoError(t, s.SaveGateEvent(run.ID, 0, "https://example.com/q1", "challenge", true))
	require.NoError(t, s.SaveGateEvent(run.ID, 1, "https://example.com/q2", "challenge", false))

	events, err := s.GetRunGateEvents(run.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Cleared)
	assert.False(t, events[1].Cleared)
	assert.Equal(t, 1, events[1].RecordIndex)

	// Events scoped per run.
	other, err := s.CreateRun("/data/other.csv", "auto", 1)
	require.NoError(t, err)
	events, err = s.GetRunGateEvents(other.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}
