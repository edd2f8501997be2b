package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantdeck/tradesched/internal/model"
)

func newTestJournal(t *testing.T) *InvocationJournal {
	t.Helper()
	journal, err := NewInvocationJournal(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "invocations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return journal
}

func record(t *testing.T, journal *InvocationJournal, task model.TaskName, outcome model.OutcomeStatus, startedAt time.Time) *model.Invocation {
	t.Helper()
	inv := &model.Invocation{
		ID:         uuid.NewString(),
		Task:       task,
		Trigger:    model.TriggerScheduled,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Second),
		Outcome:    outcome,
		Message:    "done",
	}
	require.NoError(t, journal.Record(context.Background(), inv))
	return inv
}

func TestJournalRecordAndList(t *testing.T) {
	journal := newTestJournal(t)
	base := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)

	record(t, journal, model.TaskRunTradingCycle, model.OutcomeSuccess, base)
	record(t, journal, model.TaskUpdateMarketData, model.OutcomeSkipped, base.Add(time.Minute))
	newest := record(t, journal, model.TaskRunTradingCycle, model.OutcomeFailure, base.Add(2*time.Minute))

	t.Run("all tasks newest first", func(t *testing.T) {
		got, err := journal.List(context.Background(), "", 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, newest.ID, got[0].ID)
	})

	t.Run("filter by task", func(t *testing.T) {
		got, err := journal.List(context.Background(), model.TaskUpdateMarketData, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, model.TaskUpdateMarketData, got[0].Task)
		assert.Equal(t, model.OutcomeSkipped, got[0].Outcome)
	})

	t.Run("limit applies", func(t *testing.T) {
		got, err := journal.List(context.Background(), "", 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestJournalDeleteBefore(t *testing.T) {
	journal := newTestJournal(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	record(t, journal, model.TaskRunTradingCycle, model.OutcomeSuccess, base)
	record(t, journal, model.TaskRunTradingCycle, model.OutcomeSuccess, base.AddDate(0, 0, 40))

	deleted, err := journal.DeleteBefore(context.Background(), base.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := journal.List(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
