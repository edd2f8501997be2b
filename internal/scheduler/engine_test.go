package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
	"github.com/quantdeck/tradesched/internal/storage"
	"github.com/quantdeck/tradesched/internal/task"
)

type noopService struct{}

func (noopService) TrackedSymbols(ctx context.Context) ([]string, error)       { return nil, nil }
func (noopService) RefreshMarketData(ctx context.Context, s []string) error    { return nil }
func (noopService) BotStatus(ctx context.Context) (model.BotStatus, error)     { return model.BotStatus{}, nil }
func (noopService) RunCycle(ctx context.Context) error                         { return nil }
func (noopService) Performance(ctx context.Context) (model.PerformanceSummary, error) {
	return model.PerformanceSummary{}, nil
}
func (noopService) ActivePositions(ctx context.Context) ([]model.Position, error) { return nil, nil }
func (noopService) TradeHistory(ctx context.Context, days int) ([]model.Trade, error) {
	return nil, nil
}
func (noopService) Ping(ctx context.Context) error  { return nil }
func (noopService) Start(ctx context.Context) error { return nil }

type staticConfig struct {
	cfg model.ScheduleConfig
}

func (s staticConfig) Current() model.ScheduleConfig { return s.cfg.Clone() }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	artifacts, err := storage.NewArtifactStore(zaptest.NewLogger(t), t.TempDir())
	require.NoError(t, err)

	registry := task.NewRegistry(task.Deps{
		Logger:    zaptest.NewLogger(t),
		Service:   noopService{},
		Config:    staticConfig{cfg: model.DefaultScheduleConfig()},
		Artifacts: artifacts,
		Hours:     gating.MarketHours{OpenHour: 9, CloseHour: 16},
	})
	engine := NewEngine(zaptest.NewLogger(t), registry, gating.MarketHours{OpenHour: 9, CloseHour: 16})
	t.Cleanup(engine.Shutdown)
	return engine
}

func taskCounts(jobs []Job) map[model.TaskName]int {
	counts := make(map[model.TaskName]int)
	for _, j := range jobs {
		counts[j.Task]++
	}
	return counts
}

func TestRebuildCreatesOneTimerPerSchedule(t *testing.T) {
	engine := newTestEngine(t)
	cfg := model.DefaultScheduleConfig()

	require.NoError(t, engine.Rebuild(cfg))

	jobs := engine.Jobs()
	// market data + morning + evening + daily + weekly + cleanup + health
	require.Len(t, jobs, 7)
	counts := taskCounts(jobs)
	assert.Equal(t, 1, counts[model.TaskUpdateMarketData])
	assert.Equal(t, 2, counts[model.TaskRunTradingCycle])
	assert.Equal(t, 1, counts[model.TaskGenerateDailyReport])
	assert.Equal(t, 1, counts[model.TaskGenerateWeeklyReport])
	assert.Equal(t, 1, counts[model.TaskCleanupHistoricalData])
	assert.Equal(t, 1, counts[model.TaskSystemHealthCheck])

	for _, j := range jobs {
		assert.False(t, j.NextRun.IsZero(), "job %s has no next fire time", j.Task)
	}
}

func TestRebuildIsIdempotentForIdenticalConfig(t *testing.T) {
	engine := newTestEngine(t)
	cfg := model.DefaultScheduleConfig()

	require.NoError(t, engine.Rebuild(cfg))
	require.NoError(t, engine.Rebuild(cfg))

	// Exactly one active timer per configured schedule; nothing leaked.
	assert.Len(t, engine.Jobs(), 7)
}

func TestRebuildPicksUpAdditionalCycles(t *testing.T) {
	engine := newTestEngine(t)
	cfg := model.DefaultScheduleConfig()
	cfg.AdditionalTradingCycles = []string{"0 12 * * 1-5", "30 13 * * 1-5"}

	require.NoError(t, engine.Rebuild(cfg))

	jobs := engine.Jobs()
	assert.Len(t, jobs, 9)
	assert.Equal(t, 4, taskCounts(jobs)[model.TaskRunTradingCycle])
}

func TestRebuildDerivesMarketDataWindow(t *testing.T) {
	engine := newTestEngine(t)
	cfg := model.DefaultScheduleConfig()
	cfg.MarketDataIntervalMinutes = 5

	require.NoError(t, engine.Rebuild(cfg))

	var expr string
	for _, j := range engine.Jobs() {
		if j.Task == model.TaskUpdateMarketData {
			expr = j.Expression
		}
	}
	// The derived timer only fires inside market hours on weekdays.
	assert.Equal(t, "*/5 9-15 * * 1-5", expr)
}

func TestRebuildFailureKeepsOldTimerSet(t *testing.T) {
	engine := newTestEngine(t)
	good := model.DefaultScheduleConfig()
	require.NoError(t, engine.Rebuild(good))

	bad := model.DefaultScheduleConfig()
	bad.DailyReport = "definitely not cron"
	require.Error(t, engine.Rebuild(bad))

	// The previous timers keep running.
	assert.Len(t, engine.Jobs(), 7)
}

func TestShutdownIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.Rebuild(model.DefaultScheduleConfig()))

	engine.Shutdown()
	assert.Empty(t, engine.Jobs())
	engine.Shutdown()
	assert.Empty(t, engine.Jobs())
}

func TestMarketDataExpr(t *testing.T) {
	hours := gating.MarketHours{OpenHour: 9, CloseHour: 16}
	assert.Equal(t, "*/15 9-15 * * 1-5", marketDataExpr(15, hours))
	assert.Equal(t, "*/1 9-15 * * 1-5", marketDataExpr(1, hours))

	// The derived timer never fires outside the window.
	spec, err := cron.ParseStandard(marketDataExpr(15, hours))
	require.NoError(t, err)
	fridayLate := time.Date(2024, 1, 5, 15, 50, 0, 0, time.UTC)
	next := spec.Next(fridayLate)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
}
