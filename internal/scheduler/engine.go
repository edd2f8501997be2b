package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
	"github.com/quantdeck/tradesched/internal/task"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// Job describes one active timer binding a cron expression to a task.
type Job struct {
	Task       model.TaskName `json:"task"`
	Expression string         `json:"expression"`
	NextRun    time.Time      `json:"next_run"`

	entryID cron.EntryID
}

// Engine owns the active timer set. The set is pure runtime state,
// reconstructible from the schedule config at any time: Rebuild tears the
// whole set down and recreates it from the given config.
type Engine struct {
	logger   *zap.Logger
	registry *task.Registry
	hours    gating.MarketHours

	mu   sync.Mutex
	cron *cron.Cron
	jobs []Job
}

// NewEngine creates an engine with no active timers. Call Rebuild once at
// startup and again after every successful config merge.
func NewEngine(logger *zap.Logger, registry *task.Registry, hours gating.MarketHours) *Engine {
	return &Engine{
		logger:   logger.Named("scheduler"),
		registry: registry,
		hours:    hours,
	}
}

// Rebuild cancels every active timer and creates one timer per cron field
// in the config, plus a derived market-data timer that only fires inside
// the market-hours window. The new set is built before the old one is
// stopped, so a failing build leaves the previous timers running. Rebuild
// calls are serialized; in-flight task invocations are not awaited.
func (e *Engine) Rebuild(cfg model.ScheduleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := cron.New(cron.WithChain(cron.Recover(&cronLogger{logger: e.logger.Named("cron")})))

	type binding struct {
		task model.TaskName
		expr string
	}
	bindings := []binding{
		{model.TaskUpdateMarketData, marketDataExpr(cfg.MarketDataIntervalMinutes, e.hours)},
		{model.TaskRunTradingCycle, cfg.TradingCycleMorning},
		{model.TaskRunTradingCycle, cfg.TradingCycleEvening},
	}
	for _, expr := range cfg.AdditionalTradingCycles {
		bindings = append(bindings, binding{model.TaskRunTradingCycle, expr})
	}
	bindings = append(bindings,
		binding{model.TaskGenerateDailyReport, cfg.DailyReport},
		binding{model.TaskGenerateWeeklyReport, cfg.WeeklyReport},
		binding{model.TaskCleanupHistoricalData, cfg.DataCleanup},
		binding{model.TaskSystemHealthCheck, cfg.SystemHealthCheck},
	)

	jobs := make([]Job, 0, len(bindings))
	for _, b := range bindings {
		name := b.task
		entryID, err := next.AddFunc(b.expr, func() {
			e.dispatch(name)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", b.task, b.expr, err)
		}
		jobs = append(jobs, Job{
			Task:       b.task,
			Expression: b.expr,
			entryID:    entryID,
		})
	}

	if e.cron != nil {
		e.cron.Stop()
	}
	e.cron = next
	e.jobs = jobs
	e.cron.Start()

	for _, j := range jobs {
		e.logger.Info("Scheduled task",
			zap.String("task", string(j.Task)),
			zap.String("expression", j.Expression),
			zap.Time("next_run", e.cron.Entry(j.entryID).Next))
	}
	return nil
}

// Shutdown cancels all timers. Idempotent. In-flight invocations run to
// completion on their own goroutines and are not awaited.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cron == nil {
		return
	}
	e.cron.Stop()
	e.cron = nil
	e.jobs = nil
	e.logger.Info("Scheduler stopped")
}

// Jobs snapshots the active timer set for the status endpoint.
func (e *Engine) Jobs() []Job {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Job, len(e.jobs))
	for i, j := range e.jobs {
		out[i] = j
		if e.cron != nil {
			out[i].NextRun = e.cron.Entry(j.entryID).Next
		}
	}
	return out
}

// dispatch fires one scheduled invocation on its own goroutine so timer
// goroutines never block on a task body, and timers that fire at the same
// instant stay independent.
func (e *Engine) dispatch(name model.TaskName) {
	go func() {
		if _, err := e.registry.Run(context.Background(), name, model.TriggerScheduled); err != nil {
			e.logger.Error("Failed to dispatch scheduled task",
				zap.String("task", string(name)),
				zap.Error(err))
		}
	}()
}

// marketDataExpr derives the market-data refresh expression from the
// interval and the market-hours bound, so the timer itself only fires
// inside the window. GatingPolicy still checks again at run time.
func marketDataExpr(intervalMinutes int, hours gating.MarketHours) string {
	return fmt.Sprintf("*/%d %d-%d * * 1-5", intervalMinutes, hours.OpenHour, hours.CloseHour-1)
}
