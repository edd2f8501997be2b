package task

import (
	"context"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
)

type reportKind string

const (
	reportKindDaily  reportKind = "daily"
	reportKindWeekly reportKind = "weekly"
)

// historyDays is how far back each report kind reaches.
var historyDays = map[reportKind]int{
	reportKindDaily:  1,
	reportKindWeekly: 7,
}

// reportTask aggregates performance, open positions and recent trade
// history into one artifact. There are no partial reports: if any
// constituent call fails the whole task fails, naming the sub-call, and
// no artifact is written.
type reportTask struct {
	deps Deps
	kind reportKind
}

func (t *reportTask) Name() model.TaskName {
	if t.kind == reportKindWeekly {
		return model.TaskGenerateWeeklyReport
	}
	return model.TaskGenerateDailyReport
}

func (t *reportTask) run(ctx context.Context, inv *model.Invocation) {
	cfg := t.deps.Config.Current()
	if d := gating.Check(cfg, model.CategoryReports, false, t.deps.Now(), t.deps.Hours); !d.Allowed {
		skip(inv, d.Reason)
		return
	}

	performance, err := t.deps.Service.Performance(ctx)
	if err != nil {
		fail(inv, "performance: %v", err)
		return
	}
	positions, err := t.deps.Service.ActivePositions(ctx)
	if err != nil {
		fail(inv, "positions: %v", err)
		return
	}
	trades, err := t.deps.Service.TradeHistory(ctx, historyDays[t.kind])
	if err != nil {
		fail(inv, "history: %v", err)
		return
	}

	now := t.deps.Now()
	report := &model.Report{
		Kind:        string(t.kind),
		GeneratedAt: now,
		Performance: performance,
		Positions:   positions,
		Trades:      trades,
	}

	var path string
	if t.kind == reportKindWeekly {
		path, err = t.deps.Artifacts.WriteWeeklyReport(now, report)
	} else {
		path, err = t.deps.Artifacts.WriteDailyReport(now, report)
	}
	if err != nil {
		fail(inv, "artifact: %v", err)
		return
	}
	succeed(inv, "%s report written to %s", t.kind, path)
}
