package task

import (
	"context"
	"fmt"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
)

// tradingCycleTask triggers one trading cycle on the engine, but only
// when the engine reports itself active. A paused or unreachable engine
// is a skip, not a failure; retrying against a deliberately paused
// service would only produce noise.
type tradingCycleTask struct {
	deps Deps
}

func (t *tradingCycleTask) Name() model.TaskName {
	return model.TaskRunTradingCycle
}

func (t *tradingCycleTask) run(ctx context.Context, inv *model.Invocation) {
	cfg := t.deps.Config.Current()
	if d := gating.Check(cfg, model.CategoryTradingCycles, false, t.deps.Now(), t.deps.Hours); !d.Allowed {
		skip(inv, d.Reason)
		return
	}

	status, err := t.deps.Service.BotStatus(ctx)
	if err != nil {
		skip(inv, fmt.Sprintf("bot status unavailable: %v", err))
		return
	}
	if !status.Active() {
		skip(inv, fmt.Sprintf("bot status %q, not active", status.Status))
		return
	}

	if err := t.deps.Service.RunCycle(ctx); err != nil {
		fail(inv, "run-cycle: %v", err)
		return
	}
	succeed(inv, "trading cycle completed")
}
