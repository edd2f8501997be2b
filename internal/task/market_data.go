package task

import (
	"context"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
)

// marketDataTask refreshes quotes for every tracked symbol in one batched
// call. It only runs while the market is open.
type marketDataTask struct {
	deps Deps
}

func (t *marketDataTask) Name() model.TaskName {
	return model.TaskUpdateMarketData
}

func (t *marketDataTask) run(ctx context.Context, inv *model.Invocation) {
	cfg := t.deps.Config.Current()
	if d := gating.Check(cfg, model.CategoryMarketData, true, t.deps.Now(), t.deps.Hours); !d.Allowed {
		skip(inv, d.Reason)
		return
	}

	symbols, err := t.deps.Service.TrackedSymbols(ctx)
	if err != nil {
		fail(inv, "symbols: %v", err)
		return
	}
	if len(symbols) == 0 {
		// An empty watchlist is a legitimate state, not a failure.
		succeed(inv, "no tracked symbols, nothing to refresh")
		return
	}

	if err := t.deps.Service.RefreshMarketData(ctx, symbols); err != nil {
		fail(inv, "refresh: %v", err)
		return
	}
	succeed(inv, "refreshed market data for %d symbols", len(symbols))
}
