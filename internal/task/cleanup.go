package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
)

// artifactRetention is the fixed window after which dated log and daily
// report artifacts are swept. Weekly reports are exempt.
const artifactRetention = 30 * 24 * time.Hour

// cleanupTask sweeps expired artifacts and prunes the invocation journal
// over the same window.
type cleanupTask struct {
	deps Deps
}

func (t *cleanupTask) Name() model.TaskName {
	return model.TaskCleanupHistoricalData
}

func (t *cleanupTask) run(ctx context.Context, inv *model.Invocation) {
	cfg := t.deps.Config.Current()
	if d := gating.Check(cfg, model.CategoryMaintenance, false, t.deps.Now(), t.deps.Hours); !d.Allowed {
		skip(inv, d.Reason)
		return
	}

	now := t.deps.Now()
	deleted, err := t.deps.Artifacts.Sweep(now, artifactRetention)
	if err != nil {
		fail(inv, "sweep: %v", err)
		return
	}

	if t.deps.Journal != nil {
		if _, err := t.deps.Journal.DeleteBefore(ctx, now.Add(-artifactRetention)); err != nil {
			// Journal pruning is best effort; the artifact sweep already
			// succeeded.
			t.deps.Logger.Warn("Failed to prune invocation journal", zap.Error(err))
		}
	}

	succeed(inv, "deleted %d expired artifacts", len(deleted))
}
