package task

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
)

// healthCheckTask probes the trading engine and issues at most one
// recovery start call when the engine should be active but is not. A
// failed recovery is a failure outcome; the next scheduled health check
// is the retry mechanism.
type healthCheckTask struct {
	deps Deps
}

func (t *healthCheckTask) Name() model.TaskName {
	return model.TaskSystemHealthCheck
}

func (t *healthCheckTask) run(ctx context.Context, inv *model.Invocation) {
	cfg := t.deps.Config.Current()
	if d := gating.Check(cfg, model.CategoryMaintenance, false, t.deps.Now(), t.deps.Hours); !d.Allowed {
		skip(inv, d.Reason)
		return
	}

	if t.deps.Metrics != nil {
		host := t.deps.Metrics.Collect()
		t.deps.Logger.Info("Host metrics",
			zap.Float64("cpu_percent", host.CPUPercent),
			zap.Float64("memory_percent", host.MemoryPercent))
	}

	if err := t.deps.Service.Ping(ctx); err != nil {
		t.recover(ctx, inv, "liveness probe failed")
		return
	}

	status, err := t.deps.Service.BotStatus(ctx)
	if err != nil {
		fail(inv, "status: %v", err)
		return
	}
	if status.NeedsRecovery() {
		t.recover(ctx, inv, "service should be active but is "+status.Status)
		return
	}

	succeed(inv, "service healthy, status %q", status.Status)
}

// recover issues exactly one start call. No further retry happens within
// this invocation.
func (t *healthCheckTask) recover(ctx context.Context, inv *model.Invocation, why string) {
	t.deps.Logger.Warn("Attempting service recovery", zap.String("reason", why))
	if err := t.deps.Service.Start(ctx); err != nil {
		fail(inv, "%s; recovery start failed: %v", why, err)
		return
	}
	succeed(inv, "%s; recovery start issued", why)
}
