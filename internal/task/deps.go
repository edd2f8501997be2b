package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/gating"
	"github.com/quantdeck/tradesched/internal/model"
	"github.com/quantdeck/tradesched/internal/monitor"
	"github.com/quantdeck/tradesched/internal/storage"
)

// TradingAPI is the slice of the dependent trading engine's surface the
// task handlers consume. *service.Client implements it; tests substitute
// a recording stub.
type TradingAPI interface {
	TrackedSymbols(ctx context.Context) ([]string, error)
	RefreshMarketData(ctx context.Context, symbols []string) error
	BotStatus(ctx context.Context) (model.BotStatus, error)
	RunCycle(ctx context.Context) error
	Performance(ctx context.Context) (model.PerformanceSummary, error)
	ActivePositions(ctx context.Context) ([]model.Position, error)
	TradeHistory(ctx context.Context, days int) ([]model.Trade, error)
	Ping(ctx context.Context) error
	Start(ctx context.Context) error
}

// ConfigSource yields the schedule config snapshot a dispatching
// invocation captures. In-flight invocations keep their snapshot even if
// the config is merged underneath them.
type ConfigSource interface {
	Current() model.ScheduleConfig
}

// Deps carries everything a task handler needs. Journal and Metrics are
// optional; a nil value disables that concern.
type Deps struct {
	Logger    *zap.Logger
	Service   TradingAPI
	Config    ConfigSource
	Artifacts *storage.ArtifactStore
	Journal   *storage.InvocationJournal
	Metrics   *monitor.Collector
	Hours     gating.MarketHours

	// Now is the clock; defaults to time.Now. Tests pin it.
	Now func() time.Time
}
