package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BotStatus is the dependent trading engine's self-reported state.
// DesiredStatus tells the health check what the engine is supposed to be
// doing; a mismatch triggers a single recovery attempt.
type BotStatus struct {
	Status        string `json:"status"`
	DesiredStatus string `json:"desiredStatus"`
}

// BotStatusActive is the only status under which trading cycles run.
const BotStatusActive = "active"

// Active reports whether the engine is currently trading.
func (s BotStatus) Active() bool {
	return s.Status == BotStatusActive
}

// NeedsRecovery reports whether the engine should be trading but is not.
func (s BotStatus) NeedsRecovery() bool {
	return s.DesiredStatus == BotStatusActive && s.Status != BotStatusActive
}

// PerformanceSummary aggregates the trading engine's P&L figures.
type PerformanceSummary struct {
	TotalPnL      decimal.Decimal `json:"totalPnl"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	WinRate       decimal.Decimal `json:"winRate"`
	TradeCount    int             `json:"tradeCount"`
}

// Position is one open position held by the trading engine.
type Position struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	MarkPrice  decimal.Decimal `json:"markPrice"`
	OpenedAt   time.Time       `json:"openedAt"`
}

// Trade is one closed trade from the engine's recent history.
type Trade struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	PnL      decimal.Decimal `json:"pnl"`
	ClosedAt time.Time       `json:"closedAt"`
}

// Report is the artifact written after a successful report run.
type Report struct {
	Kind        string             `json:"kind"`
	GeneratedAt time.Time          `json:"generated_at"`
	Performance PerformanceSummary `json:"performance"`
	Positions   []Position         `json:"positions"`
	Trades      []Trade            `json:"trades"`
}
