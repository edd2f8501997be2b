package model

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Category identifies a group of tasks that can be enabled or disabled
// together at runtime.
type Category string

const (
	CategoryMarketData    Category = "marketData"
	CategoryTradingCycles Category = "tradingCycles"
	CategoryReports       Category = "reports"
	CategoryMaintenance   Category = "maintenance"
)

// Categories lists every known task category.
var Categories = []Category{
	CategoryMarketData,
	CategoryTradingCycles,
	CategoryReports,
	CategoryMaintenance,
}

// ScheduleConfig is the runtime-mutable scheduling document. There is
// exactly one instance per process; it is persisted as a flat JSON object
// and mutated only through the management API.
type ScheduleConfig struct {
	MarketDataIntervalMinutes int               `json:"marketDataIntervalMinutes"`
	TradingCycleMorning       string            `json:"tradingCycleMorning"`
	TradingCycleEvening       string            `json:"tradingCycleEvening"`
	AdditionalTradingCycles   []string          `json:"additionalTradingCycles"`
	DailyReport               string            `json:"dailyReport"`
	WeeklyReport              string            `json:"weeklyReport"`
	DataCleanup               string            `json:"dataCleanup"`
	SystemHealthCheck         string            `json:"systemHealthCheck"`
	Enabled                   map[Category]bool `json:"enabled"`
}

// DefaultScheduleConfig returns the compiled-in schedule. Persisted
// documents are overlaid on top of this at load time.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		MarketDataIntervalMinutes: 15,
		TradingCycleMorning:       "0 10 * * 1-5",
		TradingCycleEvening:       "0 14 * * 1-5",
		AdditionalTradingCycles:   []string{},
		DailyReport:               "30 16 * * 1-5",
		WeeklyReport:              "0 17 * * 5",
		DataCleanup:               "0 1 * * 0",
		SystemHealthCheck:         "*/30 * * * *",
		Enabled: map[Category]bool{
			CategoryMarketData:    true,
			CategoryTradingCycles: true,
			CategoryReports:       true,
			CategoryMaintenance:   true,
		},
	}
}

// Validate checks every cron expression against the standard 5-field
// parser and rejects a non-positive market-data interval. Invalid
// expressions fail here, at load or merge time, rather than silently
// never firing.
func (c *ScheduleConfig) Validate() error {
	if c.MarketDataIntervalMinutes <= 0 {
		return fmt.Errorf("marketDataIntervalMinutes must be positive, got %d", c.MarketDataIntervalMinutes)
	}

	exprs := map[string]string{
		"tradingCycleMorning": c.TradingCycleMorning,
		"tradingCycleEvening": c.TradingCycleEvening,
		"dailyReport":         c.DailyReport,
		"weeklyReport":        c.WeeklyReport,
		"dataCleanup":         c.DataCleanup,
		"systemHealthCheck":   c.SystemHealthCheck,
	}
	for field, expr := range exprs {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid cron expression for %s: %w", field, err)
		}
	}
	for i, expr := range c.AdditionalTradingCycles {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid cron expression for additionalTradingCycles[%d]: %w", i, err)
		}
	}

	for _, cat := range Categories {
		if _, ok := c.Enabled[cat]; !ok {
			return fmt.Errorf("enabled is missing category %q", cat)
		}
	}
	return nil
}

// Clone returns a deep copy so in-flight task invocations keep the
// snapshot they captured at dispatch.
func (c ScheduleConfig) Clone() ScheduleConfig {
	out := c
	if c.AdditionalTradingCycles != nil {
		out.AdditionalTradingCycles = append([]string{}, c.AdditionalTradingCycles...)
	}
	out.Enabled = make(map[Category]bool, len(c.Enabled))
	for k, v := range c.Enabled {
		out.Enabled[k] = v
	}
	return out
}

// CategoryEnabled reports whether a task category is switched on.
// Categories absent from the map count as disabled.
func (c *ScheduleConfig) CategoryEnabled(cat Category) bool {
	return c.Enabled[cat]
}
