// Package gating holds the pure predicates consulted before any
// time-sensitive task body runs. A false gate yields a skipped outcome,
// never an error.
package gating

import (
	"fmt"
	"time"

	"github.com/quantdeck/tradesched/internal/model"
)

// MarketHours bounds the local trading window. Close is exclusive: the
// market counts as closed at exactly the close hour.
type MarketHours struct {
	OpenHour  int
	CloseHour int
}

// Decision is the result of evaluating all gates applicable to a task.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the decision for a task with every gate passing.
var Allow = Decision{Allowed: true}

// Skip builds a blocking decision carrying the specific reason, so the
// log line can tell category-disabled apart from market-closed.
func Skip(reason string) Decision {
	return Decision{Reason: reason}
}

// IsMarketOpen reports whether the local wall clock falls inside the
// trading window: Monday through Friday, open hour inclusive, close hour
// exclusive. Holidays are not accounted for; the check is deliberately a
// simple local-time approximation.
func IsMarketOpen(now time.Time, hours MarketHours) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := now.Hour()
	return h >= hours.OpenHour && h < hours.CloseHour
}

// Check composes all gates applicable to a task: the category flag, and
// the market-hours window when the task is market-time sensitive. Every
// gate must pass; the first failing gate determines the skip reason.
func Check(cfg model.ScheduleConfig, cat model.Category, marketSensitive bool, now time.Time, hours MarketHours) Decision {
	if !cfg.CategoryEnabled(cat) {
		return Skip(fmt.Sprintf("category %s disabled", cat))
	}
	if marketSensitive && !IsMarketOpen(now, hours) {
		return Skip("market closed")
	}
	return Allow
}
