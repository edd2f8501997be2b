package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantdeck/tradesched/internal/model"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.json")
	return NewStore(zaptest.NewLogger(t), path), path
}

func TestLoadWritesDefaultsWhenFileAbsent(t *testing.T) {
	store, path := newTestStore(t)

	cfg := store.Load()
	assert.Equal(t, model.DefaultScheduleConfig(), cfg)

	// The document must exist after first boot.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk model.ScheduleConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, cfg.MarketDataIntervalMinutes, onDisk.MarketDataIntervalMinutes)
}

func TestLoadOverlaysPersistedDocument(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"marketDataIntervalMinutes": 5, "dailyReport": "0 18 * * 1-5"}`), 0o644))

	cfg := store.Load()
	assert.Equal(t, 5, cfg.MarketDataIntervalMinutes)
	assert.Equal(t, "0 18 * * 1-5", cfg.DailyReport)
	// Keys absent from the document keep their defaults.
	assert.Equal(t, model.DefaultScheduleConfig().WeeklyReport, cfg.WeeklyReport)
}

func TestLoadFallsBackToDefaultsOnGarbage(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	cfg := store.Load()
	assert.Equal(t, model.DefaultScheduleConfig(), cfg)
}

func TestLoadFallsBackToDefaultsOnInvalidCron(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"dailyReport": "not a cron"}`), 0o644))

	cfg := store.Load()
	assert.Equal(t, model.DefaultScheduleConfig(), cfg)
}

func TestMergeShallowMergeInvariant(t *testing.T) {
	store, _ := newTestStore(t)
	store.Load()

	merged, err := store.Merge([]byte(`{"marketDataIntervalMinutes": 30, "additionalTradingCycles": ["0 12 * * 1-5"]}`))
	require.NoError(t, err)

	// Every key of the partial is reflected.
	assert.Equal(t, 30, merged.MarketDataIntervalMinutes)
	assert.Equal(t, []string{"0 12 * * 1-5"}, merged.AdditionalTradingCycles)

	// Every key not in the partial is retained.
	defaults := model.DefaultScheduleConfig()
	assert.Equal(t, defaults.TradingCycleMorning, merged.TradingCycleMorning)
	assert.Equal(t, defaults.Enabled, merged.Enabled)

	// Current reflects the merge.
	assert.Equal(t, merged, store.Current())
}

func TestMergeReplacesCompositeKeysWholesale(t *testing.T) {
	store, _ := newTestStore(t)
	store.Load()

	// Top-level keys fully replace; this is not a deep recursive merge,
	// so a partial enabled map must carry every category.
	_, err := store.Merge([]byte(`{"enabled": {"marketData": false}}`))
	require.Error(t, err)

	merged, err := store.Merge([]byte(`{"enabled": {"marketData": false, "tradingCycles": true, "reports": true, "maintenance": true}}`))
	require.NoError(t, err)
	assert.False(t, merged.Enabled[model.CategoryMarketData])
	assert.True(t, merged.Enabled[model.CategoryTradingCycles])
}

func TestMergeRejectsBadShapes(t *testing.T) {
	store, _ := newTestStore(t)
	store.Load()
	before := store.Current()

	tests := []struct {
		name    string
		partial string
	}{
		{"array", `["not", "an", "object"]`},
		{"scalar", `42`},
		{"null", `null`},
		{"unknown key", `{"noSuchField": 1}`},
		{"wrong value type", `{"marketDataIntervalMinutes": "often"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Merge([]byte(tt.partial))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfigShape)
			// Config unchanged on rejection.
			assert.Equal(t, before, store.Current())
		})
	}
}

func TestMergeRejectsInvalidValues(t *testing.T) {
	store, _ := newTestStore(t)
	store.Load()

	_, err := store.Merge([]byte(`{"marketDataIntervalMinutes": 0}`))
	require.Error(t, err)

	_, err = store.Merge([]byte(`{"weeklyReport": "every friday-ish"}`))
	require.Error(t, err)
}

func TestMergePersistsAndNotifies(t *testing.T) {
	store, path := newTestStore(t)
	store.Load()

	var notified []model.ScheduleConfig
	store.OnChange(func(cfg model.ScheduleConfig) {
		notified = append(notified, cfg)
	})

	merged, err := store.Merge([]byte(`{"marketDataIntervalMinutes": 7}`))
	require.NoError(t, err)

	// The hook ran synchronously before Merge returned.
	require.Len(t, notified, 1)
	assert.Equal(t, merged, notified[0])

	// The document on disk reflects the merge.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk model.ScheduleConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, 7, onDisk.MarketDataIntervalMinutes)
}

func TestConcurrentMergesNotifyInMergeOrder(t *testing.T) {
	store, _ := newTestStore(t)
	store.Load()

	// Hooks run under the store's lock, so whichever merge commits last
	// also notifies last; the final observation can never be staler than
	// Current().
	var observed []int
	store.OnChange(func(cfg model.ScheduleConfig) {
		observed = append(observed, cfg.MarketDataIntervalMinutes)
		time.Sleep(time.Millisecond)
	})

	var wg sync.WaitGroup
	for _, interval := range []int{11, 22, 33, 44} {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Merge([]byte(fmt.Sprintf(`{"marketDataIntervalMinutes": %d}`, n)))
			assert.NoError(t, err)
		}(interval)
	}
	wg.Wait()

	require.Len(t, observed, 4)
	assert.Equal(t, store.Current().MarketDataIntervalMinutes, observed[len(observed)-1])
}

func TestCurrentReturnsSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	store.Load()

	snap := store.Current()
	snap.Enabled[model.CategoryReports] = false
	snap.MarketDataIntervalMinutes = 1

	assert.True(t, store.Current().Enabled[model.CategoryReports])
	assert.Equal(t, model.DefaultScheduleConfig().MarketDataIntervalMinutes, store.Current().MarketDataIntervalMinutes)
}
