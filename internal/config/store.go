package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/model"
)

// ErrInvalidConfigShape is returned when a merge document is not a flat
// JSON object or names a key the schedule config does not have.
var ErrInvalidConfigShape = errors.New("invalid config shape")

// ErrPersist is returned when a merged config cannot be written to stable
// storage. The in-memory config is rolled back.
var ErrPersist = errors.New("failed to persist config")

// scheduleKeys is the set of top-level keys a merge document may carry.
var scheduleKeys = map[string]struct{}{
	"marketDataIntervalMinutes": {},
	"tradingCycleMorning":       {},
	"tradingCycleEvening":       {},
	"additionalTradingCycles":   {},
	"dailyReport":               {},
	"weeklyReport":              {},
	"dataCleanup":               {},
	"systemHealthCheck":         {},
	"enabled":                   {},
}

// Store owns the process-wide ScheduleConfig: it loads the persisted
// document over compiled-in defaults at boot, serves read snapshots, and
// persists every successful merge atomically.
type Store struct {
	logger *zap.Logger
	path   string

	mu       sync.RWMutex
	cfg      model.ScheduleConfig
	onChange []func(model.ScheduleConfig)
}

// NewStore creates a store backed by the JSON document at path. The file
// does not have to exist yet.
func NewStore(logger *zap.Logger, path string) *Store {
	return &Store{
		logger: logger.Named("config"),
		path:   path,
		cfg:    model.DefaultScheduleConfig(),
	}
}

// OnChange registers a hook invoked synchronously after every successful
// merge, before Merge returns. The scheduler registers its rebuild here.
func (s *Store) OnChange(fn func(model.ScheduleConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Load reads the persisted document and overlays it onto the defaults.
// A missing file is written immediately so it always exists after first
// boot. A document that cannot be parsed or validated is logged and
// ignored; the process continues on defaults rather than crashing.
func (s *Store) Load() model.ScheduleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = model.DefaultScheduleConfig()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := s.persistLocked(); werr != nil {
				s.logger.Error("Failed to write default config", zap.Error(werr))
			} else {
				s.logger.Info("Wrote default config", zap.String("path", s.path))
			}
			return s.cfg.Clone()
		}
		s.logger.Error("Failed to read config, using defaults",
			zap.String("path", s.path),
			zap.Error(err))
		return s.cfg.Clone()
	}

	merged, err := overlay(s.cfg, data)
	if err != nil {
		s.logger.Error("Invalid persisted config, using defaults",
			zap.String("path", s.path),
			zap.Error(err))
		return s.cfg.Clone()
	}

	s.cfg = merged
	s.logger.Info("Loaded config", zap.String("path", s.path))
	return s.cfg.Clone()
}

// Current returns a snapshot of the effective config.
func (s *Store) Current() model.ScheduleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Merge shallow-merges the partial document onto the current config:
// every top-level key present in the partial fully replaces the current
// value for that key, absent keys keep their values. On success the
// result is persisted and every on-change hook runs before Merge
// returns. Hooks run under the store's lock so concurrent merges apply
// their rebuilds in merge order; hooks must not call back into the
// store.
func (s *Store) Merge(partial []byte) (model.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := overlay(s.cfg, partial)
	if err != nil {
		return model.ScheduleConfig{}, err
	}

	prev := s.cfg
	s.cfg = merged
	if err := s.persistLocked(); err != nil {
		s.cfg = prev
		return model.ScheduleConfig{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	s.logger.Info("Merged config update", zap.Int("bytes", len(partial)))
	snapshot := s.cfg.Clone()
	for _, fn := range s.onChange {
		fn(snapshot)
	}
	return snapshot, nil
}

// overlay applies a flat partial document on top of base and validates
// the result. The partial must be a JSON object and may only name known
// schedule keys.
func overlay(base model.ScheduleConfig, partial []byte) (model.ScheduleConfig, error) {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(partial, &patch); err != nil {
		return model.ScheduleConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfigShape, err)
	}
	// A JSON null unmarshals into a nil map without error.
	if patch == nil {
		return model.ScheduleConfig{}, fmt.Errorf("%w: document must be a JSON object", ErrInvalidConfigShape)
	}
	for key := range patch {
		if _, ok := scheduleKeys[key]; !ok {
			return model.ScheduleConfig{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfigShape, key)
		}
	}

	current, err := json.Marshal(base)
	if err != nil {
		return model.ScheduleConfig{}, fmt.Errorf("failed to marshal config: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(current, &doc); err != nil {
		return model.ScheduleConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	for key, value := range patch {
		doc[key] = value
	}

	combined, err := json.Marshal(doc)
	if err != nil {
		return model.ScheduleConfig{}, fmt.Errorf("failed to encode config: %w", err)
	}
	var merged model.ScheduleConfig
	if err := json.Unmarshal(combined, &merged); err != nil {
		return model.ScheduleConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfigShape, err)
	}
	if err := merged.Validate(); err != nil {
		return model.ScheduleConfig{}, err
	}
	return merged, nil
}

// persistLocked writes the current config atomically: temp file in the
// same directory, then rename. Callers hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".schedule-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}
