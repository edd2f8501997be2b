package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/model"
)

// dateToken matches artifact names carrying a calendar-date token, e.g.
// cron-2020-01-01.log or daily-report-2020-01-01.json. Names that do not
// match are never touched by the retention sweep.
var dateToken = regexp.MustCompile(`^[a-z][a-z-]*-(\d{4}-\d{2}-\d{2})\.(?:log|json)$`)

// weeklyPrefix marks weekly report artifacts, which are exempt from the
// retention sweep regardless of age.
const weeklyPrefix = "weekly-report-"

// ArtifactStore writes the engine's append-only daily log files and
// write-once report documents into a single data directory, and runs the
// retention sweep over that directory.
type ArtifactStore struct {
	logger *zap.Logger
	dir    string
}

// NewArtifactStore creates the data directory if needed.
func NewArtifactStore(logger *zap.Logger, dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &ArtifactStore{
		logger: logger.Named("artifacts"),
		dir:    dir,
	}, nil
}

// Dir returns the artifact directory path.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// AppendLog appends one line to the current day's log file.
func (s *ArtifactStore) AppendLog(now time.Time, line string) error {
	name := fmt.Sprintf("cron-%s.log", now.Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "[%s] %s\n", now.Format(time.RFC3339), line); err != nil {
		return fmt.Errorf("failed to append log line: %w", err)
	}
	return nil
}

// WriteDailyReport serializes one daily report artifact keyed by calendar
// date.
func (s *ArtifactStore) WriteDailyReport(now time.Time, report *model.Report) (string, error) {
	name := fmt.Sprintf("daily-report-%s.json", now.Format("2006-01-02"))
	return s.writeReport(name, report)
}

// WriteWeeklyReport serializes one weekly report artifact keyed by ISO
// week. Weekly reports survive the retention sweep.
func (s *ArtifactStore) WriteWeeklyReport(now time.Time, report *model.Report) (string, error) {
	year, week := now.ISOWeek()
	name := fmt.Sprintf("weekly-report-%d-Week%02d.json", year, week)
	return s.writeReport(name, report)
}

func (s *ArtifactStore) writeReport(name string, report *model.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	s.logger.Info("Wrote report artifact", zap.String("file", name))
	return path, nil
}

// Sweep deletes artifacts whose embedded date token is older than the
// retention window. Weekly reports and any file whose name does not carry
// a recognizable date token are left untouched.
func (s *ArtifactStore) Sweep(now time.Time, retention time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	cutoff := now.Add(-retention)
	var deleted []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, weeklyPrefix) {
			continue
		}
		m := dateToken.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", m[1], now.Location())
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("Failed to delete expired artifact",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		deleted = append(deleted, name)
	}

	if len(deleted) > 0 {
		s.logger.Info("Swept expired artifacts",
			zap.Int("deleted", len(deleted)),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
