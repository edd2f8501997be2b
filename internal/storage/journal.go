package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/model"
)

// InvocationJournal persists one row per task invocation. The scheduler
// itself keeps no history; the journal exists for the dashboard's
// /history surface and is pruned by the cleanup task.
type InvocationJournal struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewInvocationJournal opens (or creates) the journal database at dbPath.
func NewInvocationJournal(logger *zap.Logger, dbPath string) (*InvocationJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	j := &InvocationJournal{
		logger: logger.Named("journal"),
		db:     db,
	}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *InvocationJournal) initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			trig TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT,
			skip_reason TEXT,
			error TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_invocations_task ON invocations(task);
		CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize journal database: %w", err)
	}
	return nil
}

// Record stores one completed invocation.
func (j *InvocationJournal) Record(ctx context.Context, inv *model.Invocation) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO invocations (
			id, task, trig, outcome, message, skip_reason, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		string(inv.Task),
		string(inv.Trigger),
		string(inv.Outcome),
		sql.NullString{String: inv.Message, Valid: inv.Message != ""},
		sql.NullString{String: inv.SkipReason, Valid: inv.SkipReason != ""},
		sql.NullString{String: inv.Error, Valid: inv.Error != ""},
		inv.StartedAt,
		inv.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record invocation: %w", err)
	}
	return nil
}

// List returns the most recent invocations, newest first, optionally
// filtered by task name.
func (j *InvocationJournal) List(ctx context.Context, task model.TaskName, limit int) ([]*model.Invocation, error) {
	query := `
		SELECT id, task, trig, outcome, message, skip_reason, error, started_at, finished_at
		FROM invocations`
	args := make([]interface{}, 0, 2)
	if task != "" {
		query += " WHERE task = ?"
		args = append(args, string(task))
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer rows.Close()

	var out []*model.Invocation
	for rows.Next() {
		inv := &model.Invocation{}
		var message, skipReason, errStr sql.NullString
		if err := rows.Scan(
			&inv.ID,
			&inv.Task,
			&inv.Trigger,
			&inv.Outcome,
			&message,
			&skipReason,
			&errStr,
			&inv.StartedAt,
			&inv.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		inv.Message = message.String
		inv.SkipReason = skipReason.String
		inv.Error = errStr.String
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// DeleteBefore prunes invocations started before the given time.
func (j *InvocationJournal) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := j.db.ExecContext(ctx, "DELETE FROM invocations WHERE started_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune invocations: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		j.logger.Info("Pruned old invocations",
			zap.Time("before", before),
			zap.Int64("deleted", affected))
	}
	return affected, nil
}

// Close closes the underlying database.
func (j *InvocationJournal) Close() error {
	return j.db.Close()
}
