package task

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/model"
)

// Handler is one named, idempotent, independently invocable task. Each
// handler fills in the outcome of the invocation it is given and never
// lets an error escape.
type Handler interface {
	Name() model.TaskName
	run(ctx context.Context, inv *model.Invocation)
}

// Registry is the fixed catalog of task handlers, keyed by name. Unknown
// names are rejected at the lookup boundary.
type Registry struct {
	logger   *zap.Logger
	deps     Deps
	handlers map[model.TaskName]Handler
}

// NewRegistry builds the catalog with all six handlers registered.
func NewRegistry(deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Logger = deps.Logger.Named("task")

	r := &Registry{
		logger:   deps.Logger,
		deps:     deps,
		handlers: make(map[model.TaskName]Handler),
	}
	for _, h := range []Handler{
		&marketDataTask{deps: deps},
		&tradingCycleTask{deps: deps},
		&reportTask{deps: deps, kind: reportKindDaily},
		&reportTask{deps: deps, kind: reportKindWeekly},
		&cleanupTask{deps: deps},
		&healthCheckTask{deps: deps},
	} {
		r.handlers[h.Name()] = h
	}
	return r
}

// Lookup resolves a task name, returning ErrTaskNotFound for anything
// outside the catalog.
func (r *Registry) Lookup(name model.TaskName) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return h, nil
}

// Names lists the registered task names in stable order.
func (r *Registry) Names() []model.TaskName {
	names := make([]model.TaskName, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Run dispatches one invocation of the named task. The only error it can
// return is ErrTaskNotFound; everything that happens inside the handler
// is converted to the invocation's outcome.
func (r *Registry) Run(ctx context.Context, name model.TaskName, trigger model.Trigger) (*model.Invocation, error) {
	h, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	inv := &model.Invocation{
		ID:        uuid.NewString(),
		Task:      name,
		Trigger:   trigger,
		StartedAt: r.deps.Now(),
	}
	h.run(ctx, inv)
	inv.FinishedAt = r.deps.Now()

	r.finish(ctx, inv)
	return inv, nil
}

// finish emits the invocation's log line and journal row. Neither may
// fail the invocation itself.
func (r *Registry) finish(ctx context.Context, inv *model.Invocation) {
	fields := []zap.Field{
		zap.String("task", string(inv.Task)),
		zap.String("trigger", string(inv.Trigger)),
		zap.String("outcome", string(inv.Outcome)),
		zap.Duration("duration", inv.Duration()),
	}
	switch inv.Outcome {
	case model.OutcomeFailure:
		r.logger.Error("Task failed", append(fields, zap.String("error", inv.Error))...)
	case model.OutcomeSkipped:
		r.logger.Info("Task skipped", append(fields, zap.String("reason", inv.SkipReason))...)
	default:
		r.logger.Info("Task completed", append(fields, zap.String("message", inv.Message))...)
	}

	if r.deps.Artifacts != nil {
		line := fmt.Sprintf("%s (%s) %s", inv.Task, inv.Trigger, inv.Outcome)
		switch inv.Outcome {
		case model.OutcomeFailure:
			line += ": " + inv.Error
		case model.OutcomeSkipped:
			line += ": " + inv.SkipReason
		default:
			if inv.Message != "" {
				line += ": " + inv.Message
			}
		}
		if err := r.deps.Artifacts.AppendLog(inv.StartedAt, line); err != nil {
			r.logger.Warn("Failed to append task log line", zap.Error(err))
		}
	}

	if r.deps.Journal != nil {
		if err := r.deps.Journal.Record(ctx, inv); err != nil {
			r.logger.Warn("Failed to record invocation", zap.Error(err))
		}
	}
}

// succeed and fail are the handlers' outcome helpers.

func succeed(inv *model.Invocation, format string, args ...interface{}) {
	inv.Outcome = model.OutcomeSuccess
	inv.Message = fmt.Sprintf(format, args...)
}

func skip(inv *model.Invocation, reason string) {
	inv.Outcome = model.OutcomeSkipped
	inv.SkipReason = reason
}

func fail(inv *model.Invocation, format string, args ...interface{}) {
	inv.Outcome = model.OutcomeFailure
	inv.Error = fmt.Sprintf(format, args...)
}
