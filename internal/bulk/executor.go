package bulk

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/workflow"
)

// Dispatcher performs one remote action call for one entity.
type Dispatcher interface {
	Dispatch(ctx context.Context, entity models.WorkflowEntity, op workflow.Operation, input models.ActionInput) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, entity models.WorkflowEntity, op workflow.Operation, input models.ActionInput) error

func (f DispatcherFunc) Dispatch(ctx context.Context, entity models.WorkflowEntity, op workflow.Operation, input models.ActionInput) error {
	return f(ctx, entity, op, input)
}

// Plan is a validated bulk run ready to execute.
type Plan struct {
	Entity    models.EntityType
	Action    models.ActionID
	Status    models.Status
	Category  models.Category
	Input     models.ActionInput
	Operation workflow.Operation
	Items     []models.WorkflowEntity
}

// Prepare validates a selection for one action. Any failure blocks the
// whole run and nothing is dispatched.
func Prepare(ctx context.Context, reg *workflow.Registry, sel *Selection, action models.ActionID, input models.ActionInput) (*Plan, error) {
	status, category, ok := sel.Locked()
	if !ok {
		return nil, &workflow.ValidationError{Field: "items", Message: "select at least one item", Err: workflow.ErrEmptySelection}
	}
	items := sel.Items()
	op, err := reg.Check(ctx, items[0], action, input)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Entity:    sel.Entity(),
		Action:    action,
		Status:    status,
		Category:  category,
		Input:     input,
		Operation: op,
		Items:     items,
	}, nil
}

// Failure is one entity the backend did not accept.
type Failure struct {
	Entity  models.WorkflowEntity `json:"entity"`
	Kind    backend.ErrorKind     `json:"kind"`
	Message string                `json:"message"`
}

// Result partitions a finished run. Both slices keep selection order.
type Result struct {
	Succeeded []models.WorkflowEntity `json:"succeeded"`
	Failed    []Failure               `json:"failed"`
}

// Progress is reported after every item.
type Progress struct {
	Processed int
	Total     int
	Succeeded int
	Failed    int
	Current   models.WorkflowEntity
	Err       error
	Elapsed   time.Duration
}

// ProgressFunc observes a run item by item. It is called synchronously
// from the executing goroutine.
type ProgressFunc func(Progress)

type Executor struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewExecutor(dispatcher Dispatcher, logger *zap.Logger) *Executor {
	return &Executor{dispatcher: dispatcher, logger: logger}
}

// Run dispatches the plan one item at a time in selection order. A failed
// item never stops the run, and once started the run ignores cancellation
// of ctx.
func (e *Executor) Run(ctx context.Context, plan *Plan, progress ProgressFunc) Result {
	ctx = context.WithoutCancel(ctx)
	result := Result{
		Succeeded: []models.WorkflowEntity{},
		Failed:    []Failure{},
	}
	total := len(plan.Items)

	for i, item := range plan.Items {
		start := time.Now()
		err := e.dispatcher.Dispatch(ctx, item, plan.Operation, plan.Input)
		if err != nil {
			f := Failure{Entity: item, Kind: backend.KindOf(err), Message: err.Error()}
			if f.Kind == "" {
				f.Kind = backend.KindNetwork
				var verr *workflow.ValidationError
				if errors.As(err, &verr) {
					f.Kind = backend.KindRejected
				}
			}
			result.Failed = append(result.Failed, f)
			e.logger.Info("bulk item failed",
				zap.String("entity", string(plan.Entity)),
				zap.String("action", string(plan.Action)),
				zap.String("entity_id", item.ID),
				zap.Int("position", i+1),
				zap.Int("total", total),
				zap.String("kind", string(f.Kind)),
				zap.String("message", f.Message),
			)
		} else {
			result.Succeeded = append(result.Succeeded, item)
		}

		if progress != nil {
			progress(Progress{
				Processed: i + 1,
				Total:     total,
				Succeeded: len(result.Succeeded),
				Failed:    len(result.Failed),
				Current:   item,
				Err:       err,
				Elapsed:   time.Since(start),
			})
		}
	}
	return result
}
