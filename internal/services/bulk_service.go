package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/bulk"
	"github.com/tunebridge/console/internal/database"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/repository"
	"github.com/tunebridge/console/internal/workflow"
)

var ErrTooManyItems = errors.New("bulk selection exceeds the configured maximum")

// ProgressStore keeps the live progress of running bulk runs.
type ProgressStore interface {
	SetBulkProgress(ctx context.Context, p models.BulkProgress, expiration time.Duration) error
	GetBulkProgress(ctx context.Context, runID uuid.UUID) (*models.BulkProgress, error)
}

type BulkService interface {
	Start(ctx context.Context, actor Actor, req *models.BulkRunRequest) (*models.BulkRun, error)
	Progress(ctx context.Context, runID uuid.UUID) (*models.BulkProgress, error)
	Get(ctx context.Context, runID uuid.UUID) (*models.BulkRunResponse, error)
	List(ctx context.Context, filter *models.BulkRunFilter) ([]models.BulkRun, int64, error)
	// Wait blocks until every run started by this service has finished.
	Wait()
}

type bulkService struct {
	registry    *workflow.Registry
	workflows   WorkflowService
	repo        repository.BulkRunRepository
	progress    ProgressStore
	progressTTL time.Duration
	maxItems    int
	logger      *zap.Logger
	wg          sync.WaitGroup
}

func NewBulkService(
	registry *workflow.Registry,
	workflows WorkflowService,
	repo repository.BulkRunRepository,
	progress ProgressStore,
	progressTTL time.Duration,
	maxItems int,
	logger *zap.Logger,
) BulkService {
	return &bulkService{
		registry:    registry,
		workflows:   workflows,
		repo:        repo,
		progress:    progress,
		progressTTL: progressTTL,
		maxItems:    maxItems,
		logger:      logger,
	}
}

// Start validates the whole selection up front and, if it is legal, records
// the run and executes it in the background. Nothing is dispatched when
// validation fails.
func (s *bulkService) Start(ctx context.Context, actor Actor, req *models.BulkRunRequest) (*models.BulkRun, error) {
	entityType, err := models.ParseEntityType(req.EntityType)
	if err != nil {
		return nil, &workflow.ValidationError{Field: "entity_type", Message: err.Error(), Err: workflow.ErrUnknownEntity}
	}
	if s.maxItems > 0 && len(req.Items) > s.maxItems {
		return nil, &workflow.ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("at most %d items can be processed in one run", s.maxItems),
			Err:     ErrTooManyItems,
		}
	}

	m, err := s.registry.Machine(entityType)
	if err != nil {
		return nil, err
	}
	action := models.ParseActionID(req.Action)
	input := models.ActionInput{Reason: req.Reason, AdminNotes: req.AdminNotes, Payload: req.Payload}
	if r, err := m.ActionRequirement(action); err == nil {
		input = withOperatorFields(r, input, actor)
	}

	sel := bulk.NewSelection(entityType)
	for _, ref := range req.Items {
		e := ref.Entity(entityType)
		if e.Category, err = models.ParseCategory(entityType, string(ref.Category)); err != nil {
			return nil, &workflow.ValidationError{Field: "items", Message: err.Error(), Err: workflow.ErrMixedSelection}
		}
		if err := sel.Add(e); err != nil {
			return nil, &workflow.ValidationError{
				Field:   "items",
				Message: "all selected items must share one status and category",
				Err:     err,
			}
		}
	}

	plan, err := bulk.Prepare(ctx, s.registry, sel, action, input)
	if err != nil {
		return nil, err
	}

	run := &models.BulkRun{
		EntityType: plan.Entity,
		Action:     plan.Action,
		FromStatus: plan.Status,
		Category:   plan.Category,
		Reason:     plan.Input.Reason,
		State:      models.BulkRunRunning,
		Total:      len(plan.Items),
		OperatorID: actor.OperatorID(),
		StartedAt:  time.Now(),
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record bulk run: %w", err)
	}

	s.saveProgress(ctx, models.BulkProgress{RunID: run.ID, State: models.BulkRunRunning, Total: run.Total})

	s.logger.Info("bulk run started",
		zap.String("run_id", run.ID.String()),
		zap.String("entity", string(run.EntityType)),
		zap.String("action", string(run.Action)),
		zap.Int("total", run.Total),
		zap.String("operator_id", run.OperatorID),
	)

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(bg, actor, run, plan)
	}()

	return run, nil
}

func (s *bulkService) execute(ctx context.Context, actor Actor, run *models.BulkRun, plan *bulk.Plan) {
	executor := bulk.NewExecutor(s.workflows.BulkDispatcher(actor, run.ID), s.logger)

	result := executor.Run(ctx, plan, func(p bulk.Progress) {
		item := &models.BulkRunItem{
			RunID:      run.ID,
			Position:   p.Processed,
			EntityID:   p.Current.ID,
			EntityName: p.Current.Name,
			Outcome:    models.BulkItemSucceeded,
		}
		if p.Err != nil {
			item.Outcome = models.BulkItemFailed
			item.ErrorKind = string(errorKind(p.Err))
			item.ErrorMessage = p.Err.Error()
		}
		if err := s.repo.AddItem(ctx, item); err != nil {
			s.logger.Error("failed to record bulk item",
				zap.String("run_id", run.ID.String()),
				zap.String("entity_id", item.EntityID),
				zap.Error(err),
			)
		}
		s.saveProgress(ctx, models.BulkProgress{
			RunID:     run.ID,
			State:     models.BulkRunRunning,
			Processed: p.Processed,
			Total:     p.Total,
			Succeeded: p.Succeeded,
			Failed:    p.Failed,
			Current:   p.Current.ID,
		})
	})

	succeeded, failed := len(result.Succeeded), len(result.Failed)
	if err := s.repo.Complete(ctx, run.ID, succeeded, failed); err != nil {
		s.logger.Error("failed to complete bulk run", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	s.saveProgress(ctx, models.BulkProgress{
		RunID:     run.ID,
		State:     models.BulkRunCompleted,
		Processed: run.Total,
		Total:     run.Total,
		Succeeded: succeeded,
		Failed:    failed,
	})

	s.logger.Info("bulk run completed",
		zap.String("run_id", run.ID.String()),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
}

func (s *bulkService) saveProgress(ctx context.Context, p models.BulkProgress) {
	if s.progress == nil {
		return
	}
	if err := s.progress.SetBulkProgress(ctx, p, s.progressTTL); err != nil {
		s.logger.Warn("failed to store bulk progress", zap.String("run_id", p.RunID.String()), zap.Error(err))
	}
}

// Progress reads live progress, falling back to the recorded run once the
// progress entry has expired.
func (s *bulkService) Progress(ctx context.Context, runID uuid.UUID) (*models.BulkProgress, error) {
	if s.progress != nil {
		p, err := s.progress.GetBulkProgress(ctx, runID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			s.logger.Warn("failed to read bulk progress", zap.String("run_id", runID.String()), zap.Error(err))
		}
	}

	run, err := s.repo.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &models.BulkProgress{
		RunID:     run.ID,
		State:     run.State,
		Processed: len(run.Items),
		Total:     run.Total,
		Succeeded: run.Succeeded,
		Failed:    run.Failed,
	}, nil
}

func (s *bulkService) Get(ctx context.Context, runID uuid.UUID) (*models.BulkRunResponse, error) {
	run, err := s.repo.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	resp := models.ToBulkRunResponse(run)
	return &resp, nil
}

func (s *bulkService) List(ctx context.Context, filter *models.BulkRunFilter) ([]models.BulkRun, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

func (s *bulkService) Wait() { s.wg.Wait() }
