package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/bulk"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/query"
	"github.com/tunebridge/console/internal/workflow"
)

// Backend is the subset of the distribution backend client the services
// depend on.
type Backend interface {
	List(ctx context.Context, token, family string, params models.ListParams) (*backend.RawPage, error)
	Get(ctx context.Context, token, family, id string) (json.RawMessage, error)
	Dispatch(ctx context.Context, token string, op workflow.Operation, id string, body backend.ActionBody) (json.RawMessage, error)
	GetReleasePage(ctx context.Context, token string, page, limit int) (*models.ReleasePage, error)
}

// ListCache holds short-lived list pages per operator.
type ListCache interface {
	CachedList(ctx context.Context, operatorID, key string) (*models.EntityPage, error)
	CacheList(ctx context.Context, operatorID, key string, page *models.EntityPage, expiration time.Duration) error
	InvalidateLists(ctx context.Context, operatorID string) error
}

// AvailableAction is one legal action with what it needs from the operator.
type AvailableAction struct {
	Action      models.ActionID      `json:"action"`
	Requirement workflow.Requirement `json:"requirement"`
	Target      models.Status        `json:"target"`
	Method      string               `json:"method"`
	Path        string               `json:"path"`
}

// ActionResult is the outcome of a single action. After a rejection Entity
// holds the refreshed backend state so the view can redraw its actions.
type ActionResult struct {
	Action models.ActionID        `json:"action"`
	Entity *models.WorkflowEntity `json:"entity,omitempty"`
}

type WorkflowService interface {
	Machine(entity models.EntityType) (*workflow.Machine, error)
	List(ctx context.Context, actor Actor, state query.State) (*models.EntityPage, error)
	Get(ctx context.Context, actor Actor, entity models.EntityType, category models.Category, id string) (*models.WorkflowEntity, error)
	AvailableActions(ctx context.Context, entity models.WorkflowEntity) ([]AvailableAction, error)
	Execute(ctx context.Context, actor Actor, entity models.WorkflowEntity, action models.ActionID, input models.ActionInput) (*ActionResult, error)
	// BulkDispatcher dispatches items of a bulk run on behalf of actor.
	// Legality and input were checked once for the whole run.
	BulkDispatcher(actor Actor, runID uuid.UUID) bulk.Dispatcher
}

type workflowService struct {
	registry *workflow.Registry
	backend  Backend
	cache    ListCache
	cacheTTL time.Duration
	logs     ActionLogService
	flights  singleflight.Group
	logger   *zap.Logger
}

func NewWorkflowService(registry *workflow.Registry, be Backend, cache ListCache, cacheTTL time.Duration, logs ActionLogService, logger *zap.Logger) WorkflowService {
	return &workflowService{
		registry: registry,
		backend:  be,
		cache:    cache,
		cacheTTL: cacheTTL,
		logs:     logs,
		logger:   logger,
	}
}

func (s *workflowService) Machine(entity models.EntityType) (*workflow.Machine, error) {
	return s.registry.Machine(entity)
}

// List returns one page from the backend. Pagination is relayed exactly as
// the backend reported it.
func (s *workflowService) List(ctx context.Context, actor Actor, state query.State) (*models.EntityPage, error) {
	m, err := s.registry.Machine(state.Entity)
	if err != nil {
		return nil, err
	}
	if state.Category == "" {
		state.Category = models.Categories(state.Entity)[0]
	}
	family, err := m.Family(state.Category)
	if err != nil {
		return nil, err
	}

	key := state.Key()
	if s.cache != nil {
		if page, err := s.cache.CachedList(ctx, actor.OperatorID(), key); err == nil {
			return page, nil
		}
	}

	raw, err := s.backend.List(ctx, actor.Token(), family, state.Params())
	if err != nil {
		return nil, err
	}
	page, err := backend.DecodePage(state.Entity, state.Category, raw)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.CacheList(ctx, actor.OperatorID(), key, page, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache list page", zap.String("key", key), zap.Error(err))
		}
	}
	return page, nil
}

func (s *workflowService) Get(ctx context.Context, actor Actor, entity models.EntityType, category models.Category, id string) (*models.WorkflowEntity, error) {
	m, err := s.registry.Machine(entity)
	if err != nil {
		return nil, err
	}
	family, err := m.Family(category)
	if err != nil {
		return nil, err
	}
	raw, err := s.backend.Get(ctx, actor.Token(), family, id)
	if err != nil {
		return nil, err
	}
	e, err := backend.DecodeEntity(entity, category, raw)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *workflowService) AvailableActions(ctx context.Context, entity models.WorkflowEntity) ([]AvailableAction, error) {
	m, err := s.registry.Machine(entity.Type)
	if err != nil {
		return nil, err
	}
	actions, err := m.LegalActions(ctx, entity.Position(), entity.Category)
	if err != nil {
		return nil, err
	}

	out := make([]AvailableAction, 0, len(actions))
	for _, a := range actions {
		req, err := m.ActionRequirement(a)
		if err != nil {
			return nil, err
		}
		op, err := m.ResolveOperation(a, entity.Category)
		if err != nil {
			return nil, err
		}
		target, _ := m.Target(entity.Position(), entity.Category, a)
		out = append(out, AvailableAction{
			Action:      a,
			Requirement: req,
			Target:      target,
			Method:      op.Method,
			Path:        op.Path(entity.ID),
		})
	}
	return out, nil
}

// Execute validates and dispatches one action. Concurrent submissions of
// the same action on the same entity by the same operator with the same
// input share a single backend call.
func (s *workflowService) Execute(ctx context.Context, actor Actor, entity models.WorkflowEntity, action models.ActionID, input models.ActionInput) (*ActionResult, error) {
	m, err := s.registry.Machine(entity.Type)
	if err != nil {
		return nil, err
	}
	req, err := m.ActionRequirement(action)
	if err != nil {
		return nil, err
	}
	input = withOperatorFields(req, input, actor)

	op, err := s.registry.Check(ctx, entity, action, input)
	if err != nil {
		return nil, err
	}

	key := flightKey(actor, entity, action, input)
	v, err, shared := s.flights.Do(key, func() (interface{}, error) {
		return s.dispatch(context.WithoutCancel(ctx), actor, entity, op, input, nil)
	})
	if shared {
		s.logger.Debug("collapsed duplicate action submission", zap.String("key", key))
	}
	result, _ := v.(*ActionResult)
	return result, err
}

// flightKey identifies a submission. Input is hashed through its JSON form,
// which orders payload keys.
func flightKey(actor Actor, entity models.WorkflowEntity, action models.ActionID, input models.ActionInput) string {
	body, _ := json.Marshal(input)
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%s:%s:%s:%s:%s", entity.Type, entity.ID, action, actor.OperatorID(), hex.EncodeToString(sum[:8]))
}

func (s *workflowService) dispatch(ctx context.Context, actor Actor, entity models.WorkflowEntity, op workflow.Operation, input models.ActionInput, runID *uuid.UUID) (*ActionResult, error) {
	start := time.Now()
	raw, err := s.backend.Dispatch(ctx, actor.Token(), op, entity.ID, backend.ActionBody{
		Reason:     input.Reason,
		AdminNotes: input.AdminNotes,
		Payload:    input.Payload,
	})
	elapsed := time.Since(start)

	result := &ActionResult{Action: op.Action}
	if err == nil && raw != nil {
		if updated, decodeErr := backend.DecodeEntity(entity.Type, entity.Category, raw); decodeErr == nil {
			result.Entity = &updated
		}
	}

	// The backend is the only source of the resulting status, so every
	// outcome except a transport failure is followed by a re-fetch.
	if result.Entity == nil && !errors.Is(err, backend.ErrNetwork) {
		refreshed, getErr := s.Get(ctx, actor, entity.Type, entity.Category, entity.ID)
		if getErr != nil {
			s.logger.Warn("failed to refresh entity after action",
				zap.String("entity", string(entity.Type)),
				zap.String("entity_id", entity.ID),
				zap.Error(getErr),
			)
		} else {
			result.Entity = refreshed
		}
	}

	params := &LogActionParams{
		Actor:      actor,
		Entity:     entity.Type,
		Category:   entity.Category,
		EntityID:   entity.ID,
		Action:     op.Action,
		FromStatus: entity.Status,
		Reason:     input.Reason,
		BulkRunID:  runID,
		Err:        err,
		Duration:   elapsed,
	}
	if err == nil && result.Entity != nil {
		params.ToStatus = result.Entity.Status
	}
	if s.logs != nil {
		_ = s.logs.LogAction(ctx, params)
	}
	if s.cache != nil {
		if cacheErr := s.cache.InvalidateLists(ctx, actor.OperatorID()); cacheErr != nil {
			s.logger.Warn("failed to invalidate list cache", zap.Error(cacheErr))
		}
	}

	if err != nil {
		return result, err
	}
	return result, nil
}

func (s *workflowService) BulkDispatcher(actor Actor, runID uuid.UUID) bulk.Dispatcher {
	return bulk.DispatcherFunc(func(ctx context.Context, entity models.WorkflowEntity, op workflow.Operation, input models.ActionInput) error {
		_, err := s.dispatch(ctx, actor, entity, op, input, &runID)
		return err
	})
}
