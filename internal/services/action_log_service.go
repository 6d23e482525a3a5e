package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/repository"
)

type ActionLogService interface {
	LogAction(ctx context.Context, params *LogActionParams) error
	GetActionLog(ctx context.Context, id uuid.UUID) (*models.ActionLog, error)
	ListActionLogs(ctx context.Context, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error)
	GetStats(ctx context.Context, days int) (*models.ActionLogStats, error)
	GetEntityHistory(ctx context.Context, entity models.EntityType, entityID string) ([]models.ActionLog, error)
	CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error)
	GetFilterOptions(ctx context.Context) (*FilterOptions, error)
}

type LogActionParams struct {
	Actor      Actor
	Entity     models.EntityType
	Category   models.Category
	EntityID   string
	Action     models.ActionID
	FromStatus models.Status
	ToStatus   models.Status
	Reason     string
	BulkRunID  *uuid.UUID
	Err        error
	Duration   time.Duration
}

type FilterOptions struct {
	Entities  []models.EntityType `json:"entities"`
	Actions   []string            `json:"actions"`
	Operators []string            `json:"operators"`
	Statuses  []string            `json:"statuses"`
}

type actionLogService struct {
	repo   repository.ActionLogRepository
	logger *zap.Logger
}

func NewActionLogService(repo repository.ActionLogRepository, logger *zap.Logger) ActionLogService {
	return &actionLogService{repo: repo, logger: logger}
}

func (s *actionLogService) LogAction(ctx context.Context, params *LogActionParams) error {
	entry := &models.ActionLog{
		OperatorID: params.Actor.OperatorID(),
		Entity:     params.Entity,
		Category:   params.Category,
		EntityID:   params.EntityID,
		Action:     params.Action,
		FromStatus: params.FromStatus,
		ToStatus:   params.ToStatus,
		Reason:     params.Reason,
		BulkRunID:  params.BulkRunID,
		IPAddress:  params.Actor.IPAddress,
		UserAgent:  params.Actor.UserAgent,
		Status:     models.ActionLogSuccess,
		Duration:   params.Duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if params.Err != nil {
		entry.Status = models.ActionLogFailed
		entry.ErrorKind = string(errorKind(params.Err))
		entry.ErrorMsg = params.Err.Error()
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write action log",
			zap.String("entity", string(params.Entity)),
			zap.String("entity_id", params.EntityID),
			zap.String("action", string(params.Action)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *actionLogService) GetActionLog(ctx context.Context, id uuid.UUID) (*models.ActionLog, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *actionLogService) ListActionLogs(ctx context.Context, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

// GetStats covers the last days calendar days, today included.
func (s *actionLogService) GetStats(ctx context.Context, days int) (*models.ActionLogStats, error) {
	if days < 1 {
		days = 1
	}
	now := time.Now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1-days)
	return s.repo.GetStats(ctx, since)
}

func (s *actionLogService) GetEntityHistory(ctx context.Context, entity models.EntityType, entityID string) ([]models.ActionLog, error) {
	return s.repo.GetEntityHistory(ctx, entity, entityID, 50)
}

func (s *actionLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)
	return s.repo.DeleteOlderThan(ctx, cutoffDate)
}

func (s *actionLogService) GetFilterOptions(ctx context.Context) (*FilterOptions, error) {
	actions, err := s.repo.Distinct(ctx, "action")
	if err != nil {
		return nil, err
	}
	operators, err := s.repo.Distinct(ctx, "operator_id")
	if err != nil {
		return nil, err
	}
	return &FilterOptions{
		Entities:  models.EntityTypes,
		Actions:   actions,
		Operators: operators,
		Statuses:  []string{models.ActionLogSuccess, models.ActionLogFailed},
	}, nil
}
