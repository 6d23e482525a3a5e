package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetentionMonitor periodically prunes action log rows older than the
// configured retention.
type RetentionMonitor interface {
	Start(ctx context.Context)
	Stop()
	Prune(ctx context.Context) (int64, error)
}

type retentionMonitor struct {
	logs          ActionLogService
	retentionDays int
	interval      time.Duration
	logger        *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

func NewRetentionMonitor(logs ActionLogService, retentionDays int, interval time.Duration, logger *zap.Logger) RetentionMonitor {
	if interval == 0 {
		interval = 6 * time.Hour
	}
	return &retentionMonitor{
		logs:          logs,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

func (m *retentionMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.retentionDays <= 0 {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})

	m.logger.Info("action log retention started",
		zap.Int("retention_days", m.retentionDays),
		zap.Duration("interval", m.interval),
	)

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)

		m.run(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.run(ctx)
			case <-stop:
				m.logger.Info("action log retention stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}(m.stopChan, m.done)
}

func (m *retentionMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.done
	m.mu.Unlock()
	<-done
}

func (m *retentionMonitor) run(ctx context.Context) {
	if _, err := m.Prune(ctx); err != nil {
		m.logger.Error("action log retention failed", zap.Error(err))
	}
}

func (m *retentionMonitor) Prune(ctx context.Context) (int64, error) {
	deleted, err := m.logs.CleanupOldLogs(ctx, m.retentionDays)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		m.logger.Info("pruned action logs", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}
