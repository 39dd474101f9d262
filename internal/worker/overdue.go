package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/UsamaMalikDev/Task-App/internal/model"
)

const (
	DefaultInterval = time.Minute
	defaultTimeout  = 30 * time.Second
)

// Store is the part of the task store the scheduler needs.
type Store interface {
	MarkOverdue(ctx context.Context, now time.Time) ([]model.OverdueMark, error)
	GetStats(ctx context.Context, organizationID string) (model.Stats, error)
}

// Invalidator drops cached task lists of the given organizations.
type Invalidator interface {
	InvalidateOrganizations(orgs ...string)
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// RunRecord describes one sweep.
type RunRecord struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	TaskIDs       []string      `json:"task_ids"`
	Organizations []string      `json:"organizations"`
	Stats         *model.Stats  `json:"stats,omitempty"`
}

// OverdueScheduler periodically flags past-due tasks. Runs never overlap.
type OverdueScheduler struct {
	store       Store
	invalidator Invalidator
	logger      *zap.Logger
	interval    time.Duration
	timeout     time.Duration
	now         func() time.Time

	runMu sync.Mutex
	state atomic.Int32

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewOverdueScheduler(store Store, invalidator Invalidator, logger *zap.Logger, interval time.Duration) *OverdueScheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := defaultTimeout
	if interval < timeout {
		timeout = interval
	}
	return &OverdueScheduler{
		store:       store,
		invalidator: invalidator,
		logger:      logger,
		interval:    interval,
		timeout:     timeout,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

func (s *OverdueScheduler) State() State {
	return State(s.state.Load())
}

func (s *OverdueScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting overdue scheduler", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *OverdueScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping overdue scheduler...")
		close(s.stop)
	})
	s.wg.Wait()
	s.logger.Info("Overdue scheduler stopped")
}

func (s *OverdueScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one sweep. Failures are logged and the next tick proceeds.
func (s *OverdueScheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.state.Store(int32(StateFailed))
			s.logger.Error("overdue sweep panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
	}
}

// RunOnce flags every task that is past due, not terminal and not yet
// flagged. Calling it again without intervening changes flags nothing.
func (s *OverdueScheduler) RunOnce(ctx context.Context) (RunRecord, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.state.Store(int32(StateRunning))
	record := RunRecord{StartedAt: s.now().UTC(), TaskIDs: []string{}, Organizations: []string{}}

	marks, err := s.store.MarkOverdue(ctx, record.StartedAt)
	if err != nil {
		s.state.Store(int32(StateFailed))
		return record, fmt.Errorf("mark overdue tasks: %w", err)
	}

	if len(marks) == 0 {
		s.state.Store(int32(StateIdle))
		record.Duration = s.now().Sub(record.StartedAt)
		s.logger.Debug("overdue sweep found nothing")
		return record, nil
	}

	seen := make(map[string]struct{})
	for _, m := range marks {
		record.TaskIDs = append(record.TaskIDs, m.ID)
		if _, ok := seen[m.OrganizationID]; !ok {
			seen[m.OrganizationID] = struct{}{}
			record.Organizations = append(record.Organizations, m.OrganizationID)
		}
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateOrganizations(record.Organizations...)
	}

	fields := []zap.Field{
		zap.Int("flagged", len(record.TaskIDs)),
		zap.Int("organizations", len(record.Organizations)),
	}
	stats, err := s.store.GetStats(ctx, "")
	if err != nil {
		s.logger.Warn("overdue sweep stats unavailable", zap.Error(err))
	} else {
		record.Stats = &stats
		fields = append(fields,
			zap.Int("total", stats.Total),
			zap.Int("overdue", stats.Overdue),
			zap.Int("completed", stats.Completed),
			zap.Int("pending", stats.Pending),
		)
	}

	s.state.Store(int32(StateIdle))
	record.Duration = s.now().Sub(record.StartedAt)
	s.logger.Info("overdue sweep completed", fields...)
	return record, nil
}
