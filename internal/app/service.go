// Package service provides the matching orchestration facade used by the
// scheduler, the one-shot command and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coffeematch/internal/adapters/matching"
	"github.com/okian/coffeematch/internal/adapters/repository"
	"github.com/okian/coffeematch/internal/domain/model"
	"github.com/okian/coffeematch/pkg/logger"
)

// Sentinel kinds for facade errors.
var (
	ErrRepository    = errors.New("employee repository failed")
	ErrNotConfigured = errors.New("matching service dependencies not configured")
)

// ClientProvider hands out the shared matching client. *matching.Lifecycle
// satisfies it.
type ClientProvider interface {
	Client() (*matching.Client, error)
}

// Service runs secret-coffee matching for the active employees.
type Service struct {
	employees repository.EmployeeStore
	history   repository.HistoryStore
	clients   ClientProvider
	logger    logger.Logger

	mu         sync.RWMutex
	runs       uint64
	lastRunID  string
	lastRunAt  time.Time
	lastPairs  int
	lastErr    error
	inProgress int
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEmployeeStore sets where candidates are read from.
func WithEmployeeStore(st repository.EmployeeStore) Option {
	return func(s *Service) { s.employees = st }
}

// WithHistoryStore sets where pairing history is read from.
func WithHistoryStore(st repository.HistoryStore) Option {
	return func(s *Service) { s.history = st }
}

// WithStore uses st for both employees and history.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		s.employees = st
		s.history = st
	}
}

// WithClientProvider sets the matching client source.
func WithClientProvider(p ClientProvider) Option {
	return func(s *Service) { s.clients = p }
}

// New constructs a Service.
func New(opts ...Option) *Service {
	s := &Service{logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunMatchingForActiveEmployees performs one matching run. It returns a
// non-nil, possibly empty, slice on success. With no active employees the
// matching service is not contacted at all.
func (s *Service) RunMatchingForActiveEmployees(ctx context.Context) ([]model.Pair, error) {
	runID := uuid.NewString()
	log := s.logger.With(logger.String("run_id", runID))
	start := time.Now()
	s.begin()

	pairs, err := s.run(ctx, log)

	s.finish(runID, start, pairs, err)
	if err != nil {
		log.Error(ctx, "matching run failed", logger.Error(err), logger.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	log.Info(ctx, "matching run finished",
		logger.Int("pairs_count", len(pairs)),
		logger.Duration("elapsed", time.Since(start)))
	return pairs, nil
}

func (s *Service) run(ctx context.Context, log logger.Logger) ([]model.Pair, error) {
	if s.employees == nil || s.clients == nil {
		return nil, ErrNotConfigured
	}

	employees, err := s.employees.ListActiveEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list active employees: %v", ErrRepository, err)
	}
	if len(employees) == 0 {
		log.Info(ctx, "no active employees, skipping matching")
		return []model.Pair{}, nil
	}

	client, err := s.clients.Client()
	if err != nil {
		return nil, err
	}

	history := s.loadHistory(ctx, log, employees)
	log.Debug(ctx, "matching candidates loaded",
		logger.Int("employees_count", len(employees)),
		logger.Int("history_count", len(history)))

	return client.Match(ctx, employees, history)
}

type historyKey struct {
	a, b    int64
	created int64
}

// loadHistory collects the distinct history records of all candidates. A
// failed lookup leaves that employee without history.
func (s *Service) loadHistory(ctx context.Context, log logger.Logger, employees []model.Employee) []model.HistoryRecord {
	if s.history == nil {
		return nil
	}
	seen := make(map[historyKey]struct{})
	var out []model.HistoryRecord
	for _, e := range employees {
		records, err := s.history.FindHistoryForEmployee(ctx, e.ID)
		if err != nil {
			log.Warn(ctx, "pairing history unavailable, matching without it",
				logger.Int64("employee_id", e.ID),
				logger.Error(err))
			continue
		}
		for _, rec := range records {
			k := historyKey{a: rec.Employee1ID, b: rec.Employee2ID, created: rec.CreatedAt.UnixNano()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

func (s *Service) begin() {
	s.mu.Lock()
	s.inProgress++
	s.mu.Unlock()
}

func (s *Service) finish(runID string, at time.Time, pairs []model.Pair, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress--
	s.runs++
	s.lastRunID = runID
	s.lastRunAt = at
	s.lastPairs = len(pairs)
	s.lastErr = err
}

// GetStats returns run statistics for monitoring, including the matching
// client counters when the client is available.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	stats := map[string]interface{}{
		"runs_total":       s.runs,
		"runs_in_progress": s.inProgress,
		"last_run_id":      s.lastRunID,
		"last_pairs_count": s.lastPairs,
	}
	if !s.lastRunAt.IsZero() {
		stats["last_run_at"] = s.lastRunAt.UTC().Format(time.RFC3339)
	}
	if s.lastErr != nil {
		stats["last_error"] = s.lastErr.Error()
	}
	s.mu.RUnlock()

	if s.clients != nil {
		if c, err := s.clients.Client(); err == nil {
			stats["matching"] = c.Snapshot().Map()
		} else {
			stats["matching"] = map[string]interface{}{"error": err.Error()}
		}
	}
	return stats
}
