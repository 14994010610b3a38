package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/coffeematch/internal/domain/model"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu        sync.RWMutex
	employees map[int64]model.Employee
	history   []model.HistoryRecord
	cfg       settings
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{employees: make(map[int64]model.Employee), cfg: defaultSettings()}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

// ListActiveEmployees implements EmployeeStore.
func (s *MemoryStore) ListActiveEmployees(ctx context.Context) ([]model.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if e.Active {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b model.Employee) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// FindHistoryForEmployee implements HistoryStore.
func (s *MemoryStore) FindHistoryForEmployee(ctx context.Context, id int64) ([]model.HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.HistoryRecord{}
	for _, rec := range s.history {
		if rec.Involves(id) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AddEmployee inserts or replaces e.
func (s *MemoryStore) AddEmployee(_ context.Context, e model.Employee) error {
	if err := validateEmployee(e); err != nil {
		return err
	}
	s.mu.Lock()
	s.employees[e.ID] = e
	s.mu.Unlock()
	return nil
}

// AddHistory records a past pairing.
func (s *MemoryStore) AddHistory(_ context.Context, rec model.HistoryRecord) error {
	if err := validatePair(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.cfg.now()
	}
	s.mu.Lock()
	s.history = append(s.history, rec)
	s.mu.Unlock()
	return nil
}
