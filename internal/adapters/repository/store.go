// Package repository provides the employee and pairing-history stores the
// matching run reads from.
package repository

import (
	"context"

	"github.com/okian/coffeematch/internal/domain/model"
)

// EmployeeStore lists pairing candidates.
type EmployeeStore interface {
	// ListActiveEmployees returns active employees ordered by id.
	ListActiveEmployees(ctx context.Context) ([]model.Employee, error)
}

// HistoryStore reads past pairings.
type HistoryStore interface {
	// FindHistoryForEmployee returns every record in which id took part,
	// on either side, oldest first.
	FindHistoryForEmployee(ctx context.Context, id int64) ([]model.HistoryRecord, error)
}

// Store is a writable employee and history store.
type Store interface {
	EmployeeStore
	HistoryStore

	AddEmployee(ctx context.Context, e model.Employee) error
	AddHistory(ctx context.Context, rec model.HistoryRecord) error
}

func validateEmployee(e model.Employee) error {
	if e.ID <= 0 {
		return ErrInvalidEmployee
	}
	return nil
}

func validatePair(rec model.HistoryRecord) error {
	if rec.Employee1ID <= 0 || rec.Employee2ID <= 0 || rec.Employee1ID == rec.Employee2ID {
		return ErrInvalidPair
	}
	return nil
}
