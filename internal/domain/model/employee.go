// Package model contains domain models passed between layers.
package model

import "time"

// Employee is a pairing candidate as read from the employee repository.
type Employee struct {
	ID           int64
	FullName     string
	Position     string // free-text job title, may be empty
	DepartmentID *int64 // nil when the employee has no department
	Active       bool
	Profile      Profile // optional preference source, may be nil
}

// Profile exposes optional pairing preferences of an employee.
// Implementations may fail, e.g. when stored preferences are malformed.
type Profile interface {
	WithNewcomers() (bool, error)
}

// StaticProfile is a Profile with fixed values.
type StaticProfile struct {
	Newcomers bool
}

// WithNewcomers implements Profile.
func (p StaticProfile) WithNewcomers() (bool, error) { return p.Newcomers, nil }

// HistoryRecord is an unordered past pairing of two employees.
type HistoryRecord struct {
	Employee1ID int64
	Employee2ID int64
	CreatedAt   time.Time
}

// Involves reports whether id is one side of the record.
func (h HistoryRecord) Involves(id int64) bool {
	return h.Employee1ID == id || h.Employee2ID == id
}

// Partner returns the other side of the record for id. ok is false when id
// is not part of the record, or when the other side is unset or id itself.
func (h HistoryRecord) Partner(id int64) (partner int64, ok bool) {
	switch id {
	case h.Employee1ID:
		partner = h.Employee2ID
	case h.Employee2ID:
		partner = h.Employee1ID
	default:
		return 0, false
	}
	if partner == 0 || partner == id {
		return 0, false
	}
	return partner, true
}

// Pair is one matched couple returned by a matching run, in service order.
type Pair struct {
	A int64 `json:"employee1_id"`
	B int64 `json:"employee2_id"`
}
