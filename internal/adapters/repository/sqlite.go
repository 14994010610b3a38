package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/coffeematch/internal/domain/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS employees (
	id INTEGER PRIMARY KEY,
	full_name TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	department_id INTEGER,
	is_active INTEGER NOT NULL DEFAULT 1,
	preferences TEXT
);
CREATE TABLE IF NOT EXISTS coffee_pairs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	employee1_id INTEGER NOT NULL,
	employee2_id INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coffee_pairs_employee1 ON coffee_pairs(employee1_id);
CREATE INDEX IF NOT EXISTS idx_coffee_pairs_employee2 ON coffee_pairs(employee2_id);
`

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	cfg settings
}

// NewSQLiteStore opens (and if needed creates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, cfg: defaultSettings()}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", ErrOpen, err)
	}
	return s, nil
}

// ListActiveEmployees implements EmployeeStore.
func (s *SQLiteStore) ListActiveEmployees(ctx context.Context) ([]model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, full_name, position, department_id, is_active, preferences FROM employees WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: list employees: %v", ErrQuery, err)
	}
	defer rows.Close()

	return scanEmployees(rows)
}

// FindHistoryForEmployee implements HistoryStore.
func (s *SQLiteStore) FindHistoryForEmployee(ctx context.Context, id int64) ([]model.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT employee1_id, employee2_id, created_at FROM coffee_pairs WHERE employee1_id = ? OR employee2_id = ? ORDER BY id",
		id, id)
	if err != nil {
		return nil, fmt.Errorf("%w: find history: %v", ErrQuery, err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// AddEmployee inserts or replaces e. A readable profile is stored as JSON
// preferences; a nil or unreadable one is stored as NULL.
func (s *SQLiteStore) AddEmployee(ctx context.Context, e model.Employee) error {
	if err := validateEmployee(e); err != nil {
		return err
	}
	var prefs sql.NullString
	if e.Profile != nil {
		if v, err := e.Profile.WithNewcomers(); err == nil {
			raw, _ := json.Marshal(storedPreferences{WithNewcomers: &v})
			prefs = sql.NullString{String: string(raw), Valid: true}
		}
	}
	var dept sql.NullInt64
	if e.DepartmentID != nil {
		dept = sql.NullInt64{Int64: *e.DepartmentID, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO employees (id, full_name, position, department_id, is_active, preferences) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.FullName, e.Position, dept, e.Active, prefs)
	if err != nil {
		return fmt.Errorf("%w: insert employee: %v", ErrQuery, err)
	}
	return nil
}

// SetPreferences stores raw preferences JSON for an employee as is. The
// document is only decoded when the profile is read.
func (s *SQLiteStore) SetPreferences(ctx context.Context, id int64, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "UPDATE employees SET preferences = ? WHERE id = ?", raw, id)
	if err != nil {
		return fmt.Errorf("%w: update preferences: %v", ErrQuery, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidEmployee
	}
	return nil
}

// AddHistory records a past pairing.
func (s *SQLiteStore) AddHistory(ctx context.Context, rec model.HistoryRecord) error {
	if err := validatePair(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.cfg.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO coffee_pairs (employee1_id, employee2_id, created_at) VALUES (?, ?, ?)",
		rec.Employee1ID, rec.Employee2ID, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: insert pair: %v", ErrQuery, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func scanEmployees(rows *sql.Rows) ([]model.Employee, error) {
	out := []model.Employee{}
	for rows.Next() {
		var (
			e     model.Employee
			dept  sql.NullInt64
			prefs sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.FullName, &e.Position, &dept, &e.Active, &prefs); err != nil {
			return nil, fmt.Errorf("%w: scan employee: %v", ErrQuery, err)
		}
		if dept.Valid {
			d := dept.Int64
			e.DepartmentID = &d
		}
		if prefs.Valid {
			e.Profile = jsonProfile(prefs.String)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate employees: %v", ErrQuery, err)
	}
	return out, nil
}

func scanHistory(rows *sql.Rows) ([]model.HistoryRecord, error) {
	out := []model.HistoryRecord{}
	for rows.Next() {
		var (
			rec     model.HistoryRecord
			created int64
		)
		if err := rows.Scan(&rec.Employee1ID, &rec.Employee2ID, &created); err != nil {
			return nil, fmt.Errorf("%w: scan pair: %v", ErrQuery, err)
		}
		rec.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pairs: %v", ErrQuery, err)
	}
	return out, nil
}

type storedPreferences struct {
	WithNewcomers *bool `json:"with_newcomers,omitempty"`
}

// jsonProfile decodes the preferences column on every read.
type jsonProfile string

// WithNewcomers implements model.Profile.
func (p jsonProfile) WithNewcomers() (bool, error) {
	var prefs storedPreferences
	if err := json.Unmarshal([]byte(p), &prefs); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPreferences, err)
	}
	if prefs.WithNewcomers == nil {
		return false, nil
	}
	return *prefs.WithNewcomers, nil
}
