package matching

import (
	"slices"

	"github.com/okian/coffeematch/internal/domain/model"
	"github.com/okian/coffeematch/internal/domain/seniority"
)

// BuildRequest converts candidates and pairing history into the wire
// request. Each employee's excluded partners are the distinct other
// participants of every history record involving them, sorted ascending.
func BuildRequest(employees []model.Employee, history []model.HistoryRecord) MatchRequest {
	partners := make(map[int64]map[int64]struct{}, len(employees))
	add := func(id, partner int64) {
		set, ok := partners[id]
		if !ok {
			set = make(map[int64]struct{})
			partners[id] = set
		}
		set[partner] = struct{}{}
	}
	for _, rec := range history {
		if p, ok := rec.Partner(rec.Employee1ID); ok {
			add(rec.Employee1ID, p)
		}
		if p, ok := rec.Partner(rec.Employee2ID); ok {
			add(rec.Employee2ID, p)
		}
	}

	out := MatchRequest{Employees: make([]EmployeeDTO, 0, len(employees))}
	for _, e := range employees {
		excluded := make([]int64, 0, len(partners[e.ID]))
		for p := range partners[e.ID] {
			if p != e.ID {
				excluded = append(excluded, p)
			}
		}
		slices.Sort(excluded)

		out.Employees = append(out.Employees, EmployeeDTO{
			ID:               e.ID,
			Department:       e.DepartmentID,
			PositionLevel:    seniority.FromTitle(e.Position),
			ExcludedPartners: excluded,
			Preferences:      PreferencesDTO{WithNewcomers: withNewcomers(e.Profile)},
		})
	}
	return out
}

// withNewcomers reads the preference, treating a missing profile, a read
// error or a panic as false.
func withNewcomers(p model.Profile) (v bool) {
	defer func() {
		if recover() != nil {
			v = false
		}
	}()
	if p == nil {
		return false
	}
	v, err := p.WithNewcomers()
	if err != nil {
		return false
	}
	return v
}
