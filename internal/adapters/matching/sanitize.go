package matching

import "github.com/okian/coffeematch/internal/domain/seniority"

// LoggableRequest is a MatchRequest reduced to fields safe for logs.
type LoggableRequest struct {
	Employees []LoggableEmployee `json:"employees"`
}

// LoggableEmployee omits preferences and partner identities.
type LoggableEmployee struct {
	ID                    int64           `json:"id"`
	Department            *int64          `json:"department"`
	PositionLevel         seniority.Level `json:"position_level"`
	ExcludedPartnersCount int             `json:"excluded_partners_count"`
}

// Sanitize projects req for logging.
func Sanitize(req MatchRequest) LoggableRequest {
	out := LoggableRequest{Employees: make([]LoggableEmployee, 0, len(req.Employees))}
	for _, e := range req.Employees {
		out.Employees = append(out.Employees, LoggableEmployee{
			ID:                    e.ID,
			Department:            e.Department,
			PositionLevel:         e.PositionLevel,
			ExcludedPartnersCount: len(e.ExcludedPartners),
		})
	}
	return out
}
