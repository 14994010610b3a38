package matching

import "github.com/okian/coffeematch/internal/domain/seniority"

// MatchRequest is the body of POST /api/v1/matching/match/secret-coffee.
type MatchRequest struct {
	Employees []EmployeeDTO `json:"employees"`
}

// EmployeeDTO is one candidate as the matching service sees it.
type EmployeeDTO struct {
	ID               int64           `json:"id"`
	Department       *int64          `json:"department"`
	PositionLevel    seniority.Level `json:"position_level"`
	ExcludedPartners []int64         `json:"excluded_partners"`
	Preferences      PreferencesDTO  `json:"preferences"`
}

// PreferencesDTO carries pairing preferences.
type PreferencesDTO struct {
	WithNewcomers bool `json:"with_newcomers"`
}

// MatchResponse is the matching service reply.
type MatchResponse struct {
	Pairs []PairDTO `json:"pairs"`
}

// PairDTO is one matched couple.
type PairDTO struct {
	Employee1ID int64 `json:"employee1_id"`
	Employee2ID int64 `json:"employee2_id"`
}

type healthResponse struct {
	Status string `json:"status"`
}

const healthyStatus = "OK"
