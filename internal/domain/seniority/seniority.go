// Package seniority derives a coarse seniority level from a free-text job title.
package seniority

import "strings"

// Level is the seniority category sent to the matching service.
type Level string

// Known levels.
const (
	Senior  Level = "SENIOR"
	Mid     Level = "MID"
	Junior  Level = "JUNIOR"
	Unknown Level = "UNKNOWN"
)

type rule struct {
	keywords []string
	level    Level
}

// rules are evaluated in order; the first rule with a keyword contained in
// the lowercased title wins. "Senior intern" is therefore SENIOR.
var rules = []rule{
	{keywords: []string{"senior", "lead", "principal"}, level: Senior},
	{keywords: []string{"junior", "intern"}, level: Junior},
}

// FromTitle maps a job title to a Level. An empty title is Unknown; any
// other title matching no rule, whitespace included, is Mid.
func FromTitle(title string) Level {
	if title == "" {
		return Unknown
	}
	t := strings.ToLower(title)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(t, kw) {
				return r.level
			}
		}
	}
	return Mid
}

// String implements fmt.Stringer.
func (l Level) String() string { return string(l) }
