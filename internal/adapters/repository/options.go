package repository

import "time"

type settings struct {
	now func() time.Time
}

func defaultSettings() settings {
	return settings{now: time.Now}
}

// Option configures a store.
type Option func(*settings)

// WithClock sets the time source used to stamp history records added
// without a creation time.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
