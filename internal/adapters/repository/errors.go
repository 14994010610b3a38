package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrInvalidEmployee = errors.New("invalid employee id")
	ErrInvalidPair     = errors.New("invalid coffee pair")
	ErrOpen            = errors.New("could not open employee database")
	ErrQuery           = errors.New("employee database query failed")
	ErrPreferences     = errors.New("stored preferences are malformed")
)
