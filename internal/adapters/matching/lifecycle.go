package matching

import (
	"errors"
	"fmt"
	"sync"
)

// Lifecycle lazily constructs one shared Client. Construction runs at most
// once; its outcome, including a configuration error, is memoized.
type Lifecycle struct {
	load func() (Config, error)
	opts []Option

	once   sync.Once
	client *Client
	err    error
}

// NewLifecycle returns a Lifecycle building its client from load.
func NewLifecycle(load func() (Config, error), opts ...Option) *Lifecycle {
	return &Lifecycle{load: load, opts: opts}
}

// Client returns the shared client, constructing it on first use. Every
// caller observes the same instance or the same error.
func (l *Lifecycle) Client() (*Client, error) {
	l.once.Do(func() {
		if l.load == nil {
			l.err = fmt.Errorf("%w: no configuration source", ErrConfiguration)
			return
		}
		cfg, err := l.load()
		if err != nil {
			if !errors.Is(err, ErrConfiguration) {
				err = fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			l.err = err
			return
		}
		l.client, l.err = New(cfg, l.opts...)
	})
	return l.client, l.err
}
