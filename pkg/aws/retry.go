package aws

import (
	"context"
	"errors"
	"time"

	"github.com/chainguard-dev/clog"
)

const maxConsistencyDelay = 30 * time.Second

// retryNotFound calls fn until it stops failing with ErrNotFound or the
// session's consistency attempts run out. EC2 reads lag behind writes, so a
// group, instance or address created a moment ago may not be visible yet.
func (s *Session) retryNotFound(ctx context.Context, resource string, fn func() error) error {
	log := clog.FromContext(ctx)

	delay := s.retryDelay
	var err error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrNotFound) || attempt == s.retryAttempts {
			return err
		}

		log.Debug("resource not visible yet, retrying", "resource", resource, "attempt", attempt, "backoff", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = min(delay*2, maxConsistencyDelay)
		}
	}
	return err
}
