// Package retry runs an operation with a per-attempt timeout and a bounded
// number of retries for transient failures.
package retry

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// DefaultBackoff is the delay before the first retry. Each further retry
// doubles it.
const DefaultBackoff = 200 * time.Millisecond

// Policy bounds an operation. The zero Policy makes a single attempt with no
// timeout.
type Policy struct {
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// Backoff is the delay before the first retry; DefaultBackoff when zero.
	Backoff time.Duration
}

// Do calls fn until it succeeds, fails with an error that does not wrap
// types.ErrTransient, or the retries are spent. Cancelling ctx stops waiting
// between attempts.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	delay := p.Backoff
	if delay <= 0 {
		delay = DefaultBackoff
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = attemptOnce(ctx, p.Timeout, fn)
		if err == nil || !errors.Is(err, types.ErrTransient) || attempt >= p.Retries {
			return err
		}

		log.WithFields(log.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay,
			"err":     err,
		}).Warn("transient failure, retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
		delay *= 2
	}
}

func attemptOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
