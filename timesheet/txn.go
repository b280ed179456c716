/*
txn.go - Bounded-retry transactional writer for approve/reject

PURPOSE:
  Wraps the read-validate-write sequence for multi-step transitions in the
  store's atomic unit and retries the whole unit on transient conflicts.
  The retry restarts from the read step with fresh state; business logic is
  never re-run against stale inputs, and nothing from an aborted attempt is
  visible outside it.

RETRY SEMANTICS:
  Only errors classified retryable by IsRetryable (a lost conditional write)
  trigger another attempt. Guard violations, validation failures, and
  not-found surface immediately. The loop is bounded by MaxAttempts with a
  linear backoff so a conflict storm cannot hang a caller; the context
  deadline is honored between attempts.

  The loser of an approve/reject race retries, reads the post-transition
  state, and then fails its guard with WrongState. That is the correct
  outcome, not an error in the retry loop.
*/
package timesheet

import (
	"context"
	"fmt"
	"time"
)

// runApproval executes fn inside the store's transaction primitive, retrying
// the entire unit on transient conflicts up to MaxAttempts times.
func (s *Service) runApproval(ctx context.Context, fn func(Store) error) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.Store.WithTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if werr := s.backoff(ctx, attempt); werr != nil {
			return werr
		}
	}
	return fmt.Errorf("transition abandoned after %d attempts: %w", attempts, err)
}

// backoff waits attempt * RetryBackoff or until the context is done.
func (s *Service) backoff(ctx context.Context, attempt int) error {
	delay := s.RetryBackoff
	if delay <= 0 {
		delay = 25 * time.Millisecond
	}
	timer := time.NewTimer(time.Duration(attempt) * delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
