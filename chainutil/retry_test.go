package chainutil

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestRetrySucceedsEventually(t *testing.T) {
	c := qt.New(t)

	var calls int
	got, err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, 42)
	c.Assert(calls, qt.Equals, 3)
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	c := qt.New(t)

	var calls int
	wantErr := errors.New("permanent")
	_, err := Retry(context.Background(), 2, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, wantErr
	})
	c.Assert(err, qt.Equals, wantErr)
	c.Assert(calls, qt.Equals, 3) // initial attempt + 2 retries
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	_, err := Retry(ctx, 5, 10*time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	c.Assert(err, qt.Not(qt.IsNil))
	// First attempt always runs without delay; cancellation only stops the
	// loop once a backoff wait is attempted.
	c.Assert(calls >= 1, qt.IsTrue)
}
