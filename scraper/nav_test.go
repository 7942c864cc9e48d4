package scraper

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransientNavError(t *testing.T) {
	assert.False(t, isTransientNavError(nil))
	assert.False(t, isTransientNavError(errors.New("element not found")))

	assert.True(t, isTransientNavError(errors.New("page load error net::ERR_NAME_NOT_RESOLVED")))
	assert.True(t, isTransientNavError(errors.New("net::ERR_CONNECTION_RESET")))
	assert.True(t, isTransientNavError(errors.New("net::ERR_TIMED_OUT")))
	assert.True(t, isTransientNavError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
}

func TestRetryTransientStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retryTransient(3, 0, nil, func() error {
		calls++
		if calls < 2 {
			return errors.New("net::ERR_CONNECTION_CLOSED")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryTransientExhaustsBudget(t *testing.T) {
	calls := 0
	retries := 0
	err := retryTransient(3, 0, func(attempt int, err error) { retries++ }, func() error {
		calls++
		return errors.New("net::ERR_INTERNET_DISCONNECTED")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "exactly the attempt budget, no more")
	assert.Equal(t, 2, retries, "notified before each retry, not after the last failure")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetryTransientNonTransientPropagatesImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("javascript exception")
	err := retryTransient(3, 0, nil, func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
