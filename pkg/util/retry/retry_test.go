package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	count := 0
	err := Do(context.Background(), func() error {
		count++
		if count < 3 {
			return merr.ErrIoUnexpectEOF
		}
		return nil
	}, Attempts(5), Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDoReachMaxAttempts(t *testing.T) {
	count := 0
	expected := errors.New("always")
	err := Do(context.Background(), func() error {
		count++
		return expected
	}, Attempts(3), Sleep(time.Millisecond))
	assert.ErrorIs(t, err, expected)
	assert.Equal(t, 3, count)
}

func TestDoUnrecoverable(t *testing.T) {
	count := 0
	err := Do(context.Background(), func() error {
		count++
		return Unrecoverable(merr.ErrIoFailed)
	}, Attempts(5), Sleep(time.Millisecond))
	assert.ErrorIs(t, err, merr.ErrIoFailed)
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, 1, count)
}

func TestDoRetryErrFilter(t *testing.T) {
	count := 0
	err := Do(context.Background(), func() error {
		count++
		return merr.ErrIoFailed
	}, Attempts(5), Sleep(time.Millisecond), RetryErr(merr.IsRetryableErr))
	assert.ErrorIs(t, err, merr.ErrIoFailed)
	assert.Equal(t, 1, count)
}

func TestDoCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoContextDoneWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	expected := errors.New("slow")
	err := Do(ctx, func() error { return expected }, Attempts(0), Sleep(10*time.Millisecond))
	assert.ErrorIs(t, err, expected)
}

func TestMaxSleepTime(t *testing.T) {
	c := newDefaultConfig()
	Sleep(time.Second)(c)
	MaxSleepTime(time.Second)(c)
	assert.Equal(t, 2*time.Second, c.maxSleepTime)
}
