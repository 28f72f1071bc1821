package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// failing returns a fn that fails with errs in order, then succeeds.
func failing(errs ...error) (func(context.Context) error, *int) {
	calls := 0
	return func(context.Context) error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	}, &calls
}

func TestDo(t *testing.T) {
	transient := NewTransientError(errors.New("503 from upstream"), 503)
	permanent := errors.New("invalid query: unknown column")

	tests := []struct {
		name      string
		attempts  int
		errs      []error
		wantErr   error
		wantCalls int
	}{
		{name: "first try", attempts: 3, wantCalls: 1},
		{name: "recovers", attempts: 3, errs: []error{transient, transient}, wantCalls: 3},
		{name: "exhausted", attempts: 2, errs: []error{transient, transient, transient}, wantErr: transient, wantCalls: 2},
		{name: "permanent not retried", attempts: 3, errs: []error{permanent}, wantErr: permanent, wantCalls: 1},
		{name: "single attempt", attempts: 1, errs: []error{transient}, wantErr: transient, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, calls := failing(tt.errs...)
			err := Do(context.Background(), fastRetry(tt.attempts), fn)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, *calls)
		})
	}
}

func TestDo_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastRetry(5), func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"), 504)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryAndShouldRetry(t *testing.T) {
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(error) bool { return true }
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error, wait time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, wait, cfg.MaxBackoff)
	}

	err := Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("plain error, retried anyway")
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVal(t *testing.T) {
	calls := 0
	v, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return -1, NewTransientError(errors.New("flaky"), 502)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = DoVal(context.Background(), fastRetry(2), func(context.Context) (int, error) {
		return 7, errors.New("permanent")
	})
	require.Error(t, err)
	assert.Zero(t, v)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDelay_Jitter(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2, JitterFraction: 0.5}.withDefaults()
	for range 50 {
		d := cfg.delay(1, errors.New("x"))
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDelay_HonorsRetryAfter(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}.withDefaults()

	err := NewTransientError(errors.New("slow down"), 429).WithRetryAfter(300 * time.Millisecond)
	assert.Equal(t, 300*time.Millisecond, cfg.delay(1, err))

	err = NewTransientError(errors.New("slow down"), 429).WithRetryAfter(time.Hour)
	assert.Equal(t, time.Second, cfg.delay(1, err), "capped at MaxBackoff")

	err = NewTransientError(errors.New("slow down"), 429).WithRetryAfter(time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, cfg.delay(1, err), "shorter hint keeps backoff")
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 10*time.Millisecond)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, DefaultRetryConfig().MaxBackoff, cfg.MaxBackoff)

	cfg = FromRetryConfig(0, 0)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, cfg.InitialBackoff)
}
