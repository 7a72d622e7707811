package step

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestRetryPolicy_Retryable(t *testing.T) {
	t.Run("default retries everything", func(t *testing.T) {
		assert.True(t, Retry(3, nil).Retryable(errTransient))
		assert.False(t, Retry(3, nil).Retryable(nil))
	})

	t.Run("permanent errors are never retried", func(t *testing.T) {
		assert.False(t, Retry(3, nil).Retryable(Permanent(errTransient)))
	})

	t.Run("abort predicate wins over retry predicate", func(t *testing.T) {
		p := RetryPolicy{
			MaxAttempts: 3,
			RetryOn:     func(error) bool { return true },
			AbortOn:     func(err error) bool { return errors.Is(err, errTransient) },
		}
		assert.False(t, p.Retryable(errTransient))
		assert.True(t, p.Retryable(errors.New("other")))
	})

	t.Run("retry predicate restricts", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 3, RetryOn: func(err error) bool { return errors.Is(err, errTransient) }}
		assert.True(t, p.Retryable(errTransient))
		assert.False(t, p.Retryable(errors.New("other")))
	})
}

func TestRetryPolicy_Attempts(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{}.Attempts())
	assert.Equal(t, 1, NoRetry().Attempts())
	assert.Equal(t, 4, Retry(4, nil).Attempts())
}

func TestExponential(t *testing.T) {
	b := Exponential(100*time.Millisecond, time.Second)()

	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}, got)

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestExponential_NoCapDoesNotOverflow(t *testing.T) {
	b := Exponential(time.Hour, 0)()
	var last time.Duration
	for i := 0; i < 80; i++ {
		d := b.NextBackOff()
		require.GreaterOrEqual(t, d, last)
		last = d
	}
}

func TestConstant(t *testing.T) {
	b := Retry(3, Constant(50*time.Millisecond)).Schedule()
	require.NotNil(t, b)
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
}

func TestSchedule_DefaultsToExponential(t *testing.T) {
	for name, policy := range map[string]RetryPolicy{
		"literal":  {MaxAttempts: 3},
		"nil func": Retry(3, nil),
	} {
		t.Run(name, func(t *testing.T) {
			b := policy.Schedule()
			require.NotNil(t, b)
			assert.Equal(t, DefaultBackoffInitial, b.NextBackOff())
			assert.Equal(t, 2*DefaultBackoffInitial, b.NextBackOff())
			for i := 0; i < 10; i++ {
				b.NextBackOff()
			}
			assert.Equal(t, DefaultBackoffMax, b.NextBackOff())
		})
	}
}

func TestJittered_ZeroMaxIsUncapped(t *testing.T) {
	b := Jittered(100*time.Millisecond, 0, 0.1)()
	var last time.Duration
	for i := 0; i < 5; i++ {
		last = b.NextBackOff()
	}
	// The fifth delay is 1.6s +/- 10%.
	assert.Greater(t, last, time.Second)
}

func TestJittered_StaysWithinBounds(t *testing.T) {
	b := Jittered(100*time.Millisecond, time.Second, 0.5)()
	for i := 0; i < 10; i++ {
		d := b.NextBackOff()
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestParseCacheStrategy(t *testing.T) {
	for in, want := range map[string]CacheKind{
		"":           CacheCodeHash,
		"code_hash":  CacheCodeHash,
		"input_hash": CacheInputHash,
		"Disabled":   CacheDisabled,
	} {
		got, err := ParseCacheStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Kind, in)
	}
	_, err := ParseCacheStrategy("sometimes")
	assert.ErrorContains(t, err, "unknown cache strategy")
	assert.False(t, NoCache().Enabled())
	assert.Equal(t, "input_hash", InputHash().String())
}

func TestRateLimit_PerSecond(t *testing.T) {
	assert.InDelta(t, 2.0, RateLimit{Limit: 120, Per: time.Minute}.PerSecond(), 1e-9)
	assert.InDelta(t, 5.0, RateLimit{Limit: 5}.PerSecond(), 1e-9)
}
