package http_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmhttp "github.com/contextwizard/wizardd/internal/adapter/llm/http"
)

func fastRetryConfig() llmhttp.RetryConfig {
	return llmhttp.RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := llmhttp.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return llmhttp.FromStatusCode("github", 503, "unavailable")
		}
		return nil
	}, fastRetryConfig())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	err := llmhttp.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		return llmhttp.FromStatusCode("github", 401, "bad credentials")
	}, fastRetryConfig())

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	attempts := 0
	err := llmhttp.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		return llmhttp.FromStatusCode("gemini", 429, "slow down")
	}, fastRetryConfig())

	require.Error(t, err)
	assert.Equal(t, 4, attempts, "initial attempt plus MaxRetries")
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := llmhttp.RetryWithBackoff(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run after cancellation")
		return nil
	}, fastRetryConfig())

	require.ErrorIs(t, err, context.Canceled)
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, llmhttp.ShouldRetry(nil))
	assert.False(t, llmhttp.ShouldRetry(errors.New("plain error")))
	assert.True(t, llmhttp.ShouldRetry(llmhttp.FromStatusCode("x", 500, "boom")))
	assert.True(t, llmhttp.ShouldRetry(llmhttp.NewTimeoutError("x", "deadline")))
	assert.False(t, llmhttp.ShouldRetry(llmhttp.FromStatusCode("x", 404, "gone")))
}

func TestExponentialBackoff_StaysWithinBounds(t *testing.T) {
	cfg := fastRetryConfig()
	for attempt := 0; attempt < 10; attempt++ {
		backoff := llmhttp.ExponentialBackoff(attempt, cfg)
		assert.GreaterOrEqual(t, backoff, time.Duration(0))
		assert.LessOrEqual(t, backoff, cfg.MaxBackoff)
	}
}

func TestRedactURLSecrets(t *testing.T) {
	in := `gemini: service unavailable: POST https://example.com/v1?key=secret123&foo=bar`
	out := llmhttp.RedactURLSecrets(in)
	assert.NotContains(t, out, "secret123")
	assert.Contains(t, out, "key=[REDACTED]")
	assert.Contains(t, out, "foo=bar")
}

func TestTruncateForLogging(t *testing.T) {
	short := "all good"
	assert.Equal(t, short, llmhttp.TruncateForLogging(short))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	out := llmhttp.TruncateForLogging(string(long))
	assert.Less(t, len(out), 300)
	assert.Contains(t, out, "truncated")
}
