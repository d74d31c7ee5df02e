package http

import (
	"time"

	"github.com/contextwizard/wizardd/internal/config"
)

// ParseTimeout parses the configured HTTP timeout, falling back to the
// default. Negative durations are rejected (would cause runtime panic in
// http.Client.Timeout).
func ParseTimeout(configured string, defaultVal time.Duration) time.Duration {
	if configured != "" {
		if d, err := time.ParseDuration(configured); err == nil && d >= 0 {
			return d
		}
	}

	if defaultVal < 0 {
		return 60 * time.Second // Fallback to safe default
	}
	return defaultVal
}

// BuildRetryConfig creates a RetryConfig from the global HTTP config.
func BuildRetryConfig(httpCfg config.HTTPConfig) RetryConfig {
	initialBackoff := parseDurationOr(httpCfg.InitialBackoff, 2*time.Second)
	maxBackoff := parseDurationOr(httpCfg.MaxBackoff, 32*time.Second)

	multiplier := httpCfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	return RetryConfig{
		MaxRetries:     httpCfg.MaxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
		Multiplier:     multiplier,
	}
}

// parseDurationOr parses a duration, rejecting negatives to prevent invalid
// backoff values.
func parseDurationOr(value string, defaultVal time.Duration) time.Duration {
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultVal
}
