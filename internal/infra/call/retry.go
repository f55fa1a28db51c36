package call

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/triage/internal/metrics"
)

// RetryConfig defines retry behavior for one external service.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	GrowthFactor float64       `yaml:"growth_factor"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	BaseDelay:    500 * time.Millisecond,
	MaxDelay:     30 * time.Second,
	GrowthFactor: 2.0,
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultRetryConfig.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if c.GrowthFactor < 1 {
		c.GrowthFactor = DefaultRetryConfig.GrowthFactor
	}
	return c
}

// Do executes fn with classification-driven retries and exponential backoff.
// Non-retryable failures and exhausted attempts propagate the classified
// error. The backoff sleep is context-aware so concurrent workflows keep
// making progress while one call waits.
func Do(ctx context.Context, service string, cfg RetryConfig, fn func(context.Context) error) error {
	_, err := DoValue(ctx, service, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that return a value.
func DoValue[T any](
	ctx context.Context,
	service string,
	cfg RetryConfig,
	fn func(context.Context) (T, error),
) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr *Error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		start := time.Now()
		result, err := fn(ctx)
		metrics.ExternalCallLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.ExternalCallsTotal.WithLabelValues(service, "success").Inc()
			return result, nil
		}

		lastErr = Classify(err)
		metrics.ExternalCallsTotal.WithLabelValues(service, lastErr.Category.String()).Inc()

		if !lastErr.Retryable() {
			return zero, lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(attempt, cfg)
		if lastErr.RetryAfter > 0 {
			delay = lastErr.RetryAfter
		}
		metrics.ExternalCallRetries.WithLabelValues(service).Inc()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, &Error{
		Category:   lastErr.Category,
		StatusCode: lastErr.StatusCode,
		Message:    fmt.Sprintf("failed after %d attempts: %s", cfg.MaxAttempts, lastErr.Message),
		Err:        lastErr,
	}
}

// backoffDelay computes BaseDelay * GrowthFactor^(attempt-1), capped at MaxDelay.
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.GrowthFactor, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
