// Package retry provides utilities for retrying operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// backoff builds the go-retry backoff chain for cfg. Delays double on every
// attempt and are capped at MaxDelay.
func (c Config) backoff() goretry.Backoff {
	b := goretry.NewExponential(c.InitialDelay)
	if c.MaxDelay > 0 {
		b = goretry.WithCappedDuration(c.MaxDelay, b)
	}
	if c.MaxRetries >= 0 {
		b = goretry.WithMaxRetries(uint64(c.MaxRetries), b)
	}
	return b
}

// WithExponentialBackoff executes the operation with exponential backoff retry.
// It retries the operation up to MaxRetries times, with exponentially increasing
// delays between attempts. Context cancellation is respected throughout.
//
// Errors wrapped with Fatal() are not retried.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	attempts := 0
	var lastErr error

	err := goretry.Do(ctx, cfg.backoff(), func(_ context.Context) error {
		attempts++
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		if IsFatal(err) {
			return err
		}
		return goretry.RetryableError(err)
	})
	if err == nil {
		return nil
	}

	switch {
	case IsFatal(err):
		return fmt.Errorf("fatal error (not retrying): %w", err)
	case ctx.Err() != nil:
		return fmt.Errorf("context cancelled after %d attempts: %w", attempts, ctx.Err())
	default:
		return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
