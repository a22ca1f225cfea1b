package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, fraction of the delay applied as +/- jitter

	// OnRetry, if set, is called before each wait with the attempt that just
	// failed (starting at 1), its error and the delay about to be slept.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the policy used when opening database connections:
// 2 retries, 200ms initial delay doubling up to 2s, 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NoRetry returns a Config that runs fn exactly once.
func NoRetry() *Config {
	return &Config{MaxRetries: 0}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// DoIfRetryable runs fn until it succeeds, MaxRetries is exhausted or fn
// returns an error IsRetryable rejects, returning the last error.
// Authentication failures and bad SQL are never retried. Context
// cancellation during a wait returns ctx.Err().
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries || !IsRetryable(err) {
			return err
		}

		wait := applyJitter(delay, cfg.JitterFactor)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// retryablePatterns are lowercase fragments of transient connect-time failures
// reported by pgx, go-sql-driver/mysql and go-mssqldb.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"timed out",
	"temporary failure",
	"network is unreachable",
	"too many connections",
	"the database system is starting up",
	"server is in script upgrade mode",
	"bad connection",
}

// IsRetryable reports whether err looks transient. Context cancellation and
// deadline expiry are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
