// Package executor implements the action executor: validate once,
// then retry execution attempts under a pluggable backoff policy.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sunO2/scrs/pkg/action"
	"github.com/sunO2/scrs/pkg/device"
)

// BackoffKind is the closed sum type (tagged struct, not an interface per
// policy) for retry delay policies, mirroring the Action tagged-union style
// rather than polymorphism.
type BackoffKind string

const (
	BackoffImmediate   BackoffKind = "immediate"
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// Backoff is the pluggable delay policy. Only the fields relevant to Kind
// are meaningful.
type Backoff struct {
	Kind BackoffKind

	FixedMs int

	InitialMs  int
	MaxMs      int
	Multiplier float64
}

// DefaultBackoff is exponential 1000/10000/2.0.
func DefaultBackoff() Backoff {
	return Backoff{Kind: BackoffExponential, InitialMs: 1000, MaxMs: 10000, Multiplier: 2.0}
}

// Delay computes the sleep duration before the given attempt (1-indexed:
// delay(1) is the sleep after the first failed attempt).
func (b Backoff) Delay(attempt int) time.Duration {
	switch b.Kind {
	case BackoffImmediate:
		return 0
	case BackoffFixed:
		return time.Duration(b.FixedMs) * time.Millisecond
	case BackoffExponential:
		ms := float64(b.InitialMs)
		for i := 1; i < attempt; i++ {
			ms *= b.Multiplier
			if ms > float64(b.MaxMs) {
				ms = float64(b.MaxMs)
				break
			}
		}
		return time.Duration(ms) * time.Millisecond
	default:
		return 0
	}
}

// Config holds retry behaviour for an Executor.
type Config struct {
	MaxAttempts int
	Backoff     Backoff
	// RetryableSubstrings restricts which error messages are considered
	// retryable; empty means all errors retry.
	RetryableSubstrings []string
}

// DefaultConfig mirrors stated defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Backoff: DefaultBackoff()}
}

// Executor holds a device reference and retry configuration.
type Executor struct {
	dev device.Device
	cfg Config
}

// New builds an Executor bound to dev.
func New(dev device.Device, cfg Config) *Executor {
	return &Executor{dev: dev, cfg: cfg}
}

func (e *Executor) isRetryable(msg string) bool {
	if len(e.cfg.RetryableSubstrings) == 0 {
		return true
	}
	for _, s := range e.cfg.RetryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// ExecuteWithRetry validates once up front (a validation failure is fatal,
// never retried), then attempts execution up to MaxAttempts times, sleeping
// per the configured Backoff between attempts. A result with Success=false
// counts as a failure for retry purposes, same as a returned error.
func (e *Executor) ExecuteWithRetry(ctx context.Context, a action.Action) (action.Result, error) {
	if err := a.Validate(); err != nil {
		return action.Result{}, err
	}

	maxAttempts := e.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var lastResult action.Result

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := a.Execute(ctx, e.dev)
		if err == nil && result.Success {
			return result, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = device.NewError(device.ErrNonZeroExit, "%s", result.Message)
			lastResult = result
		}

		if !e.isRetryable(lastErr.Error()) {
			break
		}

		log.Warn().
			Str("kind", string(a.Kind)).
			Int("attempt", attempt).
			Err(lastErr).
			Msg("action execution attempt failed")

		if attempt == maxAttempts {
			break
		}

		delay := e.cfg.Backoff.Delay(attempt)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return action.Result{}, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	if lastErr != nil {
		return lastResult, lastErr
	}
	return lastResult, nil
}

// ExecuteParsedAction applies the shape adapters to a loosely-typed
// field map (e.g. JSON arriving from an external caller rather than the
// model's free-form text) before constructing and executing the action.
func (e *Executor) ExecuteParsedAction(ctx context.Context, name string, fields map[string]interface{}, resolvePackage func(string) (string, error)) (action.Result, error) {
	a, err := action.FromFields(name, fields, resolvePackage)
	if err != nil {
		return action.Result{}, err
	}
	return e.ExecuteWithRetry(ctx, a)
}
