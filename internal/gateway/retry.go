package gateway

import (
	"strings"
	"time"
)

// Error-message markers used to classify a failed turn. Store and network
// hiccups are worth another attempt; rejections never are. Anything not
// listed is treated as transient, so an unknown failure gets retried.
var (
	transientMarkers = []string{"connection refused", "connection reset", "timeout", "temporary failure"}
	permanentMarkers = []string{"invalid", "unauthorized", "forbidden"}
)

func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return false
		}
	}
	return true
}

// RetryPolicy governs how a lane re-runs a failed turn: capped exponential
// backoff, transient errors only.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy is what NewQueue installs: 3 attempts, starting at 1s
// and doubling, capped at 30s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// ShouldRetry reports whether the given attempt may be followed by another.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	return attempt <= p.MaxAttempts && retryable(err)
}

// NextDelay returns the backoff before the attempt after the given one
// (1-indexed), doubling per Multiplier and capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Execute runs fn until it succeeds, fails permanently, or MaxAttempts is
// exhausted; the last error is returned in the latter cases.
func (p *RetryPolicy) Execute(fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !p.ShouldRetry(err, attempt) || attempt == p.MaxAttempts {
			return err
		}
		time.Sleep(p.NextDelay(attempt))
	}
}
