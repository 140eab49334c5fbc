/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry retries transient failures of remote calls with capped
// exponential backoff and random jitter.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
)

// Policy bounds how often and how slowly a call is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first. Values below 1 mean 1.
	Attempts int
	// Initial is the delay before the second attempt.
	Initial time.Duration
	// Max caps the delay between attempts.
	Max time.Duration
	// Jitter is the upper bound of random delay added to each backoff.
	Jitter time.Duration
}

// Default suits rate limited HTTP APIs such as model providers and code hosts.
func Default() Policy {
	return Policy{
		Attempts: 4,
		Initial:  500 * time.Millisecond,
		Max:      30 * time.Second,
		Jitter:   250 * time.Millisecond,
	}
}

// None performs a single attempt.
func None() Policy { return Policy{Attempts: 1} }

// Validate checks the policy for negative durations.
func (p Policy) Validate() error {
	switch {
	case p.Attempts < 0:
		return errors.New("attempts cannot be negative")
	case p.Initial < 0:
		return errors.New("initial backoff cannot be negative")
	case p.Max < 0:
		return errors.New("max backoff cannot be negative")
	case p.Jitter < 0:
		return errors.New("jitter cannot be negative")
	}
	return nil
}

// backoff returns the delay after the given zero-based failed attempt.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.Initial << attempt
	if d < p.Initial || (p.Max > 0 && d > p.Max) {
		d = p.Max
	}
	if p.Jitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(p.Jitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Do calls fn until it succeeds, returns an error the classifier rejects,
// the attempts run out, or ctx ends.
func Do[T any](ctx context.Context, p Policy, operation string, retryable Classifier, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)

	var (
		result T
		err    error
	)
	for attempt := range attempts {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return result, err
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.backoff(attempt)
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("attempts", attempts).
			With("backoff", wait).
			With("error", err.Error()).
			Warn("Transient failure, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
	return result, fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
}

// StatusError carries the HTTP status of a failed call so it can be classified.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// RetryableStatus reports whether an HTTP status signals a transient condition.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529: // provider overloaded
		return true
	}
	return false
}

// Transient classifies *StatusError values by status code.
func Transient(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && RetryableStatus(se.StatusCode)
}
