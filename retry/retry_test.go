/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/reviewflow/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		Attempts: 4,
		Initial:  time.Millisecond,
		Max:      5 * time.Millisecond,
		Jitter:   time.Millisecond,
	}
}

func always(error) bool { return true }

func TestDo_Success(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	got, err := retry.Do(context.Background(), fastPolicy(), "op", always, func(context.Context) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	if got != "ok" {
		t.Errorf("result: got = %q, wanted = %q", got, "ok")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls: got = %d, wanted = 1", n)
	}
}

func TestDo_RecoversFromTransientFailures(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	got, err := retry.Do(context.Background(), fastPolicy(), "op", retry.Transient, func(context.Context) (int, error) {
		if calls.Add(1) < 3 {
			return 0, &retry.StatusError{StatusCode: http.StatusTooManyRequests}
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	if got != 7 {
		t.Errorf("result: got = %d, wanted = 7", got)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls: got = %d, wanted = 3", n)
	}
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()
	transient := &retry.StatusError{StatusCode: http.StatusServiceUnavailable, Body: "busy"}

	var calls atomic.Int32
	_, err := retry.Do(context.Background(), fastPolicy(), "fetch", retry.Transient, func(context.Context) (string, error) {
		calls.Add(1)
		return "", transient
	})
	if err == nil {
		t.Fatal("Do() = nil, wanted error")
	}
	if n := calls.Load(); n != 4 {
		t.Errorf("calls: got = %d, wanted = 4", n)
	}
	var se *retry.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("errors.As(%v, StatusError) lost the status", err)
	}
	if want := "fetch failed after 4 attempts"; !strings.HasPrefix(err.Error(), want) {
		t.Errorf("error: got = %q, wanted prefix %q", err.Error(), want)
	}
}

func TestDo_PermanentFailure(t *testing.T) {
	t.Parallel()
	permanent := &retry.StatusError{StatusCode: http.StatusForbidden}

	var calls atomic.Int32
	_, err := retry.Do(context.Background(), fastPolicy(), "op", retry.Transient, func(context.Context) (string, error) {
		calls.Add(1)
		return "", permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Do() = %v, wanted %v", err, permanent)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls: got = %d, wanted = 1", n)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy()
	p.Initial = time.Minute
	p.Max = time.Minute

	_, err := retry.Do(ctx, p, "op", always, func(context.Context) (string, error) {
		cancel()
		return "", errors.New("flaky")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, wanted context.Canceled", err)
	}
}

func TestDo_SingleAttempt(t *testing.T) {
	t.Parallel()
	for _, p := range []retry.Policy{retry.None(), {}} {
		var calls atomic.Int32
		_, err := retry.Do(context.Background(), p, "op", always, func(context.Context) (string, error) {
			calls.Add(1)
			return "", errors.New("flaky")
		})
		if err == nil {
			t.Error("Do() = nil, wanted error")
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("calls with %+v: got = %d, wanted = 1", p, n)
		}
	}
}

func TestRetryableStatus(t *testing.T) {
	t.Parallel()
	for code, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusBadRequest:          false,
		http.StatusNotFound:            false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: false,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		529:                            true,
	} {
		if got := retry.RetryableStatus(code); got != want {
			t.Errorf("RetryableStatus(%d): got = %v, wanted = %v", code, got, want)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()
	if err := retry.Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
	if err := (retry.Policy{Jitter: -1}).Validate(); err == nil {
		t.Error("Validate() with negative jitter = nil, wanted error")
	}
}
