// Package retry bounds the attempts made against an unreliable content source.
package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrExhausted matches any *ExhaustedError via errors.Is.
var ErrExhausted = errors.New("retry: attempts exhausted")

// ExhaustedError is returned when every attempt failed or came back empty.
type ExhaustedError struct {
	Attempts int
	Last     error // last fetch error; nil when the final attempt returned empty content
}

func (e *ExhaustedError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("all %d attempts failed: empty result", e.Attempts)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Policy controls Do. The zero value makes a single attempt.
type Policy struct {
	Attempts int           // values below 1 mean 1
	Delay    time.Duration // base delay before the second attempt; doubles after
	// Sleep defaults to time.Sleep. Tests replace it to observe waits.
	Sleep func(time.Duration)
	// OnRetry, when set, is called before each wait with the upcoming attempt
	// number (2-based) and the delay.
	OnRetry func(attempt int, delay time.Duration, lastErr error)
}

// Backoff returns the wait before attempt (1-based): 0 for the first,
// Delay*2^(attempt-2) after that.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return p.Delay * time.Duration(1<<(attempt-2))
}

// Do calls fetch until it returns non-empty content or the attempts run out.
// It blocks for the whole backoff schedule and cannot be cancelled. On
// exhaustion it returns an *ExhaustedError wrapping the last fetch error.
func Do(p Policy, fetch func() (string, error)) (string, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			d := p.Backoff(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt, d, last)
			}
			sleep(d)
		}
		content, err := fetch()
		if err == nil && content != "" {
			return content, nil
		}
		last = err
	}
	return "", &ExhaustedError{Attempts: attempts, Last: last}
}
