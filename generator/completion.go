package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second
)

// ErrCompletionFailed marks a completion that exhausted its retries.
var ErrCompletionFailed = errors.New("completion failed")

// CompletionError carries the last backend error after all attempts failed.
type CompletionError struct {
	Attempts int
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("llm generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

func (e *CompletionError) Is(target error) bool {
	return target == ErrCompletionFailed
}

// Completion is the text-completion capability the pipeline depends on.
type Completion interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Completer wraps an LLMClient with bounded retries and linear backoff. It is
// the only component that calls the backend.
type Completer struct {
	llm        LLMClient
	maxRetries int
	backoff    time.Duration
	sleep      SleepFunc
	logger     *log.Logger
}

// NewCompleter returns a Completer. Non-positive maxRetries or negative backoff
// fall back to the defaults; a nil sleep waits on a timer.
func NewCompleter(llm LLMClient, maxRetries int, backoff time.Duration, sleep SleepFunc, logger *log.Logger) (*Completer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	if sleep == nil {
		sleep = sleepContext
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Completer{
		llm:        llm,
		maxRetries: maxRetries,
		backoff:    backoff,
		sleep:      sleep,
		logger:     logger,
	}, nil
}

// Complete sends the prompt, retrying failed attempts. After failure n it
// waits backoff*n before the next attempt.
func (c *Completer) Complete(ctx context.Context, prompt Prompt) (string, error) {
	safe := Prompt{
		System:  FoldPunctuation(prompt.System),
		User:    FoldPunctuation(prompt.User),
		History: make([]Message, len(prompt.History)),
	}
	for i, m := range prompt.History {
		safe.History[i] = Message{Role: m.Role, Content: FoldPunctuation(m.Content)}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		out, err := c.llm.Complete(ctx, safe)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.logger.Printf("[WARN] llm error (%d/%d): %v", attempt, c.maxRetries, err)
		if attempt == c.maxRetries {
			break
		}
		if err := c.sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
			return "", &CompletionError{Attempts: attempt, Err: err}
		}
	}
	return "", &CompletionError{Attempts: c.maxRetries, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
