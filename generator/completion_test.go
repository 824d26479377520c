package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestCompleterRetriesWithLinearBackoff(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{
		{err: errors.New("rate limited")},
		{err: errors.New("timeout")},
		{text: "ok"},
	}}
	rec := &sleepRecorder{}
	c, err := NewCompleter(llm, 3, time.Second, rec.sleep, discardLogger())
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, llm.calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestCompleterExhaustsRetries(t *testing.T) {
	backendErr := errors.New("backend down")
	rec := &sleepRecorder{}
	calls := 0
	llm := funcLLM(func(Prompt) (string, error) {
		calls++
		return "", backendErr
	})
	c, err := NewCompleter(llm, 3, time.Second, rec.sleep, discardLogger())
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Prompt{User: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.ErrorIs(t, err, backendErr)

	var ce *CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Attempts)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.waits, 2, "no wait after the final attempt")
}

func TestCompleterStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &scriptedLLM{replies: []reply{{err: errors.New("fail")}, {text: "never"}}}
	c, err := NewCompleter(llm, 3, time.Second, nil, discardLogger())
	require.NoError(t, err)

	_, err = c.Complete(ctx, Prompt{User: "hi"})
	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, llm.calls())
}

func TestCompleterFoldsPunctuation(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "ok"}}}
	c := newTestCompleter(t, llm)

	_, err := c.Complete(context.Background(), Prompt{
		System:  "Be “brief”",
		User:    "Client’s goals — growth…",
		History: []Message{{Role: RoleUser, Content: "‘earlier’"}},
	})
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	got := llm.prompts[0]
	assert.Equal(t, `Be "brief"`, got.System)
	assert.Equal(t, "Client's goals - growth...", got.User)
	assert.Equal(t, "'earlier'", got.History[0].Content)
}

func TestNewCompleterDefaults(t *testing.T) {
	_, err := NewCompleter(nil, 3, time.Second, nil, nil)
	assert.Error(t, err)

	c, err := NewCompleter(MockLLM{}, 0, -time.Second, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, c.maxRetries)
	assert.Equal(t, DefaultBackoff, c.backoff)
}
