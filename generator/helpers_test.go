package generator

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type reply struct {
	text string
	err  error
}

// scriptedLLM answers calls from a fixed list of replies and records prompts.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []reply
	prompts []Prompt
}

func (s *scriptedLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type failingLLM struct{ err error }

func (f failingLLM) Complete(context.Context, Prompt) (string, error) { return "", f.err }

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func noSleep(context.Context, time.Duration) error { return nil }

func newTestCompleter(t *testing.T, llm LLMClient) *Completer {
	t.Helper()
	c, err := NewCompleter(llm, 3, time.Second, noSleep, discardLogger())
	require.NoError(t, err)
	return c
}

func newTestAgent(t *testing.T, llm LLMClient) *Agent {
	t.Helper()
	a, err := NewAgent(newTestCompleter(t, llm), nil, false, discardLogger())
	require.NoError(t, err)
	return a
}

func testInputs() Inputs {
	return Inputs{
		CompanyName:  "Acme",
		ClientName:   "Globex",
		ProjectTitle: "Website Revamp",
		Goals:        "Modernize the marketing site",
		Budget:       "$50k",
		Timeline:     "3 months",
		BrandTone:    "Professional",
	}
}

// funcLLM answers each prompt with a function of it.
type funcLLM func(Prompt) (string, error)

func (f funcLLM) Complete(_ context.Context, prompt Prompt) (string, error) { return f(prompt) }
