package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n[1, 2]\n```", "[1, 2]"},
		{"no fence", "  {\"a\": 1}  ", `{"a": 1}`},
		{"trailing only", "{\"a\": 1}\n```", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractJSONValidNeedsNoRepair(t *testing.T) {
	llm := &scriptedLLM{}
	msg, err := ExtractJSON(context.Background(), llm, "```json\n{\"title\": \"X\"}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "X"}`, string(msg))
	assert.Equal(t, 0, llm.calls())
}

func TestExtractJSONRepairsOnce(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "```json\n{\"a\": 1}\n```"}}}
	msg, err := ExtractJSON(context.Background(), llm, "{a:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(msg))
	require.Equal(t, 1, llm.calls())
	assert.Contains(t, llm.prompts[0].User, "{a:1")
}

func TestExtractJSONUnrecoverable(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "still {broken"}}}
	_, err := ExtractJSON(context.Background(), llm, "{a:1")
	assert.ErrorIs(t, err, ErrUnrecoverableJSON)
	assert.Equal(t, 1, llm.calls())

	failing := &scriptedLLM{replies: []reply{{err: errors.New("down")}}}
	_, err = ExtractJSON(context.Background(), failing, "")
	assert.ErrorIs(t, err, ErrUnrecoverableJSON)
	assert.Equal(t, 1, failing.calls())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Subject string `json:"subject"`
	}
	got, err := DecodeJSON[payload](context.Background(), &scriptedLLM{}, `{"subject": "Hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Subject)

	_, err = DecodeJSON[payload](context.Background(), &scriptedLLM{}, `["not", "an", "object"]`)
	assert.ErrorIs(t, err, ErrUnrecoverableJSON)
}
