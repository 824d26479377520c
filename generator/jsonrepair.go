package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecoverableJSON is returned when neither the raw text nor its single
// repair round-trip parses.
var ErrUnrecoverableJSON = errors.New("unrecoverable json")

const repairTemplate = `You will be given a possibly malformed JSON string. Fix it to be valid JSON. Return ONLY the corrected JSON.
Input:
{text}`

// StripFences removes a leading code fence with its optional language tag and
// a trailing fence.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		tag := 0
		for tag < len(s) && isTagByte(s[tag]) {
			tag++
		}
		if tag == len(s) || s[tag] == '\n' || s[tag] == '\r' || s[tag] == ' ' || s[tag] == '\t' {
			s = s[tag:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isTagByte(c byte) bool {
	return c == '-' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// ExtractJSON parses a completion as JSON. On failure it asks the completion
// capability once to repair the text, so an extraction costs at most one
// extra call.
func ExtractJSON(ctx context.Context, c Completion, raw string) (json.RawMessage, error) {
	cleaned := StripFences(raw)
	if cleaned != "" && json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}

	prompt, err := buildPrompt(repairTemplate, map[string]string{"text": raw})
	if err != nil {
		return nil, err
	}
	fixed, err := c.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: repair call: %w", ErrUnrecoverableJSON, err)
	}
	fixed = StripFences(fixed)
	if fixed == "" || !json.Valid([]byte(fixed)) {
		return nil, fmt.Errorf("%w: repaired text is still invalid", ErrUnrecoverableJSON)
	}
	return json.RawMessage(fixed), nil
}

// DecodeJSON extracts JSON from raw and decodes it into a T.
func DecodeJSON[T any](ctx context.Context, c Completion, raw string) (T, error) {
	var zero T
	msg, err := ExtractJSON(ctx, c, raw)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnrecoverableJSON, err)
	}
	return v, nil
}
