package generator

import (
	"errors"
	"fmt"
	"strings"
)

// Prompt is the message set sent to the LLM.
type Prompt struct {
	System  string
	User    string
	History []Message
}

// Message is an optional prior turn.
type Message struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const systemPrompt = "You are a senior proposal writer for a professional services firm. Follow the output format exactly and never add commentary outside it."

// ErrMissingContextKey marks a template placeholder with no value.
var ErrMissingContextKey = errors.New("missing context key")

// MissingContextKeyError names the placeholder that could not be filled.
type MissingContextKeyError struct {
	Key string
}

func (e *MissingContextKeyError) Error() string {
	return fmt.Sprintf("missing context key %q", e.Key)
}

func (e *MissingContextKeyError) Is(target error) bool {
	return target == ErrMissingContextKey
}

// Render fills {name} placeholders in tmpl from vars. "{{" and "}}" produce
// literal braces; a "{" that does not open a placeholder is kept as is.
// Any placeholder without an entry in vars fails the whole render.
func Render(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := placeholderEnd(tmpl, i+1)
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			key := tmpl[i+1 : end]
			val, ok := vars[key]
			if !ok {
				return "", &MissingContextKeyError{Key: key}
			}
			b.WriteString(val)
			i = end
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// placeholderEnd returns the index of the closing brace of an identifier
// starting at start, or -1.
func placeholderEnd(s string, start int) int {
	for j := start; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '}':
			if j == start {
				return -1
			}
			return j
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
		default:
			return -1
		}
	}
	return -1
}

// buildPrompt renders tmpl into a user prompt under the shared system prompt.
func buildPrompt(tmpl string, vars map[string]string) (Prompt, error) {
	user, err := Render(tmpl, vars)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: systemPrompt, User: user}, nil
}
