package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockLLM is an offline stand-in for local runs; it never calls a model.
// It recognizes the built-in prompts and answers each in the expected shape.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	user := prompt.User
	switch {
	case strings.Contains(user, "Extract key insights"):
		return `{"pain_points": ["Manual reporting takes days"], "commitments": ["Weekly status call"], "timeline_hints": ["Launch before Q3"], "budget_cues": ["Approved budget is fixed"], "quotes": ["We need this to just work."]}`, nil
	case strings.Contains(user, "proposal QA expert"):
		return `{"grade": 82, "summary": "Clear and consistent draft.", "suggestions": ["Quantify the ROI claims."], "apply_notes": []}`, nil
	case strings.Contains(user, "keys subject, body, summary, pitch"):
		return `{"subject": "Your proposal is ready for review", "body": "Hello,\n\nPlease find our proposal attached.", "summary": "A phased delivery plan within budget.", "pitch": "We deliver the outcome you need on time."}`, nil
	case strings.Contains(user, "Return ONLY a JSON object with this shape"):
		sections := make(map[string]string, len(sectionOrder))
		for _, name := range sectionOrder {
			sections[name] = mockSectionBody(name)
		}
		out, err := json.Marshal(map[string]any{"title": "Proposal", "sections": sections})
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		return "Generated content based on the prompt:\n\n```\n" + user + "\n```", nil
	}
}

func mockSectionBody(name string) string {
	if name == SectionTimeline {
		return "| Milestone | Date |\n| --- | --- |\n| Kickoff | Week 1 |\n| Launch | Week 8 |"
	}
	return fmt.Sprintf("Draft content for %s.", strings.ToLower(name))
}
