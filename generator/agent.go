package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Agent drafts, regenerates and reviews proposal sections through a
// Completion. It holds no session state.
type Agent struct {
	completion Completion
	templates  Templates
	verbose    bool
	logger     *log.Logger
}

// NewAgent builds an Agent. A nil templates uses the embedded defaults and a
// nil logger uses log.Default().
func NewAgent(completion Completion, templates *Templates, verbose bool, logger *log.Logger) (*Agent, error) {
	if completion == nil {
		return nil, errors.New("completion client is required")
	}
	t := DefaultTemplates()
	if templates != nil {
		t = *templates
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{completion: completion, templates: t, verbose: verbose, logger: logger}, nil
}

func (a *Agent) infof(format string, args ...interface{}) {
	if !a.verbose {
		return
	}
	a.logger.Printf("[INFO] "+format, args...)
}

func (a *Agent) warnf(format string, args ...interface{}) {
	a.logger.Printf("[WARN] "+format, args...)
}

// SummarizeTranscript extracts call insights. Failures are logged and yield
// empty insights; the result always has every list.
func (a *Agent) SummarizeTranscript(ctx context.Context, transcript string) TranscriptInsights {
	prompt, err := buildPrompt(a.templates.Summarize, map[string]string{"transcript": transcript})
	if err != nil {
		a.warnf("transcript insights unavailable: %v", err)
		return EmptyInsights()
	}
	raw, err := a.completion.Complete(ctx, prompt)
	if err != nil {
		a.warnf("transcript insights unavailable: %v", err)
		return EmptyInsights()
	}
	msg, err := ExtractJSON(ctx, a.completion, raw)
	if err != nil {
		a.warnf("transcript insights unavailable: %v", err)
		return EmptyInsights()
	}
	return decodeInsights(msg)
}

func decodeInsights(msg json.RawMessage) TranscriptInsights {
	out := EmptyInsights()
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return out
	}
	out.PainPoints = decodeStringList(fields["pain_points"])
	out.Commitments = decodeStringList(fields["commitments"])
	out.TimelineHints = decodeStringList(fields["timeline_hints"])
	out.BudgetCues = decodeStringList(fields["budget_cues"])
	out.Quotes = decodeStringList(fields["quotes"])
	return out
}

// decodeStringList accepts a list of scalars or a single string; anything else
// is an empty list.
func decodeStringList(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			out = append(out, single)
		}
		return out
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		case nil:
		case map[string]any, []any:
			b, err := json.Marshal(v)
			if err == nil {
				out = append(out, string(b))
			}
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

// OutcomeKind tags the result of a whole-document attempt.
type OutcomeKind int

const (
	OutcomeComplete OutcomeKind = iota
	OutcomePartialFailure
)

// FullOutcome is either a complete document or the reason the single-call
// draft could not be used.
type FullOutcome struct {
	Kind     OutcomeKind
	Document Document
	Reason   error
}

type fullPayload struct {
	Title    string                     `json:"title"`
	Sections map[string]json.RawMessage `json:"sections"`
}

// GenerateFull drafts the whole proposal in one call. When that draft is
// unusable every canonical section is synthesized on its own, and a section
// that still fails is left empty. The only error returned is a template that
// cannot be rendered, main or per section.
func (a *Agent) GenerateFull(ctx context.Context, inputs Inputs, insights, attachments string) (Document, error) {
	vars := inputs.Vars()
	vars["transcript_insights"] = insights
	vars["attachments_summary"] = attachments

	prompt, err := buildPrompt(a.templates.Main, vars)
	if err != nil {
		return Document{}, fmt.Errorf("rendering main prompt: %w", err)
	}

	title := strings.TrimSpace(inputs.ProjectTitle)
	if title == "" {
		title = "Proposal"
	}

	outcome := a.draftFull(ctx, prompt, title)
	switch outcome.Kind {
	case OutcomeComplete:
		a.infof("full draft complete with %d sections", len(outcome.Document.Sections))
		return outcome.Document, nil
	default:
		a.warnf("full draft unusable, synthesizing sections one by one: %v", outcome.Reason)
		return a.synthesizeSections(ctx, vars, title)
	}
}

func (a *Agent) draftFull(ctx context.Context, prompt Prompt, title string) FullOutcome {
	raw, err := a.completion.Complete(ctx, prompt)
	if err != nil {
		return FullOutcome{Kind: OutcomePartialFailure, Reason: err}
	}
	payload, err := DecodeJSON[fullPayload](ctx, a.completion, raw)
	if err != nil {
		return FullOutcome{Kind: OutcomePartialFailure, Reason: err}
	}

	if t := strings.TrimSpace(payload.Title); t != "" {
		title = t
	}
	doc := NewDocument(title)
	for name, rawBody := range payload.Sections {
		var body string
		if err := json.Unmarshal(rawBody, &body); err != nil {
			continue
		}
		if err := doc.Set(name, body); err != nil {
			a.infof("dropping section %q from full draft", name)
		}
	}
	if doc.Empty() {
		return FullOutcome{Kind: OutcomePartialFailure, Reason: errors.New("full draft has no usable sections")}
	}
	for _, name := range sectionOrder {
		if _, ok := doc.Sections[name]; !ok {
			doc.Sections[name] = ""
		}
	}
	return FullOutcome{Kind: OutcomeComplete, Document: doc}
}

// synthesizeSections writes every section on its own. Completion failures
// leave the section empty; a template that cannot be rendered stops the run.
func (a *Agent) synthesizeSections(ctx context.Context, vars map[string]string, title string) (Document, error) {
	doc := NewDocument(title)
	for _, name := range sectionOrder {
		body, err := a.RegenerateSection(ctx, name, vars)
		if errors.Is(err, ErrMissingContextKey) {
			return Document{}, err
		}
		if err != nil {
			a.warnf("section %q unavailable: %v", name, err)
			body = ""
		}
		_ = doc.Set(name, body)
	}
	return doc, nil
}

// RegenerateSection writes one section from its registered template, or the
// generic one. history carries earlier turns, such as the current draft of the
// section. Completion failures are returned to the caller.
func (a *Agent) RegenerateSection(ctx context.Context, name string, vars map[string]string, history ...Message) (string, error) {
	canon, ok := CanonicalSection(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	v := make(map[string]string, len(vars)+1)
	for k, val := range vars {
		v[k] = val
	}
	v["section_name"] = canon

	prompt, err := buildPrompt(a.templates.SectionTemplate(canon), v)
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", canon, err)
	}
	prompt.History = history
	out, err := a.completion.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	a.infof("regenerated section %q (%d bytes)", canon, len(out))
	return unwrapMarkdownFence(out), nil
}

// unwrapMarkdownFence removes a ```markdown wrapper around a whole body.
func unwrapMarkdownFence(text string) string {
	s := strings.TrimSpace(text)
	for _, open := range []string{"```markdown", "```md"} {
		if strings.HasPrefix(s, open+"\n") && strings.HasSuffix(s, "```") {
			s = strings.TrimPrefix(s, open)
			s = strings.TrimSuffix(s, "```")
			return strings.TrimSpace(s)
		}
	}
	return text
}

// AuditInputs is what the audit prompt sees of the session.
type AuditInputs struct {
	Inputs
	Transcript string `json:"transcript,omitempty"`
}

type auditPayload struct {
	Grade       json.RawMessage `json:"grade"`
	Summary     string          `json:"summary"`
	Suggestions json.RawMessage `json:"suggestions"`
	ApplyNotes  json.RawMessage `json:"apply_notes"`
}

// AuditQuality reviews the composed proposal. Any failure yields DefaultAudit.
func (a *Agent) AuditQuality(ctx context.Context, inputs AuditInputs, markdown string) QualityAudit {
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		a.warnf("quality audit unavailable: %v", err)
		return DefaultAudit()
	}
	prompt, err := buildPrompt(a.templates.Audit, map[string]string{
		"inputs_json": string(inputsJSON),
		"proposal_md": markdown,
	})
	if err != nil {
		a.warnf("quality audit unavailable: %v", err)
		return DefaultAudit()
	}
	raw, err := a.completion.Complete(ctx, prompt)
	if err != nil {
		a.warnf("quality audit unavailable: %v", err)
		return DefaultAudit()
	}
	payload, err := DecodeJSON[auditPayload](ctx, a.completion, raw)
	if err != nil {
		a.warnf("quality audit unavailable: %v", err)
		return DefaultAudit()
	}

	audit := DefaultAudit()
	var grade float64
	if err := json.Unmarshal(payload.Grade, &grade); err == nil {
		audit.Grade = clampGrade(grade)
	}
	audit.Summary = strings.TrimSpace(payload.Summary)
	audit.Suggestions = decodeStringList(payload.Suggestions)
	audit.ApplyNotes = decodeStringList(payload.ApplyNotes)
	return audit
}

func clampGrade(g float64) int {
	switch {
	case g < 0:
		return 0
	case g > 100:
		return 100
	default:
		return int(g + 0.5)
	}
}

// CreateEmail drafts the cover e-mail for a proposal, falling back to a plain
// template when the completion cannot be used.
func (a *Agent) CreateEmail(ctx context.Context, inputs Inputs, doc Document) Email {
	exec, _ := doc.Get(SectionExecSummary)
	subject := "Proposal: " + inputs.ProjectTitle
	fallback := Email{Subject: subject, Body: "Please find attached.", Summary: leadParagraph(exec)}

	vars := inputs.Vars()
	vars["executive_summary"] = compactExcerpt(exec, 1200)
	prompt, err := buildPrompt(a.templates.Email, vars)
	if err != nil {
		a.warnf("email draft unavailable: %v", err)
		return fallback
	}
	raw, err := a.completion.Complete(ctx, prompt)
	if err != nil {
		a.warnf("email draft unavailable: %v", err)
		return fallback
	}
	email, err := DecodeJSON[Email](ctx, a.completion, raw)
	if err != nil {
		a.warnf("email draft unavailable: %v", err)
		return fallback
	}
	if strings.TrimSpace(email.Subject) == "" {
		email.Subject = subject
	}
	return email
}
