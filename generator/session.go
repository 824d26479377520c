package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	noTranscript        = "No call transcript provided"
	transcriptNoBullets = "Transcript reviewed"
	noAttachments       = "No supporting docs"
)

// auditTranscriptLimit bounds the transcript excerpt sent for review.
const auditTranscriptLimit = 1000

// ErrNothingToUndo is returned by Undo on an empty history.
var ErrNothingToUndo = errors.New("nothing to undo")

// Session owns one proposal across generate, regenerate, edit and review.
// Methods are serialized; the document and history change only when an
// operation completes.
type Session struct {
	ID string

	mu          sync.Mutex
	inputs      Inputs
	transcript  string
	insights    TranscriptInsights
	attachments string
	document    Document
	history     []HistoryEntry
	audit       *QualityAudit
	email       *Email
	proposalID  string
	agent       *Agent
	now         func() time.Time
}

// NewSession creates a session; nothing is generated yet.
func NewSession(id string, inputs Inputs, agent *Agent) *Session {
	return &Session{
		ID:          id,
		inputs:      inputs,
		insights:    EmptyInsights(),
		attachments: noAttachments,
		document:    NewDocument(inputs.ProjectTitle),
		agent:       agent,
		now:         time.Now,
	}
}

// RestoreSession rebuilds a session from saved sections and history,
// normalizing every loaded section.
func RestoreSession(id string, inputs Inputs, title string, sections map[string]string, history []HistoryEntry, proposalID string, agent *Agent) *Session {
	s := NewSession(id, inputs, agent)
	if title == "" {
		title = inputs.ProjectTitle
	}
	s.document = DocumentFromSections(title, sections)
	s.history = append([]HistoryEntry(nil), history...)
	s.proposalID = proposalID
	return s
}

// SessionView is a consistent copy of session state.
type SessionView struct {
	ID         string             `json:"session_id"`
	Inputs     Inputs             `json:"inputs"`
	Insights   TranscriptInsights `json:"insights"`
	Document   Document           `json:"document"`
	Markdown   string             `json:"markdown"`
	History    []HistoryEntry     `json:"history"`
	Audit      *QualityAudit      `json:"audit,omitempty"`
	Email      *Email             `json:"email,omitempty"`
	ProposalID string             `json:"proposal_id,omitempty"`
	Flags      []string           `json:"flags,omitempty"`
}

// View returns a snapshot safe to read without the session lock.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() SessionView {
	return SessionView{
		ID:         s.ID,
		Inputs:     s.inputs,
		Insights:   s.insights,
		Document:   s.document.Clone(),
		Markdown:   s.document.Markdown(),
		History:    append([]HistoryEntry(nil), s.history...),
		Audit:      s.audit,
		Email:      s.email,
		ProposalID: s.proposalID,
		Flags:      SanityCheck(s.document, s.inputs),
	}
}

// Generate summarizes the transcript (if any) and drafts the whole proposal.
// The previous section set is pushed onto the history first.
func (s *Session) Generate(ctx context.Context, transcript string, attachments []Attachment) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := NormalizeText(transcript)
	insights := EmptyInsights()
	insightsText := noTranscript
	if cleaned != "" {
		insights = s.agent.SummarizeTranscript(ctx, cleaned)
		insightsText = InsightsText(insights)
	}
	attachmentsText := AttachmentsSummary(attachments)

	doc, err := s.agent.GenerateFull(ctx, s.inputs, insightsText, attachmentsText)
	if err != nil {
		return Document{}, err
	}

	s.history = append(s.history, HistoryEntry{
		Kind:      HistoryGenerate,
		Title:     s.document.Title,
		Sections:  s.document.Clone().Sections,
		CreatedAt: s.now(),
	})
	s.transcript = cleaned
	s.insights = insights
	s.attachments = attachmentsText
	s.document = doc
	s.audit = nil
	return doc.Clone(), nil
}

// InsightsText renders insights as the bullet block used in prompts.
func InsightsText(t TranscriptInsights) string {
	bullets := t.Bullets()
	if len(bullets) == 0 {
		return transcriptNoBullets
	}
	return "- " + strings.Join(bullets, "\n- ")
}

// AttachmentsSummary lists supporting documents one per line.
func AttachmentsSummary(attachments []Attachment) string {
	if len(attachments) == 0 {
		return noAttachments
	}
	lines := make([]string, 0, len(attachments))
	for _, a := range attachments {
		lines = append(lines, fmt.Sprintf("%s (%d bytes)", a.Name, a.Size))
	}
	return strings.Join(lines, "\n")
}

func (s *Session) sectionVars() map[string]string {
	vars := s.inputs.Vars()
	if s.transcript == "" {
		vars["transcript_insights"] = noTranscript
	} else {
		vars["transcript_insights"] = InsightsText(s.insights)
	}
	vars["attachments_summary"] = s.attachments
	return vars
}

// Regenerate rewrites one section, sending its current draft as the prior
// turn. Failures leave the document untouched and are returned to the caller.
func (s *Session) Regenerate(ctx context.Context, section string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := CanonicalSection(section)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	var history []Message
	if current := s.document.Sections[name]; current != "" {
		history = append(history, Message{Role: RoleAssistant, Content: EnsureHeading(name, current)})
	}
	body, err := s.agent.RegenerateSection(ctx, name, s.sectionVars(), history...)
	if err != nil {
		return "", err
	}
	s.replaceSection(HistoryRegenerate, name, body)
	return s.document.Sections[name], nil
}

// Edit replaces a section with user-written markdown.
func (s *Session) Edit(section, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := CanonicalSection(section)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	s.replaceSection(HistoryEdit, name, body)
	return s.document.Sections[name], nil
}

func (s *Session) replaceSection(kind, name, body string) {
	prev := s.document.Sections[name]
	_ = s.document.Set(name, body)
	s.history = append(s.history, HistoryEntry{
		Kind:      kind,
		Section:   name,
		Previous:  prev,
		Diff:      DiffSections(prev, s.document.Sections[name]),
		CreatedAt: s.now(),
	})
}

// Undo restores the state recorded by the latest history entry and removes it.
func (s *Session) Undo() (HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return HistoryEntry{}, ErrNothingToUndo
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]

	switch last.Kind {
	case HistoryGenerate:
		title := last.Title
		if title == "" {
			title = s.document.Title
		}
		s.document = DocumentFromSections(title, last.Sections)
	default:
		_ = s.document.Set(last.Section, last.Previous)
	}
	return last, nil
}

// Audit runs the quality review over the composed document. The transcript
// excerpt is omitted in privacy mode.
func (s *Session) Audit(ctx context.Context) QualityAudit {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := AuditInputs{Inputs: s.inputs}
	if !s.inputs.PrivacyMode {
		in.Transcript = truncateRunes(s.transcript, auditTranscriptLimit)
	}
	audit := s.agent.AuditQuality(ctx, in, s.document.Markdown())
	s.audit = &audit
	return audit
}

// CreateEmail drafts the cover e-mail.
func (s *Session) CreateEmail(ctx context.Context) Email {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := s.agent.CreateEmail(ctx, s.inputs, s.document)
	s.email = &email
	return email
}

// MarkSaved records the id of the stored snapshot.
func (s *Session) MarkSaved(proposalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposalID = proposalID
}

// SavedTranscript returns the transcript to keep with a saved snapshot; it
// is empty in privacy mode.
func (s *Session) SavedTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inputs.PrivacyMode {
		return ""
	}
	return s.transcript
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
