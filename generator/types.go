package generator

import (
	"strings"
	"time"
)

// Inputs are the user-supplied fields a proposal is built from.
type Inputs struct {
	CompanyName     string `json:"company_name"`
	ClientName      string `json:"client_name"`
	ProjectTitle    string `json:"project_title"`
	Goals           string `json:"goals"`
	Budget          string `json:"budget"`
	Timeline        string `json:"timeline"`
	BrandTone       string `json:"brand_tone"`
	Language        string `json:"language"`
	AdditionalNotes string `json:"additional_notes"`
	// PrivacyMode keeps the transcript out of audits and saved metadata.
	PrivacyMode bool `json:"privacy_mode"`
}

// Vars returns the template variables shared by every proposal prompt.
func (in Inputs) Vars() map[string]string {
	lang := strings.TrimSpace(in.Language)
	if lang == "" {
		lang = "English"
	}
	return map[string]string{
		"company_name":     in.CompanyName,
		"client_name":      in.ClientName,
		"project_title":    in.ProjectTitle,
		"goals":            in.Goals,
		"budget":           in.Budget,
		"timeline":         in.Timeline,
		"brand_tone":       in.BrandTone,
		"language":         lang,
		"additional_notes": in.AdditionalNotes,
	}
}

// TranscriptInsights is the structured digest of a sales call.
type TranscriptInsights struct {
	PainPoints    []string `json:"pain_points"`
	Commitments   []string `json:"commitments"`
	TimelineHints []string `json:"timeline_hints"`
	BudgetCues    []string `json:"budget_cues"`
	Quotes        []string `json:"quotes"`
}

// EmptyInsights returns insights with every list present and empty.
func EmptyInsights() TranscriptInsights {
	return TranscriptInsights{
		PainPoints:    []string{},
		Commitments:   []string{},
		TimelineHints: []string{},
		BudgetCues:    []string{},
		Quotes:        []string{},
	}
}

// Bullets flattens the insight lists in key order.
func (t TranscriptInsights) Bullets() []string {
	var out []string
	for _, list := range [][]string{t.PainPoints, t.Commitments, t.TimelineHints, t.BudgetCues, t.Quotes} {
		out = append(out, list...)
	}
	return out
}

// QualityAudit is the advisory review of a composed proposal.
type QualityAudit struct {
	Grade       int      `json:"grade"`
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
	ApplyNotes  []string `json:"apply_notes"`
}

// DefaultAudit is returned whenever the audit cannot be produced.
func DefaultAudit() QualityAudit {
	return QualityAudit{
		Grade:       70,
		Summary:     "Basic check complete.",
		Suggestions: []string{},
		ApplyNotes:  []string{},
	}
}

// Email is the copy-paste cover message for a proposal.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Summary string `json:"summary"`
	Pitch   string `json:"pitch"`
}

// Attachment describes a supporting document supplied with the inputs.
type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// HistoryEntry is an undo snapshot. Generation logic never reads it.
type HistoryEntry struct {
	Kind      string            `json:"kind"`
	Section   string            `json:"section,omitempty"`
	Title     string            `json:"title,omitempty"`
	Previous  string            `json:"previous,omitempty"`
	Sections  map[string]string `json:"sections,omitempty"`
	Diff      []DiffLine        `json:"diff,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

const (
	HistoryGenerate   = "generate"
	HistoryRegenerate = "regenerate"
	HistoryEdit       = "edit"
)
