package generator

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical section names. Templates, normalization and exports all key on these.
const (
	SectionCoverPage   = "Cover Page"
	SectionExecSummary = "Executive Summary"
	SectionProblem     = "Problem & Opportunity"
	SectionSolution    = "Proposed Solution"
	SectionScope       = "Scope of Work & Deliverables"
	SectionTimeline    = "Timeline & Milestones"
	SectionPricing     = "Pricing & Payment Terms"
	SectionROI         = "ROI / Impact / Metrics"
	SectionRisks       = "Risks & Mitigations"
	SectionTerms       = "Terms & Conditions"
	SectionNextSteps   = "Next Steps & CTA"
	SectionAppendix    = "Appendix"
)

var sectionOrder = []string{
	SectionCoverPage,
	SectionExecSummary,
	SectionProblem,
	SectionSolution,
	SectionScope,
	SectionTimeline,
	SectionPricing,
	SectionROI,
	SectionRisks,
	SectionTerms,
	SectionNextSteps,
	SectionAppendix,
}

// ErrUnknownSection is returned for names outside the canonical set.
var ErrUnknownSection = errors.New("unknown section")

// SectionNames returns the canonical section order.
func SectionNames() []string {
	out := make([]string, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// CanonicalSection maps a section name to its canonical spelling, ignoring
// case and surrounding whitespace.
func CanonicalSection(name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, s := range sectionOrder {
		if strings.ToLower(s) == want {
			return s, true
		}
	}
	return "", false
}

// Document is a proposal: a title plus one markdown body per canonical section.
// Bodies are stored normalized and without their leading section heading.
type Document struct {
	Title    string            `json:"title"`
	Sections map[string]string `json:"sections"`
}

// NewDocument returns an empty document with the given title.
func NewDocument(title string) Document {
	return Document{Title: title, Sections: make(map[string]string)}
}

// Set normalizes body and stores it under the canonical name.
func (d *Document) Set(name, body string) error {
	canon, ok := CanonicalSection(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	if d.Sections == nil {
		d.Sections = make(map[string]string)
	}
	d.Sections[canon] = NormalizeSection(canon, body)
	return nil
}

// Get returns the stored body for a section.
func (d Document) Get(name string) (string, bool) {
	canon, ok := CanonicalSection(name)
	if !ok {
		return "", false
	}
	body, ok := d.Sections[canon]
	return body, ok
}

// Empty reports whether the document has no sections.
func (d Document) Empty() bool {
	return len(d.Sections) == 0
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := NewDocument(d.Title)
	for k, v := range d.Sections {
		out.Sections[k] = v
	}
	return out
}

// Ordered returns the present sections in canonical order.
func (d Document) Ordered() []Section {
	var out []Section
	for _, name := range sectionOrder {
		body, ok := d.Sections[name]
		if !ok {
			continue
		}
		out = append(out, Section{Name: name, Body: body})
	}
	return out
}

// Markdown composes the full proposal in canonical order.
func (d Document) Markdown() string {
	return ComposeMarkdown(d.Sections)
}

// Section is one named body in canonical order.
type Section struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// ComposeMarkdown normalizes each canonical section, ensures it opens with a
// heading and joins them in canonical order. Non-canonical keys are ignored.
func ComposeMarkdown(sections map[string]string) string {
	blocks := make([]string, 0, len(sections))
	for _, name := range sectionOrder {
		body, ok := sections[name]
		if !ok {
			continue
		}
		blocks = append(blocks, EnsureHeading(name, NormalizeSection(name, body)))
	}
	return strings.Join(blocks, "\n\n")
}

// DocumentFromSections builds a document from an arbitrary mapping, keeping
// only keys that resolve to canonical names.
func DocumentFromSections(title string, sections map[string]string) Document {
	doc := NewDocument(title)
	for name, body := range sections {
		_ = doc.Set(name, body)
	}
	return doc
}
