package generator

import (
	"embed"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.txt prompts/sections/*.txt
var embeddedPrompts embed.FS

// Templates holds every prompt the pipeline renders.
type Templates struct {
	Main           string            `yaml:"main"`
	Summarize      string            `yaml:"summarize"`
	Audit          string            `yaml:"audit"`
	Email          string            `yaml:"email"`
	GenericSection string            `yaml:"generic_section"`
	Sections       map[string]string `yaml:"sections"`
}

var sectionPromptFiles = map[string]string{
	SectionExecSummary: "executive_summary.txt",
	SectionProblem:     "problem_opportunity.txt",
	SectionScope:       "scope_of_work.txt",
	SectionTimeline:    "timeline.txt",
	SectionPricing:     "pricing.txt",
	SectionTerms:       "terms.txt",
}

// DefaultTemplates returns the prompts compiled into the binary.
func DefaultTemplates() Templates {
	t := Templates{
		Main:           mustPrompt("main.txt"),
		Summarize:      mustPrompt("summarize.txt"),
		Audit:          mustPrompt("audit.txt"),
		Email:          mustPrompt("email.txt"),
		GenericSection: mustPrompt("section_generic.txt"),
		Sections:       make(map[string]string, len(sectionPromptFiles)),
	}
	for name, file := range sectionPromptFiles {
		t.Sections[name] = mustPrompt(path.Join("sections", file))
	}
	return t
}

func mustPrompt(name string) string {
	data, err := embeddedPrompts.ReadFile(path.Join("prompts", name))
	if err != nil {
		panic(fmt.Sprintf("embedded prompt %s: %v", name, err))
	}
	return string(data)
}

// LoadTemplates overlays a YAML file of prompt overrides on the defaults.
// An empty path returns the defaults.
func LoadTemplates(file string) (Templates, error) {
	t := DefaultTemplates()
	if file == "" {
		return t, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return Templates{}, fmt.Errorf("reading prompts file: %w", err)
	}
	var over Templates
	if err := yaml.Unmarshal(data, &over); err != nil {
		return Templates{}, fmt.Errorf("parsing prompts file %s: %w", file, err)
	}
	if err := t.merge(over); err != nil {
		return Templates{}, fmt.Errorf("prompts file %s: %w", file, err)
	}
	return t, nil
}

func (t *Templates) merge(over Templates) error {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&t.Main, over.Main},
		{&t.Summarize, over.Summarize},
		{&t.Audit, over.Audit},
		{&t.Email, over.Email},
		{&t.GenericSection, over.GenericSection},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	for name, tmpl := range over.Sections {
		canon, ok := CanonicalSection(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSection, name)
		}
		if t.Sections == nil {
			t.Sections = make(map[string]string)
		}
		t.Sections[canon] = tmpl
	}
	return nil
}

// SectionTemplate returns the registered template for a section, or the
// generic one.
func (t Templates) SectionTemplate(name string) string {
	if tmpl, ok := t.Sections[name]; ok && tmpl != "" {
		return tmpl
	}
	return t.GenericSection
}
