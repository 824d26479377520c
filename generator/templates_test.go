package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTemplatesDefaults(t *testing.T) {
	tmpl, err := LoadTemplates("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplates(), tmpl)
	assert.Len(t, tmpl.Sections, 6)
	assert.Equal(t, tmpl.GenericSection, tmpl.SectionTemplate(SectionAppendix))
	assert.NotEqual(t, tmpl.GenericSection, tmpl.SectionTemplate(SectionPricing))
}

func TestLoadTemplatesOverlay(t *testing.T) {
	path := writePrompts(t, `
summarize: "Digest this call: {transcript}"
sections:
  executive summary: "Open with {company_name}"
  appendix: "List references for {project_title}"
`)
	tmpl, err := LoadTemplates(path)
	require.NoError(t, err)

	defaults := DefaultTemplates()
	assert.Equal(t, "Digest this call: {transcript}", tmpl.Summarize)
	assert.Equal(t, defaults.Main, tmpl.Main)
	assert.Equal(t, "Open with {company_name}", tmpl.SectionTemplate(SectionExecSummary))
	assert.Equal(t, "List references for {project_title}", tmpl.SectionTemplate(SectionAppendix))
	assert.Equal(t, defaults.Sections[SectionPricing], tmpl.SectionTemplate(SectionPricing))
}

func TestLoadTemplatesErrors(t *testing.T) {
	_, err := LoadTemplates(writePrompts(t, "sections:\n  Biography: \"x\"\n"))
	assert.ErrorIs(t, err, ErrUnknownSection)

	_, err = LoadTemplates(writePrompts(t, "main: [unclosed"))
	assert.Error(t, err)

	_, err = LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
