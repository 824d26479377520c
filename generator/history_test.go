package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffSections(t *testing.T) {
	assert.Nil(t, DiffSections("same", "same"))

	got := DiffSections("a\nb", "a\nc")
	assert.Equal(t, []DiffLine{
		{Type: LineContext, Text: "a"},
		{Type: LineRemoved, Text: "b"},
		{Type: LineAdded, Text: "c"},
	}, got)

	assert.Equal(t, []DiffLine{{Type: LineAdded, Text: "new"}}, DiffSections("", "new"))
}

func TestDiffSectionsSkipsLargeBodies(t *testing.T) {
	big := strings.Repeat("line\n", maxDiffLines)
	assert.Nil(t, DiffSections(big, big+"more"))
}
