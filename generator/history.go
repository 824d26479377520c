package generator

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLine is one line of a before/after comparison.
type DiffLine struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// maxDiffLines bounds the diff kept on a history entry.
const maxDiffLines = 400

// DiffSections returns a line diff between two section bodies, or nil when
// they are equal or too large to keep.
func DiffSections(before, after string) []DiffLine {
	if before == after || lineCount(before)+lineCount(after) > maxDiffLines {
		return nil
	}
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []DiffLine
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		typ := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = LineAdded
		case diffmatchpatch.DiffDelete:
			typ = LineRemoved
		}
		for _, line := range chunk {
			lines = append(lines, DiffLine{Type: typ, Text: line})
		}
	}
	return lines
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
