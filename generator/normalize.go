package generator

import "strings"

var punctuationFolder = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
	"…", "...",
)

// FoldPunctuation replaces typographic punctuation with ASCII equivalents and
// drops bytes that are not valid UTF-8.
func FoldPunctuation(text string) string {
	return strings.ToValidUTF8(punctuationFolder.Replace(text), "")
}

// NormalizeText cleans pasted transcript or user text: punctuation is folded,
// every line is trimmed and blank lines are dropped.
func NormalizeText(text string) string {
	text = FoldPunctuation(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
