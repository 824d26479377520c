package generator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var headingRe = regexp.MustCompile(`^#{1,6}\s+`)

// NormalizeSection cleans a section body: a leading copy of the title is
// dropped, repeated headings collapse, a collapsed milestone table is
// rebuilt and surrounding whitespace is trimmed. It is idempotent.
func NormalizeSection(title, body string) string {
	b := dropLeadingTitle(title, body)
	b = dedupeHeadings(title, b)
	b = fixCollapsedTable(b)
	return strings.TrimSpace(b)
}

// EnsureHeading prefixes "# title" unless body already opens with a heading.
func EnsureHeading(title, body string) string {
	b := strings.TrimLeftFunc(body, unicode.IsSpace)
	first, _, _ := strings.Cut(b, "\n")
	if headingRe.MatchString(first) {
		return body
	}
	if strings.TrimSpace(body) == "" {
		return "# " + title
	}
	return fmt.Sprintf("# %s\n\n%s", title, body)
}

// headingText returns the lower-cased text of a markdown heading line.
func headingText(line string) (string, bool) {
	loc := headingRe.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(line[loc[1]:])), true
}

func plainText(line string) string {
	return strings.ToLower(strings.TrimSpace(line))
}

// dropLeadingTitle removes opening lines that repeat the title, with or
// without heading markers.
func dropLeadingTitle(title, body string) string {
	want := plainText(title)
	b := strings.TrimLeftFunc(body, unicode.IsSpace)
	for b != "" {
		first, rest, _ := strings.Cut(b, "\n")
		text, ok := headingText(first)
		if !ok {
			text = plainText(first)
		}
		if text != want {
			break
		}
		b = strings.TrimLeftFunc(rest, unicode.IsSpace)
	}
	return b
}

func dedupeHeadings(title, body string) string {
	want := plainText(title)
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))

	var prev string
	seen := false
	for _, ln := range lines {
		if text, ok := headingText(ln); ok {
			if seen && text == prev {
				continue
			}
			prev, seen = text, true
			out = append(out, ln)
			continue
		}
		plain := plainText(ln)
		if plain != "" && (seen && plain == prev || plain == want) {
			continue
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// fixCollapsedTable rebuilds a two-column milestone table that a completion
// returned on one or two lines. The body must open with the Milestone header
// cell; anything else is left as written.
func fixCollapsedTable(body string) string {
	if !strings.Contains(body, "|") || strings.Count(body, "\n") > 2 {
		return body
	}
	s := strings.TrimSpace(body)
	if strings.Count(s, "|") < 8 || !strings.Contains(s, "Milestone") || !strings.Contains(s, "Date") {
		return body
	}

	var tokens []string
	for _, t := range strings.Split(s, "|") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) < 4 || !strings.HasPrefix(strings.ToLower(tokens[0]), "milestone") {
		return body
	}

	idx := 2
	if idx+1 < len(tokens) && dashesOnly(tokens[idx]) && dashesOnly(tokens[idx+1]) {
		idx += 2
	}
	var rows []string
	for ; idx+1 < len(tokens); idx += 2 {
		rows = append(rows, fmt.Sprintf("| %s | %s |", tokens[idx], tokens[idx+1]))
	}
	if len(rows) == 0 {
		return body
	}

	lines := append([]string{
		fmt.Sprintf("| %s | %s |", tokens[0], tokens[1]),
		"| --- | --- |",
	}, rows...)
	return strings.Join(lines, "\n")
}

func dashesOnly(s string) bool {
	return s != "" && strings.Trim(s, "-") == ""
}

// leadParagraph returns the first non-heading paragraph line of md.
func leadParagraph(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "|") {
			continue
		}
		return line
	}
	return ""
}

// compactExcerpt collapses whitespace and truncates to limit runes.
func compactExcerpt(md string, limit int) string {
	joined := strings.Join(strings.Fields(md), " ")
	runes := []rune(joined)
	if len(runes) <= limit {
		return joined
	}
	return string(runes[:limit])
}
