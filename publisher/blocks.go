package publisher

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

type blockKind int

const (
	blockHeading blockKind = iota
	blockParagraph
	blockListItem
	blockTable
	blockCode
	blockRule
)

// block is one printable unit of a section body. DOCX and PDF writers have
// no list or nesting model, so lists are flattened into prefixed items.
type block struct {
	kind  blockKind
	level int
	text  string
	rows  [][]string
}

// parseBlocks flattens markdown into blocks.
func parseBlocks(md string) []block {
	src := []byte(md)
	root := markdown.Parser().Parse(text.NewReader(src))
	var out []block
	collectBlocks(root, src, 0, &out)
	return out
}

func collectBlocks(parent ast.Node, src []byte, depth int, out *[]block) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Heading:
			*out = append(*out, block{kind: blockHeading, level: v.Level, text: inlineText(v, src)})
		case *ast.Paragraph, *ast.TextBlock:
			if t := inlineText(v, src); t != "" {
				*out = append(*out, block{kind: blockParagraph, level: depth, text: t})
			}
		case *ast.List:
			collectList(v, src, depth, out)
		case *ast.FencedCodeBlock:
			*out = append(*out, block{kind: blockCode, text: codeText(v, src)})
		case *ast.CodeBlock:
			*out = append(*out, block{kind: blockCode, text: codeText(v, src)})
		case *ast.ThematicBreak:
			*out = append(*out, block{kind: blockRule})
		case *ast.Blockquote:
			collectBlocks(v, src, depth, out)
		case *east.Table:
			*out = append(*out, block{kind: blockTable, rows: tableRows(v, src)})
		}
	}
}

func collectList(list *ast.List, src []byte, depth int, out *[]block) {
	index := list.Start
	if index == 0 {
		index = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		prefix := "• "
		if list.IsOrdered() {
			prefix = fmt.Sprintf("%d. ", index)
			index++
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				t := inlineText(v, src)
				if first {
					*out = append(*out, block{kind: blockListItem, level: depth, text: prefix + t})
					first = false
					continue
				}
				*out = append(*out, block{kind: blockParagraph, level: depth + 1, text: t})
			case *ast.List:
				if first {
					*out = append(*out, block{kind: blockListItem, level: depth, text: strings.TrimSpace(prefix)})
					first = false
				}
				collectList(v, src, depth+1, out)
			default:
				collectBlocks(c, src, depth+1, out)
			}
		}
	}
}

func tableRows(t *east.Table, src []byte) [][]string {
	var rows [][]string
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, inlineText(c, src))
		}
		rows = append(rows, cells)
	}
	return rows
}

func codeText(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}

// inlineText returns the plain text of an inline subtree.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	writeInline(&b, n, src)
	return strings.TrimSpace(b.String())
}

func writeInline(b *strings.Builder, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(src))
		case *ast.RawHTML:
		default:
			writeInline(b, c, src)
		}
	}
}
