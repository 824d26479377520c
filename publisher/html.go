package publisher

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/yosssi/gohtml"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const pageCSS = `<style>
body { background:#111; margin:0; }
.doc-wrap { display:flex; justify-content:center; padding:24px; }
.doc-page { background:#fff; width:794px; min-height:1123px; padding:48px 64px; box-shadow:0 4px 20px rgba(0,0,0,0.25); border-radius:6px; }
.doc-page h1, .doc-page h2, .doc-page h3 { color:#0b3d91; font-family: Segoe UI, Roboto, Arial, sans-serif; }
.doc-page p, .doc-page li { font: 15px/1.7 "Segoe UI", Roboto, Arial, sans-serif; color:#222; }
.doc-page hr { border:0; border-top:1px solid #e5e7eb; margin:24px 0; }
.doc-page table { border-collapse:collapse; margin:12px 0; }
.doc-page th, .doc-page td { border:1px solid #d1d5db; padding:6px 12px; text-align:left; }
.doc-logo { height:60px; margin-bottom:16px; }
</style>`

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderPage wraps the converted markdown in the page layout, with the logo
// first on the page when there is one.
func renderPage(md string, logo *Logo) (string, error) {
	body, err := mdToHTML(md)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(pageCSS)
	b.WriteString("<div class='doc-wrap'><div class='doc-page'>")
	if logo != nil {
		fmt.Fprintf(&b, "<img class='doc-logo' src='%s' alt='logo'/>", logo.DataURI())
	}
	b.WriteString(body)
	b.WriteString("</div></div>")
	return b.String(), nil
}

// renderHTMLFile builds a standalone, indented HTML document.
func renderHTMLFile(title, md string, logo *Logo) ([]byte, error) {
	page, err := renderPage(md, logo)
	if err != nil {
		return nil, err
	}
	doc := fmt.Sprintf("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>%s</title></head><body>%s</body></html>",
		html.EscapeString(title), page)
	return gohtml.FormatBytes([]byte(doc)), nil
}

var imgPattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)(\s+"[^"]*")?\)`)

// inlineMarkdownImages replaces image references to files under baseDir with
// data URIs so exported files are self-contained. Paths cannot leave baseDir.
// Remote and data: references are kept; unreadable files are left as written
// and reported in missing. An empty baseDir disables inlining.
func inlineMarkdownImages(md, baseDir string) (out string, missing []string) {
	matches := imgPattern.FindAllStringSubmatchIndex(md, -1)
	if baseDir == "" || len(matches) == 0 {
		return md, nil
	}

	var builder strings.Builder
	last := 0
	for _, match := range matches {
		start, end := match[2], match[3]
		builder.WriteString(md[last:start])
		last = end

		ref := md[start:end]
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
			builder.WriteString(ref)
			continue
		}
		data, err := os.ReadFile(filepath.Join(baseDir, filepath.Clean("/"+ref)))
		if err != nil {
			missing = append(missing, ref)
			builder.WriteString(ref)
			continue
		}
		builder.WriteString("data:" + mimetype.Detect(data).String() + ";base64," + base64.StdEncoding.EncodeToString(data))
	}
	builder.WriteString(md[last:])
	return builder.String(), missing
}
