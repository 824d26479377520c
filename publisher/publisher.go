package publisher

import (
	"fmt"
	"log"
	"strings"

	"ai_proposal_agent/generator"
	"ai_proposal_agent/storage"
)

// Format is an export target.
type Format string

const (
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "md"
)

// Formats lists every supported export format.
var Formats = []Format{FormatHTML, FormatDOCX, FormatPDF, FormatMarkdown}

// ParseFormat accepts a format name, case-insensitively. "markdown" is an
// alias for md.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatDOCX, FormatPDF, FormatMarkdown:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ParseFormats splits a comma-separated list, dropping duplicates.
func ParseFormats(list string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Cover is the metadata printed on the first page of an export.
type Cover struct {
	Title       string
	CompanyName string
	ClientName  string
	BrandTone   string
}

// CoverFor builds the cover from a document and its inputs.
func CoverFor(doc generator.Document, in generator.Inputs) Cover {
	title := doc.Title
	if title == "" {
		title = in.ProjectTitle
	}
	if title == "" {
		title = "Proposal"
	}
	return Cover{Title: title, CompanyName: in.CompanyName, ClientName: in.ClientName, BrandTone: in.BrandTone}
}

// File is one rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Publisher renders proposals to their export formats.
type Publisher struct {
	logo     *Logo
	assetDir string
	verbose  bool
	logger   *log.Logger
}

// New creates a Publisher. logoPath is optional; a logo that cannot be read
// or is not an image is an error.
func New(logoPath string, verbose bool, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.Default()
	}
	p := &Publisher{verbose: verbose, logger: logger}
	if logoPath != "" {
		logo, err := LoadLogo(logoPath)
		if err != nil {
			return nil, err
		}
		p.logo = logo
		p.infof("Loaded logo %s (%s)", logoPath, logo.MIME)
	}
	return p, nil
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// withLogo returns a copy of p that uses logo instead of the configured one.
func (p *Publisher) withLogo(logo *Logo) *Publisher {
	cp := *p
	cp.logo = logo
	return &cp
}

// WithAssetDir returns a copy of p that resolves relative image references
// against dir.
func (p *Publisher) WithAssetDir(dir string) *Publisher {
	cp := *p
	cp.assetDir = dir
	return &cp
}

// Preview renders the on-screen HTML page for a document.
func (p *Publisher) Preview(doc generator.Document) (string, error) {
	return renderPage(p.markdown(doc), p.logo)
}

func (p *Publisher) markdown(doc generator.Document) string {
	md, missing := inlineMarkdownImages(doc.Markdown(), p.assetDir)
	for _, ref := range missing {
		p.logger.Printf("[WARN] image %s not found, leaving reference as is", ref)
	}
	return md
}

// Render produces one export of doc.
func (p *Publisher) Render(doc generator.Document, cover Cover, f Format) (File, error) {
	name := storage.ProposalSlug(cover.Title) + "." + string(f)
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatHTML:
		data, err = renderHTMLFile(cover.Title, p.markdown(doc), p.logo)
	case FormatDOCX:
		data, err = renderDOCX(doc, cover, p.logo)
	case FormatPDF:
		data, err = renderPDF(doc, cover, p.logo)
	case FormatMarkdown:
		data = []byte(doc.Markdown() + "\n")
	default:
		err = fmt.Errorf("unsupported export format %q", f)
	}
	if err != nil {
		return File{}, fmt.Errorf("rendering %s: %w", f, err)
	}
	p.infof("Rendered %s (%d bytes)", name, len(data))
	return File{Name: name, ContentType: f.ContentType(), Data: data}, nil
}

// Publish renders every requested format and writes the files under
// dir/<proposalID>/, returning the path of each file by name.
func (p *Publisher) Publish(dir, proposalID string, doc generator.Document, cover Cover, formats []Format) (map[string]string, error) {
	files := make(map[string][]byte, len(formats))
	for _, f := range formats {
		out, err := p.Render(doc, cover, f)
		if err != nil {
			return nil, err
		}
		files[out.Name] = out.Data
	}
	paths, err := storage.SaveExports(dir, proposalID, files)
	if err != nil {
		return nil, fmt.Errorf("saving exports for %s: %w", proposalID, err)
	}
	p.infof("Published %d files for %s", len(paths), proposalID)
	return paths, nil
}
