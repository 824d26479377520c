package publisher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"ai_proposal_agent/generator"
)

// headingSizes maps markdown heading levels to point sizes.
var headingSizes = map[int]float64{
	1: 18,
	2: 16,
	3: 14,
	4: 13,
	5: 12,
	6: 11,
}

const (
	pdfFont       = "Helvetica"
	pdfLineHeight = 5.5
	pdfIndent     = 6.0
)

// renderPDF lays out a cover page and then every section on its own page,
// with a running header and "Page N" footer.
func renderPDF(doc generator.Document, cover Cover, logo *Logo) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	write := func(s string) string { return tr(generator.FoldPunctuation(s)) }

	header := fmt.Sprintf("%s - %s for %s", cover.Title, cover.CompanyName, cover.ClientName)
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetFont(pdfFont, "", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 6, write(header), "", 1, "L", false, 0, "")
		pdf.Ln(2)
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	if logo != nil {
		opt := fpdf.ImageOptions{ImageType: logo.imageType(), ReadDpi: true}
		pdf.RegisterImageOptionsReader("logo", opt, bytes.NewReader(logo.Data))
		pdf.ImageOptions("logo", pdf.GetX(), pdf.GetY(), 30, 0, true, opt, 0, "")
		pdf.Ln(6)
	}
	pdf.SetFont(pdfFont, "B", 24)
	pdf.SetTextColor(11, 61, 145)
	pdf.MultiCell(0, 11, write(cover.Title), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
	pdf.SetFont(pdfFont, "", 12)
	for _, line := range []string{
		"Company: " + cover.CompanyName,
		"Client: " + cover.ClientName,
		"Tone: " + cover.BrandTone,
	} {
		pdf.MultiCell(0, 7, write(line), "", "L", false)
	}

	for _, sec := range doc.Ordered() {
		pdf.AddPage()
		pdfHeading(pdf, 1, write(sec.Name))
		for i, b := range parseBlocks(sec.Body) {
			if i == 0 && b.kind == blockHeading && strings.EqualFold(b.text, sec.Name) {
				continue
			}
			pdfBlock(pdf, b, write)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pdfHeading(pdf *fpdf.Fpdf, level int, text string) {
	size, ok := headingSizes[level]
	if !ok {
		size = 12
	}
	pdf.Ln(2)
	pdf.SetFont(pdfFont, "B", size)
	pdf.SetTextColor(11, 61, 145)
	pdf.MultiCell(0, size*0.5, text, "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(2)
}

func pdfBlock(pdf *fpdf.Fpdf, b block, write func(string) string) {
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()

	switch b.kind {
	case blockHeading:
		pdfHeading(pdf, b.level+1, write(b.text))
	case blockParagraph, blockListItem:
		pdf.SetFont(pdfFont, "", 11)
		pdf.SetX(left + pdfIndent*float64(b.level))
		pdf.MultiCell(0, pdfLineHeight, write(b.text), "", "L", false)
		if b.kind == blockParagraph {
			pdf.Ln(2)
		}
	case blockCode:
		pdf.SetFont("Courier", "", 9)
		pdf.MultiCell(0, 4.5, write(b.text), "", "L", false)
		pdf.Ln(2)
	case blockRule:
		y := pdf.GetY() + 2
		pdf.SetDrawColor(229, 231, 235)
		pdf.Line(left, y, pageW-right, y)
		pdf.SetDrawColor(0, 0, 0)
		pdf.Ln(5)
	case blockTable:
		cols := 0
		for _, row := range b.rows {
			cols = max(cols, len(row))
		}
		if cols == 0 {
			return
		}
		width := (pageW - left - right) / float64(cols)
		for i, row := range b.rows {
			style := ""
			if i == 0 {
				style = "B"
			}
			pdf.SetFont(pdfFont, style, 10)
			for c := 0; c < cols; c++ {
				cell := ""
				if c < len(row) {
					cell = row[c]
				}
				pdf.CellFormat(width, 7, write(cell), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(3)
	}
}
