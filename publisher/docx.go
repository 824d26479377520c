package publisher

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"ai_proposal_agent/generator"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	relOfficeDoc = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relStyles    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	logoRelID = "rIdLogo"
	// emuPerInch converts inches to DrawingML units.
	emuPerInch  = 914400
	logoWidthIn = 1.2
)

// renderDOCX writes a Word document: a cover page with logo, title, company,
// client and tone, then every section on its own page.
func renderDOCX(doc generator.Document, cover Cover, logo *Logo) ([]byte, error) {
	docXML, err := documentPart(doc, cover, logo)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		name string
		data func() ([]byte, error)
	}{
		{"[Content_Types].xml", contentTypesPart},
		{"_rels/.rels", rootRelsPart},
		{"word/_rels/document.xml.rels", func() ([]byte, error) { return documentRelsPart(logo) }},
		{"word/styles.xml", stylesPart},
		{"word/document.xml", func() ([]byte, error) { return docXML, nil }},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		data, err := part.data()
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", part.name, err)
		}
		if err := writeZipFile(zw, part.name, data); err != nil {
			return nil, err
		}
	}
	if logo != nil {
		if err := writeZipFile(zw, "word/media/logo."+logo.imageType(), logo.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func newPart() *etree.Document {
	d := etree.NewDocument()
	d.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	return d
}

func contentTypesPart() ([]byte, error) {
	d := newPart()
	types := d.CreateElement("Types")
	types.CreateAttr("xmlns", "http://schemas.openxmlformats.org/package/2006/content-types")
	for ext, ct := range map[string]string{
		"rels": "application/vnd.openxmlformats-package.relationships+xml",
		"xml":  "application/xml",
		"png":  "image/png",
		"jpg":  "image/jpeg",
		"gif":  "image/gif",
	} {
		def := types.CreateElement("Default")
		def.CreateAttr("Extension", ext)
		def.CreateAttr("ContentType", ct)
	}
	for part, ct := range map[string]string{
		"/word/document.xml": "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml",
		"/word/styles.xml":   "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml",
	} {
		o := types.CreateElement("Override")
		o.CreateAttr("PartName", part)
		o.CreateAttr("ContentType", ct)
	}
	return d.WriteToBytes()
}

func relationships(rels ...[3]string) ([]byte, error) {
	d := newPart()
	root := d.CreateElement("Relationships")
	root.CreateAttr("xmlns", "http://schemas.openxmlformats.org/package/2006/relationships")
	for _, r := range rels {
		rel := root.CreateElement("Relationship")
		rel.CreateAttr("Id", r[0])
		rel.CreateAttr("Type", r[1])
		rel.CreateAttr("Target", r[2])
	}
	return d.WriteToBytes()
}

func rootRelsPart() ([]byte, error) {
	return relationships([3]string{"rId1", relOfficeDoc, "word/document.xml"})
}

func documentRelsPart(logo *Logo) ([]byte, error) {
	rels := [][3]string{{"rId1", relStyles, "styles.xml"}}
	if logo != nil {
		rels = append(rels, [3]string{logoRelID, relImage, "media/logo." + logo.imageType()})
	}
	return relationships(rels...)
}

func stylesPart() ([]byte, error) {
	d := newPart()
	styles := d.CreateElement("w:styles")
	styles.CreateAttr("xmlns:w", nsW)

	addStyle := func(id, name string, size int, bold bool, color string) {
		s := styles.CreateElement("w:style")
		s.CreateAttr("w:type", "paragraph")
		s.CreateAttr("w:styleId", id)
		s.CreateElement("w:name").CreateAttr("w:val", name)
		if id != "Normal" {
			s.CreateElement("w:basedOn").CreateAttr("w:val", "Normal")
			ppr := s.CreateElement("w:pPr")
			sp := ppr.CreateElement("w:spacing")
			sp.CreateAttr("w:before", "240")
			sp.CreateAttr("w:after", "120")
		}
		rpr := s.CreateElement("w:rPr")
		fonts := rpr.CreateElement("w:rFonts")
		fonts.CreateAttr("w:ascii", "Calibri")
		fonts.CreateAttr("w:hAnsi", "Calibri")
		if bold {
			rpr.CreateElement("w:b")
		}
		if color != "" {
			rpr.CreateElement("w:color").CreateAttr("w:val", color)
		}
		rpr.CreateElement("w:sz").CreateAttr("w:val", strconv.Itoa(size*2))
	}
	addStyle("Normal", "Normal", 11, false, "")
	addStyle("Title", "Title", 28, true, "0B3D91")
	addStyle("Heading1", "heading 1", 18, true, "0B3D91")
	addStyle("Heading2", "heading 2", 14, true, "0B3D91")
	addStyle("Heading3", "heading 3", 12, true, "0B3D91")
	return d.WriteToBytes()
}

func documentPart(doc generator.Document, cover Cover, logo *Logo) ([]byte, error) {
	d := newPart()
	root := d.CreateElement("w:document")
	root.CreateAttr("xmlns:w", nsW)
	root.CreateAttr("xmlns:r", nsR)
	root.CreateAttr("xmlns:wp", nsWP)
	body := root.CreateElement("w:body")

	if logo != nil {
		if err := addLogo(body, logo); err != nil {
			return nil, err
		}
	}
	addParagraph(body, "Title", 0, cover.Title)
	addParagraph(body, "", 0, "Company: "+cover.CompanyName)
	addParagraph(body, "", 0, "Client: "+cover.ClientName)
	addParagraph(body, "", 0, "Tone: "+cover.BrandTone)
	addPageBreak(body)

	for _, sec := range doc.Ordered() {
		addParagraph(body, "Heading1", 0, sec.Name)
		for i, b := range parseBlocks(sec.Body) {
			if i == 0 && b.kind == blockHeading && strings.EqualFold(b.text, sec.Name) {
				continue
			}
			addBlock(body, b)
		}
		addPageBreak(body)
	}

	sect := body.CreateElement("w:sectPr")
	pg := sect.CreateElement("w:pgSz")
	pg.CreateAttr("w:w", "12240")
	pg.CreateAttr("w:h", "15840")
	mar := sect.CreateElement("w:pgMar")
	for _, side := range []string{"w:top", "w:right", "w:bottom", "w:left"} {
		mar.CreateAttr(side, "1440")
	}
	return d.WriteToBytes()
}

func addBlock(body *etree.Element, b block) {
	switch b.kind {
	case blockHeading:
		level := b.level + 1
		if level > 3 {
			level = 3
		}
		addParagraph(body, "Heading"+strconv.Itoa(level), 0, b.text)
	case blockParagraph, blockListItem:
		addParagraph(body, "", b.level, b.text)
	case blockCode:
		p := body.CreateElement("w:p")
		for i, line := range strings.Split(b.text, "\n") {
			r := p.CreateElement("w:r")
			fonts := r.CreateElement("w:rPr").CreateElement("w:rFonts")
			fonts.CreateAttr("w:ascii", "Courier New")
			fonts.CreateAttr("w:hAnsi", "Courier New")
			if i > 0 {
				r.CreateElement("w:br")
			}
			addText(r, line)
		}
	case blockRule:
		p := body.CreateElement("w:p")
		bdr := p.CreateElement("w:pPr").CreateElement("w:pBdr").CreateElement("w:bottom")
		bdr.CreateAttr("w:val", "single")
		bdr.CreateAttr("w:sz", "6")
		bdr.CreateAttr("w:space", "1")
		bdr.CreateAttr("w:color", "E5E7EB")
	case blockTable:
		addTable(body, b.rows)
	}
}

func addParagraph(body *etree.Element, style string, indent int, text string) {
	p := body.CreateElement("w:p")
	if style != "" || indent > 0 {
		ppr := p.CreateElement("w:pPr")
		if style != "" {
			ppr.CreateElement("w:pStyle").CreateAttr("w:val", style)
		}
		if indent > 0 {
			ppr.CreateElement("w:ind").CreateAttr("w:left", strconv.Itoa(360*indent))
		}
	}
	addText(p.CreateElement("w:r"), text)
}

func addText(run *etree.Element, text string) {
	t := run.CreateElement("w:t")
	t.CreateAttr("xml:space", "preserve")
	t.SetText(text)
}

func addPageBreak(body *etree.Element) {
	body.CreateElement("w:p").CreateElement("w:r").CreateElement("w:br").CreateAttr("w:type", "page")
}

func addTable(body *etree.Element, rows [][]string) {
	tbl := body.CreateElement("w:tbl")
	borders := tbl.CreateElement("w:tblPr").CreateElement("w:tblBorders")
	for _, side := range []string{"w:top", "w:left", "w:bottom", "w:right", "w:insideH", "w:insideV"} {
		e := borders.CreateElement(side)
		e.CreateAttr("w:val", "single")
		e.CreateAttr("w:sz", "4")
		e.CreateAttr("w:color", "D1D5DB")
	}
	for i, row := range rows {
		tr := tbl.CreateElement("w:tr")
		for _, cell := range row {
			p := tr.CreateElement("w:tc").CreateElement("w:p")
			r := p.CreateElement("w:r")
			if i == 0 {
				r.CreateElement("w:rPr").CreateElement("w:b")
			}
			addText(r, cell)
		}
	}
	// Word requires a paragraph between a table and what follows.
	body.CreateElement("w:p")
}

func addLogo(body *etree.Element, logo *Logo) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(logo.Data))
	if err != nil {
		return fmt.Errorf("decoding logo: %w", err)
	}
	cx := int(logoWidthIn * emuPerInch)
	cy := cx
	if cfg.Width > 0 {
		cy = cx * cfg.Height / cfg.Width
	}

	inline := body.CreateElement("w:p").CreateElement("w:r").CreateElement("w:drawing").CreateElement("wp:inline")
	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", strconv.Itoa(cx))
	extent.CreateAttr("cy", strconv.Itoa(cy))
	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", "1")
	docPr.CreateAttr("name", "Logo")

	graphic := inline.CreateElement("a:graphic")
	graphic.CreateAttr("xmlns:a", nsA)
	data := graphic.CreateElement("a:graphicData")
	data.CreateAttr("uri", nsPic)
	pic := data.CreateElement("pic:pic")
	pic.CreateAttr("xmlns:pic", nsPic)

	nv := pic.CreateElement("pic:nvPicPr")
	cNv := nv.CreateElement("pic:cNvPr")
	cNv.CreateAttr("id", "0")
	cNv.CreateAttr("name", "logo")
	nv.CreateElement("pic:cNvPicPr")

	fill := pic.CreateElement("pic:blipFill")
	fill.CreateElement("a:blip").CreateAttr("r:embed", logoRelID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	sp := pic.CreateElement("pic:spPr")
	xfrm := sp.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", strconv.Itoa(cx))
	ext.CreateAttr("cy", strconv.Itoa(cy))
	sp.CreateElement("a:prstGeom").CreateAttr("prst", "rect")
	return nil
}
