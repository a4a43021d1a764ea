package pptx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrPackage indicates output serialization failed. No partial package is
// ever returned alongside it.
var ErrPackage = errors.New("packaging failed")

// Package serializes the deck into a presentation container. layouts
// supplies the geometry for the written layout parts; nil uses the
// built-in set. The output is deterministic: zip entries carry no
// timestamps and parts are written in a fixed order.
func Package(deck *Deck, layouts *LayoutSet) ([]byte, error) {
	if deck == nil {
		return nil, fmt.Errorf("%w: nil deck", ErrPackage)
	}
	if layouts == nil {
		layouts = DefaultLayouts()
	}

	theme := deck.ThemeXML
	if len(theme) == 0 {
		theme = []byte(builtinThemeXML)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	add := func(name string, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("%w: creating part %s: %v", ErrPackage, name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("%w: writing part %s: %v", ErrPackage, name, err)
		}
		return nil
	}
	addStr := func(name, data string) error { return add(name, []byte(data)) }

	// Slides first: they determine media parts and content types.
	type slidePart struct {
		xml  string
		rels string
	}
	var (
		slideParts []slidePart
		media      []mediaPart
		extSeen    = map[string]bool{}
	)
	for _, slide := range deck.Slides {
		xmlPart, targets := slideXML(slide, &media)
		slideParts = append(slideParts, slidePart{
			xml:  xmlPart,
			rels: slideRelsXML(slide.Layout, targets),
		})
	}
	var exts []string
	for _, m := range media {
		if !extSeen[m.ext] {
			extSeen[m.ext] = true
			exts = append(exts, m.ext)
		}
	}

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML(len(deck.Slides), exts)},
		{"_rels/.rels", rootRelsXML},
		{"docProps/core.xml", corePropsXML},
		{"docProps/app.xml", appPropsXML},
		{"ppt/presentation.xml", presentationXML(deck)},
		{"ppt/_rels/presentation.xml.rels", presentationRelsXML(len(deck.Slides))},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterXML},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRelsXML},
		{"ppt/slideLayouts/slideLayout1.xml", titleLayoutXML(layouts)},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRelsXML},
		{"ppt/slideLayouts/slideLayout2.xml", contentLayoutXML(layouts)},
		{"ppt/slideLayouts/_rels/slideLayout2.xml.rels", slideLayoutRelsXML},
	}
	for _, p := range parts {
		if err := addStr(p.name, p.data); err != nil {
			return nil, err
		}
	}
	if err := add("ppt/theme/theme1.xml", theme); err != nil {
		return nil, err
	}
	for i, sp := range slideParts {
		if err := addStr(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), sp.xml); err != nil {
			return nil, err
		}
		if err := addStr(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), sp.rels); err != nil {
			return nil, err
		}
	}
	for _, m := range media {
		if err := add("ppt/media/"+m.name, m.data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing container: %v", ErrPackage, err)
	}
	return buf.Bytes(), nil
}

// mediaPart is one image file in ppt/media.
type mediaPart struct {
	name string
	ext  string
	data []byte
}

// sniffImageExt detects the media extension from magic bytes.
func sniffImageExt(data []byte) string {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("\x89PNG")):
		return "png"
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "jpeg"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("GIF8")):
		return "gif"
	default:
		return "png"
	}
}

// slideXML serializes one slide's shape tree, registering media globally
// and returning the slide-relative media targets in rId order.
func slideXML(slide *Slide, media *[]mediaPart) (string, []string) {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:sld ` + nsDecls + `><p:cSld><p:spTree>`)
	b.WriteString(emptySpTreeHeader)

	var targets []string
	id := 2
	for _, shape := range slide.Shapes {
		switch s := shape.(type) {
		case *TextShape:
			writeTextShape(&b, s, id)
		case *TableShape:
			writeTableShape(&b, s, id)
		case *PictureShape:
			ext := sniffImageExt(s.Data)
			name := fmt.Sprintf("image%d.%s", len(*media)+1, ext)
			*media = append(*media, mediaPart{name: name, ext: ext, data: s.Data})
			rid := 2 + len(targets)
			targets = append(targets, name)
			writePictureShape(&b, s, id, rid)
		}
		id++
	}

	b.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
	return b.String(), targets
}

// phXML maps a placeholder kind to its <p:ph> element.
func phXML(kind PlaceholderKind) string {
	switch kind {
	case PHCenterTitle:
		return `<p:ph type="ctrTitle"/>`
	case PHSubtitle:
		return `<p:ph type="subTitle" idx="1"/>`
	case PHTitle:
		return `<p:ph type="title"/>`
	case PHBody:
		return `<p:ph type="body" idx="1"/>`
	default:
		return ""
	}
}

func writeXfrm(b *strings.Builder, f Rect) {
	fmt.Fprintf(b, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, f.X, f.Y, f.W, f.H)
}

func writeTextShape(b *strings.Builder, s *TextShape, id int) {
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/>`, id, xmlEscape(s.Name))
	b.WriteString(`<p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr>`)
	b.WriteString(phXML(s.Placeholder))
	b.WriteString(`</p:nvPr></p:nvSpPr><p:spPr>`)
	writeXfrm(b, s.Frame)
	if s.Placeholder == PHNone {
		b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom>`)
	}
	if s.Fill != "" {
		fmt.Fprintf(b, `<a:solidFill><a:srgbClr val="%s"/></a:solidFill>`, s.Fill)
	}
	b.WriteString(`</p:spPr><p:txBody><a:bodyPr wrap="square"><a:normAutofit/></a:bodyPr><a:lstStyle/>`)
	for _, p := range s.Paragraphs {
		writeParagraph(b, p)
	}
	b.WriteString(`</p:txBody></p:sp>`)
}

func writeParagraph(b *strings.Builder, p TextParagraph) {
	b.WriteString(`<a:p><a:pPr`)
	if p.Level > 0 {
		fmt.Fprintf(b, ` lvl="%d"`, p.Level)
	}
	b.WriteString(`>`)
	switch p.Bullet {
	case BulletChar:
		b.WriteString(`<a:buChar char="•"/>`)
	case BulletNumber:
		b.WriteString(`<a:buAutoNum type="arabicPeriod"/>`)
	default:
		b.WriteString(`<a:buNone/>`)
	}
	b.WriteString(`</a:pPr>`)
	if len(p.Runs) == 0 {
		b.WriteString(`<a:endParaRPr lang="en-US"/></a:p>`)
		return
	}
	for _, r := range p.Runs {
		writeRun(b, r, p.Size)
	}
	b.WriteString(`</a:p>`)
}

func writeRun(b *strings.Builder, r TextRun, size float64) {
	b.WriteString(`<a:r><a:rPr lang="en-US"`)
	if size > 0 {
		fmt.Fprintf(b, ` sz="%d"`, int(size*100))
	}
	if r.Bold {
		b.WriteString(` b="1"`)
	}
	if r.Italic {
		b.WriteString(` i="1"`)
	}
	if r.Strike {
		b.WriteString(` strike="sngStrike"`)
	}
	b.WriteString(` dirty="0"`)
	b.WriteString(`>`)
	if r.Color != "" {
		fmt.Fprintf(b, `<a:solidFill><a:srgbClr val="%s"/></a:solidFill>`, r.Color)
	}
	if r.Mono {
		b.WriteString(`<a:latin typeface="Consolas"/>`)
	}
	fmt.Fprintf(b, `</a:rPr><a:t>%s</a:t></a:r>`, xmlEscape(r.Text))
}

func writeTableShape(b *strings.Builder, s *TableShape, id int) {
	fmt.Fprintf(b, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="%s"/>`, id, xmlEscape(s.Name))
	b.WriteString(`<p:cNvGraphicFramePr><a:graphicFrameLocks noGrp="1"/></p:cNvGraphicFramePr><p:nvPr/></p:nvGraphicFramePr>`)
	fmt.Fprintf(b, `<p:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></p:xfrm>`,
		s.Frame.X, s.Frame.Y, s.Frame.W, s.Frame.H)
	b.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table">`)
	b.WriteString(`<a:tbl><a:tblPr firstRow="1" bandRow="1"/><a:tblGrid>`)
	cols := 0
	if len(s.Rows) > 0 {
		cols = len(s.Rows[0])
	}
	for c := 0; c < cols; c++ {
		fmt.Fprintf(b, `<a:gridCol w="%d"/>`, s.ColWidth)
	}
	b.WriteString(`</a:tblGrid>`)
	for ri, row := range s.Rows {
		fmt.Fprintf(b, `<a:tr h="%d">`, s.RowHeight)
		for _, cell := range row {
			b.WriteString(`<a:tc><a:txBody><a:bodyPr/><a:lstStyle/><a:p><a:r><a:rPr lang="en-US" sz="1400"`)
			if ri == 0 && s.HeaderRow {
				b.WriteString(` b="1"`)
			}
			fmt.Fprintf(b, `/><a:t>%s</a:t></a:r></a:p></a:txBody><a:tcPr/></a:tc>`, xmlEscape(cell))
		}
		b.WriteString(`</a:tr>`)
	}
	b.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
}

func writePictureShape(b *strings.Builder, s *PictureShape, id, rid int) {
	fmt.Fprintf(b, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="%s" descr="%s"/>`,
		id, xmlEscape(s.Name), xmlEscape(s.Alt))
	b.WriteString(`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`)
	fmt.Fprintf(b, `<p:blipFill><a:blip r:embed="rId%d"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`, rid)
	b.WriteString(`<p:spPr>`)
	writeXfrm(b, s.Frame)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
}

// xmlEscaper covers the five XML special characters.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string { return xmlEscaper.Replace(s) }
