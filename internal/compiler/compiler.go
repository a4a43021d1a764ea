// Package compiler parses Markdown source and folds it into an ordered
// sequence of slide descriptors. Slide boundaries follow heading levels:
// the first H1 opens the title slide, every H2 opens a content slide, and
// an H3 directly after an H2 becomes that slide's lead text. Content issues
// never fail the fold; ambiguous constructs degrade to plain paragraphs.
package compiler

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNotUTF8 indicates the source bytes are not valid UTF-8.
var ErrNotUTF8 = errors.New("source is not valid UTF-8")

// diagramLanguages lists fence info strings treated as diagram blocks
// rather than code blocks.
var diagramLanguages = map[string]bool{
	"mermaid": true,
}

// Compiler folds Markdown into slide content.
type Compiler struct {
	md goldmark.Markdown
}

// New creates a Compiler with GFM extensions (tables, strikethrough,
// autolinks, task lists).
func New() *Compiler {
	return &Compiler{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Compile parses source and returns the slide sequence in document order.
// Non-empty input always yields at least one slide: input with no headings
// produces a single untitled content slide holding every block, and input
// that folds to nothing at all produces a single blank content slide.
// The only failure mode is invalid UTF-8 input.
func (c *Compiler) Compile(ctx context.Context, source []byte) ([]SlideContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(source) {
		return nil, ErrNotUTF8
	}

	doc := c.md.Parser().Parse(text.NewReader(source))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := &folder{src: source}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		f.fold(n)
	}
	f.close()

	// Non-empty input never compiles to an empty deck: source that folds to
	// nothing (whitespace, a lone thematic break) yields one blank slide.
	if len(f.slides) == 0 && len(source) > 0 {
		f.slides = append(f.slides, SlideContent{Kind: KindContent})
	}
	return f.slides, nil
}

// folder carries the fold state across top-level block nodes.
type folder struct {
	src       []byte
	slides    []SlideContent
	cur       *SlideContent
	h1Seen    bool
	awaitLead bool
}

// fold dispatches one top-level block node.
func (f *folder) fold(n ast.Node) {
	if h, ok := n.(*ast.Heading); ok {
		f.foldHeading(h)
		return
	}

	block, ok := f.blockOf(n)
	f.awaitLead = false
	if !ok {
		return
	}
	f.ensureSlide()
	f.cur.Body = append(f.cur.Body, block)
}

// foldHeading applies the slide-boundary rules.
func (f *folder) foldHeading(h *ast.Heading) {
	switch {
	case h.Level == 1 && !f.h1Seen && f.cur == nil && len(f.slides) == 0:
		// The first H1 opens the title slide, but only while no content
		// has been compiled yet; a title slide must stay first.
		f.h1Seen = true
		f.cur = &SlideContent{Kind: KindTitle, Title: f.textOf(h)}
		f.awaitLead = false

	case h.Level == 1 || h.Level == 2:
		// Later H1s are demoted to content boundaries so the single-title
		// invariant holds without dropping data.
		f.h1Seen = f.h1Seen || h.Level == 1
		f.close()
		f.cur = &SlideContent{Kind: KindContent, Title: f.textOf(h)}
		f.awaitLead = true

	case h.Level == 3 && f.awaitLead && f.cur != nil:
		f.cur.Lead = f.textOf(h)
		f.awaitLead = false

	default:
		// H3 outside the lead position, H4-H6: ordinary body text.
		f.awaitLead = false
		f.ensureSlide()
		spans := f.spansOf(h, spanStyle{bold: true})
		if len(spans) > 0 {
			f.cur.Body = append(f.cur.Body, Paragraph{Spans: spans})
		}
	}
}

// close pushes the open slide, if any, onto the output sequence.
func (f *folder) close() {
	if f.cur != nil {
		f.slides = append(f.slides, *f.cur)
		f.cur = nil
	}
}

// ensureSlide opens an untitled content slide for body content that
// appears before any heading.
func (f *folder) ensureSlide() {
	if f.cur == nil {
		f.cur = &SlideContent{Kind: KindContent}
	}
}

// blockOf translates a non-heading block node into a BodyBlock.
// Returns false for nodes with no slide representation (thematic breaks,
// blank constructs).
func (f *folder) blockOf(n ast.Node) (BodyBlock, bool) {
	switch t := n.(type) {
	case *ast.Paragraph:
		if img, ok := soleImage(t); ok {
			return Image{Path: string(img.Destination), Alt: f.textOf(img)}, true
		}
		spans := f.spansOf(t, spanStyle{})
		if len(spans) == 0 {
			return nil, false
		}
		return Paragraph{Spans: spans}, true

	case *ast.List:
		items := f.listItems(t, 0)
		if len(items) == 0 {
			return nil, false
		}
		if t.IsOrdered() {
			return NumberedList{Items: items}, true
		}
		return BulletList{Items: items}, true

	case *ast.FencedCodeBlock:
		lang := string(t.Language(f.src))
		body := f.linesOf(t)
		if diagramLanguages[lang] {
			return Diagram{Source: body, Language: lang}, true
		}
		return CodeBlock{Text: body, Language: lang}, true

	case *ast.CodeBlock:
		return CodeBlock{Text: f.linesOf(t)}, true

	case *east.Table:
		return f.tableOf(t), true

	case *ast.Blockquote:
		var parts []string
		for c := t.FirstChild(); c != nil; c = c.NextSibling() {
			if s := f.textOf(c); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return nil, false
		}
		return Paragraph{Spans: []Span{{Text: strings.Join(parts, "\n"), Italic: true}}}, true

	case *ast.HTMLBlock:
		// No HTML rendering target; degrade to raw text.
		raw := strings.TrimRight(f.linesOf(t), "\n")
		if raw == "" {
			return nil, false
		}
		return Paragraph{Spans: []Span{{Text: raw}}}, true

	case *ast.ThematicBreak:
		return nil, false

	default:
		if s := f.textOf(n); s != "" {
			return Paragraph{Spans: []Span{{Text: s}}}, true
		}
		return nil, false
	}
}

// listItems flattens a (possibly nested) list into depth-annotated items.
func (f *folder) listItems(list *ast.List, depth int) []ListItem {
	var items []ListItem
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		item, ok := li.(*ast.ListItem)
		if !ok {
			continue
		}
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.List:
				items = append(items, f.listItems(t, depth+1)...)
			default:
				spans := f.spansOf(t, spanStyle{})
				if len(spans) > 0 {
					items = append(items, ListItem{Spans: spans, Depth: depth})
				}
			}
		}
	}
	return items
}

// tableOf folds a GFM table. Short rows are right-padded with empty cells
// so the result is rectangular; data is never dropped.
func (f *folder) tableOf(table *east.Table) Table {
	var rows [][]string
	maxLen := 0
	for r := table.FirstChild(); r != nil; r = r.NextSibling() {
		switch r.(type) {
		case *east.TableHeader, *east.TableRow:
			var row []string
			for c := r.FirstChild(); c != nil; c = c.NextSibling() {
				row = append(row, f.textOf(c))
			}
			if len(row) > maxLen {
				maxLen = len(row)
			}
			rows = append(rows, row)
		}
	}
	for i, row := range rows {
		for len(row) < maxLen {
			row = append(row, "")
		}
		rows[i] = row
	}
	return Table{Rows: rows}
}

// linesOf joins the raw source lines of a block node.
func (f *folder) linesOf(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(f.src))
	}
	return b.String()
}

// textOf returns the plain text of a node's inline content.
func (f *folder) textOf(n ast.Node) string {
	return strings.TrimSpace(joinSpans(f.spansOf(n, spanStyle{})))
}

// spanStyle is the inline styling state carried while walking emphasis.
type spanStyle struct {
	bold, italic, strike, code bool
}

// spansOf walks a node's inline children and produces styled spans.
// Emphasis markers become span flags, never separate blocks.
func (f *folder) spansOf(n ast.Node, st spanStyle) []Span {
	var out []Span
	f.collectSpans(n, st, &out)
	return out
}

func (f *folder) collectSpans(n ast.Node, st spanStyle, out *[]Span) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			if txt := string(t.Segment.Value(f.src)); txt != "" {
				appendSpan(out, txt, st)
			}
			if t.SoftLineBreak() || t.HardLineBreak() {
				appendSpan(out, " ", st)
			}
		case *ast.String:
			appendSpan(out, string(t.Value), st)
		case *ast.Emphasis:
			sub := st
			if t.Level >= 2 {
				sub.bold = true
			} else {
				sub.italic = true
			}
			f.collectSpans(t, sub, out)
		case *east.Strikethrough:
			sub := st
			sub.strike = true
			f.collectSpans(t, sub, out)
		case *ast.CodeSpan:
			sub := st
			sub.code = true
			f.collectSpans(t, sub, out)
		case *ast.AutoLink:
			appendSpan(out, string(t.URL(f.src)), st)
		default:
			f.collectSpans(c, st, out)
		}
	}
}

// appendSpan appends text with style, merging into the previous span when
// the style is identical.
func appendSpan(out *[]Span, text string, st spanStyle) {
	if n := len(*out); n > 0 {
		last := &(*out)[n-1]
		if last.Bold == st.bold && last.Italic == st.italic && last.Strike == st.strike && last.Code == st.code {
			last.Text += text
			return
		}
	}
	*out = append(*out, Span{Text: text, Bold: st.bold, Italic: st.italic, Strike: st.strike, Code: st.code})
}

// soleImage reports whether the paragraph consists of a single image.
func soleImage(p *ast.Paragraph) (*ast.Image, bool) {
	if p.ChildCount() != 1 {
		return nil, false
	}
	img, ok := p.FirstChild().(*ast.Image)
	return img, ok
}
