package compiler

// SlideKind distinguishes the title slide from ordinary content slides.
type SlideKind int

// Slide kinds.
const (
	KindContent SlideKind = iota
	KindTitle
)

// String returns the slide kind name.
func (k SlideKind) String() string {
	if k == KindTitle {
		return "title"
	}
	return "content"
}

// SlideContent is the compiled form of one output slide. It is built by the
// compiler's fold pass and consumed read-only by the assembler.
type SlideContent struct {
	Kind  SlideKind
	Title string
	Lead  string // from an H3 immediately following the slide-opening H2
	Body  []BodyBlock
}

// BodyBlock is a closed variant over the block types a slide body can hold.
// The marker method keeps the set sealed so the assembler's type switch is
// exhaustive: adding a variant without handling it everywhere fails to
// compile at the call sites that enumerate blocks.
type BodyBlock interface {
	isBodyBlock()
}

// Span is a run of text with inline styling resolved from emphasis markers.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Strike bool
	Code   bool
}

// Paragraph is prose text carrying styled spans.
type Paragraph struct {
	Spans []Span
}

// Text returns the paragraph's plain text with styling stripped.
func (p Paragraph) Text() string { return joinSpans(p.Spans) }

// ListItem is one entry of a bullet or numbered list.
// Depth is the nesting level, zero-based.
type ListItem struct {
	Spans []Span
	Depth int
}

// Text returns the item's plain text.
func (li ListItem) Text() string { return joinSpans(li.Spans) }

// BulletList is an unordered list.
type BulletList struct {
	Items []ListItem
}

// NumberedList is an ordered list.
type NumberedList struct {
	Items []ListItem
}

// CodeBlock is a fenced or indented code block.
type CodeBlock struct {
	Text     string
	Language string
}

// Table holds cell text row-major. Rows are rectangular: the compiler pads
// short rows with empty cells so every row has the same length.
type Table struct {
	Rows [][]string
}

// Image references a raster asset by source path.
type Image struct {
	Path string
	Alt  string
}

// Diagram is an unrendered diagram-language block. The compiler records the
// raw source; rendering happens later through the diagram delegate.
type Diagram struct {
	Source   string
	Language string
}

func (Paragraph) isBodyBlock()    {}
func (BulletList) isBodyBlock()   {}
func (NumberedList) isBodyBlock() {}
func (CodeBlock) isBodyBlock()    {}
func (Table) isBodyBlock()        {}
func (Image) isBodyBlock()        {}
func (Diagram) isBodyBlock()      {}

func joinSpans(spans []Span) string {
	var n int
	for _, s := range spans {
		n += len(s.Text)
	}
	b := make([]byte, 0, n)
	for _, s := range spans {
		b = append(b, s.Text...)
	}
	return string(b)
}
