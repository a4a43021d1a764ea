// Package pptx builds and serializes the presentation object graph.
//
// It covers three of the pipeline's stages: resolving layouts from an
// optional template package, assembling compiled slide content into an
// in-memory deck of slides and shapes, and packaging that deck as an OPC
// container (zip of XML parts). The corpus has no Go presentation-writing
// library, so the packager is part of this package rather than an external
// dependency.
package pptx

// Deck is the in-memory object graph of the output presentation.
type Deck struct {
	SlideWidth  EMU
	SlideHeight EMU
	Slides      []*Slide

	// ThemeXML optionally carries the theme part of a supplied template
	// into the output package. Empty means the built-in theme.
	ThemeXML []byte
}

// LayoutKind selects which slide layout a slide binds to.
type LayoutKind int

// Layout kinds.
const (
	LayoutContent LayoutKind = iota
	LayoutTitle
)

// Slide is one output slide: a layout binding plus shapes in z-order.
type Slide struct {
	Layout LayoutKind
	Shapes []Shape
}

// Shape is a closed variant over the drawable shape types.
type Shape interface {
	isShape()
}

// PlaceholderKind binds a text shape to a layout placeholder. Zero means
// the shape is a plain text box.
type PlaceholderKind int

// Placeholder kinds, matching the layout placeholders the packager emits.
const (
	PHNone PlaceholderKind = iota
	PHCenterTitle
	PHSubtitle
	PHTitle
	PHBody
)

// TextRun is a styled run within a paragraph.
type TextRun struct {
	Text   string
	Bold   bool
	Italic bool
	Strike bool
	Mono   bool
	Color  string // "RRGGBB"; empty inherits
}

// BulletKind selects paragraph bullet formatting.
type BulletKind int

// Bullet kinds.
const (
	BulletNone BulletKind = iota
	BulletChar
	BulletNumber
)

// TextParagraph is one paragraph of a text shape.
type TextParagraph struct {
	Runs   []TextRun
	Level  int // indentation level, zero-based
	Bullet BulletKind
	Size   float64 // font size in points; 0 inherits
}

// TextShape is a text box or placeholder filled with paragraphs.
type TextShape struct {
	Name        string
	Frame       Rect
	Placeholder PlaceholderKind
	Paragraphs  []TextParagraph
	Fill        string // "RRGGBB" background; empty = no fill
}

// TableShape is a native table sized rows x columns.
type TableShape struct {
	Name      string
	Frame     Rect
	Rows      [][]string
	HeaderRow bool
	ColWidth  EMU
	RowHeight EMU
}

// PictureShape embeds a raster image.
type PictureShape struct {
	Name  string
	Frame Rect
	Data  []byte // PNG or JPEG bytes
	Alt   string
}

func (*TextShape) isShape()    {}
func (*TableShape) isShape()   {}
func (*PictureShape) isShape() {}
