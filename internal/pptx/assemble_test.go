package pptx

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/alnah/go-md2pptx/internal/compiler"
	"github.com/alnah/go-md2pptx/internal/diag"
	"github.com/alnah/go-md2pptx/internal/diagram"
)

// fakeRenderer returns a fixed rendering for every diagram block.
type fakeRenderer struct {
	data []byte
	w, h int
	dpi  int
}

func (f fakeRenderer) Render(_ context.Context, _, _ string, _ int) (*diagram.Rendered, error) {
	return &diagram.Rendered{Data: f.data, PixelWidth: f.w, PixelHeight: f.h, DPI: f.dpi}, nil
}

func (f fakeRenderer) Close() error { return nil }

func spans(text string) []compiler.Span {
	return []compiler.Span{{Text: text}}
}

func textShapes(slide *Slide) []*TextShape {
	var out []*TextShape
	for _, s := range slide.Shapes {
		if ts, ok := s.(*TextShape); ok {
			out = append(out, ts)
		}
	}
	return out
}

func TestAssembleTitleSlide(t *testing.T) {
	t.Parallel()

	a := NewAssembler(nil, nil, AssembleOptions{})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindTitle,
		Title: "Launch Plan",
		Body:  []compiler.BodyBlock{compiler.Paragraph{Spans: spans("Q3 review")}},
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if len(deck.Slides) != 1 {
		t.Fatalf("got %d slides, want 1", len(deck.Slides))
	}
	slide := deck.Slides[0]
	if slide.Layout != LayoutTitle {
		t.Errorf("layout = %v, want title", slide.Layout)
	}
	shapes := textShapes(slide)
	if len(shapes) != 2 {
		t.Fatalf("got %d text shapes, want title + subtitle", len(shapes))
	}
	if shapes[0].Placeholder != PHCenterTitle {
		t.Errorf("title placeholder = %v, want centered title", shapes[0].Placeholder)
	}
	if shapes[1].Placeholder != PHSubtitle {
		t.Errorf("subtitle placeholder = %v", shapes[1].Placeholder)
	}
	if got := shapes[1].Paragraphs[0].Runs[0].Text; got != "Q3 review" {
		t.Errorf("subtitle text = %q", got)
	}
}

func TestAssembleContentSlide(t *testing.T) {
	t.Parallel()

	a := NewAssembler(nil, nil, AssembleOptions{})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindContent,
		Title: "Status",
		Body: []compiler.BodyBlock{
			compiler.Paragraph{Spans: spans("On track.")},
			compiler.BulletList{Items: []compiler.ListItem{
				{Spans: spans("first")},
				{Spans: spans("second"), Depth: 1},
			}},
		},
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	shapes := textShapes(deck.Slides[0])
	if len(shapes) != 3 {
		t.Fatalf("got %d text shapes, want title + 2 body blocks", len(shapes))
	}
	if shapes[0].Placeholder != PHTitle {
		t.Errorf("title placeholder = %v", shapes[0].Placeholder)
	}

	// The first body block binds to the body placeholder; later blocks are
	// plain boxes stacked beneath it.
	body := shapes[1]
	if body.Placeholder != PHBody {
		t.Errorf("first body block placeholder = %v, want body", body.Placeholder)
	}
	wantFrame := DefaultLayouts().Content.Placeholders[RoleBody].Frame
	if body.Frame.X != wantFrame.X || body.Frame.Y != wantFrame.Y {
		t.Errorf("first body block at (%d, %d), want (%d, %d)",
			body.Frame.X, body.Frame.Y, wantFrame.X, wantFrame.Y)
	}

	list := shapes[2]
	if list.Placeholder != PHNone {
		t.Errorf("list block placeholder = %v, want none", list.Placeholder)
	}
	if list.Paragraphs[0].Bullet != BulletChar {
		t.Errorf("list bullet = %v, want char", list.Paragraphs[0].Bullet)
	}
	if list.Paragraphs[1].Level != 1 {
		t.Errorf("nested item level = %d, want 1", list.Paragraphs[1].Level)
	}
	if list.Frame.Y <= body.Frame.Y {
		t.Error("list block not stacked below the first body block")
	}
}

func TestAssembleLeadFoldsWithoutShape(t *testing.T) {
	t.Parallel()

	var sink diag.Collector
	a := NewAssembler(nil, nil, AssembleOptions{Sink: &sink})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindContent,
		Title: "Topic",
		Lead:  "The one-line takeaway",
		Body:  []compiler.BodyBlock{compiler.Paragraph{Spans: spans("Details.")}},
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	shapes := textShapes(deck.Slides[0])
	if len(shapes) != 3 {
		t.Fatalf("got %d text shapes, want title + folded lead + body", len(shapes))
	}
	lead := shapes[1].Paragraphs[0].Runs[0]
	if lead.Text != "The one-line takeaway" || !lead.Italic {
		t.Errorf("folded lead run = %+v, want italic lead text first in body", lead)
	}
	if len(sink.Items()) == 0 {
		t.Error("folding the lead produced no diagnostic")
	}
}

func TestAssembleLeadPlaceholder(t *testing.T) {
	t.Parallel()

	set := DefaultLayouts()
	set.FromTemplate = true
	set.ByName[LeadShapeName] = ShapeDescriptor{
		Name: LeadShapeName, Role: RoleLead,
		Frame: Rect{X: 100, Y: 200, W: 3000, H: 400},
	}

	a := NewAssembler(set, nil, AssembleOptions{Strict: true})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindContent,
		Title: "Topic",
		Lead:  "Takeaway",
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	shapes := textShapes(deck.Slides[0])
	if len(shapes) != 2 {
		t.Fatalf("got %d text shapes, want title + lead", len(shapes))
	}
	lead := shapes[1]
	if lead.Name != LeadShapeName {
		t.Errorf("lead shape name = %q", lead.Name)
	}
	if lead.Frame != (Rect{X: 100, Y: 200, W: 3000, H: 400}) {
		t.Errorf("lead frame = %+v, want the template's frame", lead.Frame)
	}
}

func TestAssembleStrictMissingLead(t *testing.T) {
	t.Parallel()

	set := DefaultLayouts()
	set.FromTemplate = true

	a := NewAssembler(set, nil, AssembleOptions{Strict: true})
	_, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind: compiler.KindContent, Title: "T", Lead: "L",
	}})
	if !errors.Is(err, ErrMissingPlaceholder) {
		t.Errorf("error = %v, want ErrMissingPlaceholder", err)
	}
}

func TestAssembleStrictMissingTitle(t *testing.T) {
	t.Parallel()

	set := DefaultLayouts()
	set.FromTemplate = true
	delete(set.Content.Placeholders, RoleTitle)

	a := NewAssembler(set, nil, AssembleOptions{Strict: true})
	_, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind: compiler.KindContent, Title: "Topic",
	}})
	if !errors.Is(err, ErrMissingPlaceholder) {
		t.Errorf("error = %v, want ErrMissingPlaceholder", err)
	}
}

func TestAssembleStrictIgnoredForBuiltinLayouts(t *testing.T) {
	t.Parallel()

	// Strict mode only binds when a template was actually supplied.
	a := NewAssembler(nil, nil, AssembleOptions{Strict: true})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind: compiler.KindContent, Title: "T", Lead: "L",
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(deck.Slides) != 1 {
		t.Fatalf("got %d slides, want 1", len(deck.Slides))
	}
}

func TestAssembleDiagramSkipped(t *testing.T) {
	t.Parallel()

	var sink diag.Collector
	a := NewAssembler(nil, nil, AssembleOptions{Sink: &sink})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindContent,
		Title: "Flow",
		Body: []compiler.BodyBlock{
			compiler.Diagram{Source: "graph TD; A-->B", Language: "mermaid"},
			compiler.Paragraph{Spans: spans("After the diagram.")},
		},
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	// The unrenderable diagram is dropped; surrounding content survives.
	for _, s := range deck.Slides[0].Shapes {
		if _, ok := s.(*PictureShape); ok {
			t.Fatal("diagram rendered despite a disabled delegate")
		}
	}
	if len(textShapes(deck.Slides[0])) != 2 {
		t.Errorf("got %d text shapes, want title + paragraph", len(textShapes(deck.Slides[0])))
	}
	items := sink.Items()
	if len(items) != 1 || items[0].Stage != diag.StageDiagram {
		t.Errorf("diagnostics = %+v, want one diagram-stage entry", items)
	}
}

func TestAssembleDiagramRendered(t *testing.T) {
	t.Parallel()

	delegate := fakeRenderer{data: []byte("\x89PNGdata"), w: 192, h: 96, dpi: 96}
	a := NewAssembler(nil, delegate, AssembleOptions{})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindContent,
		Title: "Flow",
		Body:  []compiler.BodyBlock{compiler.Diagram{Source: "graph TD", Language: "mermaid"}},
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	var pic *PictureShape
	for _, s := range deck.Slides[0].Shapes {
		if p, ok := s.(*PictureShape); ok {
			pic = p
		}
	}
	if pic == nil {
		t.Fatal("no picture shape on the slide")
	}
	if pic.Alt != "mermaid diagram" {
		t.Errorf("alt text = %q", pic.Alt)
	}
	// 192x96 px at 96 DPI is a 2:1 box; the fitted frame keeps that ratio.
	if pic.Frame.W != 2*pic.Frame.H {
		t.Errorf("fitted frame = %+v, want 2:1 aspect", pic.Frame)
	}
}

func TestAssembleTable(t *testing.T) {
	t.Parallel()

	a := NewAssembler(nil, nil, AssembleOptions{})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindContent,
		Title: "Numbers",
		Body: []compiler.BodyBlock{compiler.Table{Rows: [][]string{
			{"Region", "Total"},
			{"North", "42"},
		}}},
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	var tbl *TableShape
	for _, s := range deck.Slides[0].Shapes {
		if ts, ok := s.(*TableShape); ok {
			tbl = ts
		}
	}
	if tbl == nil {
		t.Fatal("no table shape on the slide")
	}
	if !tbl.HeaderRow {
		t.Error("HeaderRow = false")
	}
	bound := DefaultLayouts().Content.Placeholders[RoleBody].Frame
	if tbl.ColWidth != bound.W/2 {
		t.Errorf("ColWidth = %d, want %d", tbl.ColWidth, bound.W/2)
	}
}

func TestAssembleImageMissing(t *testing.T) {
	t.Parallel()

	var sink diag.Collector
	a := NewAssembler(nil, nil, AssembleOptions{Sink: &sink, BaseDir: t.TempDir()})
	deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
		Kind:  compiler.KindContent,
		Title: "Charts",
		Body:  []compiler.BodyBlock{compiler.Image{Path: "missing.png", Alt: "revenue chart"}},
	}})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	shapes := textShapes(deck.Slides[0])
	if len(shapes) != 2 {
		t.Fatalf("got %d text shapes, want title + alt text", len(shapes))
	}
	run := shapes[1].Paragraphs[0].Runs[0]
	if run.Text != "[revenue chart]" || !run.Italic {
		t.Errorf("alt run = %+v, want bracketed italic alt text", run)
	}
	if len(sink.Items()) == 0 {
		t.Error("missing image produced no diagnostic")
	}
}

func TestAssembleOverflowShrinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		blocks   int
		wantSize float64
	}{
		{"fits at base size", 3, bodyBaseSize},
		{"one shrink step", 13, bodyBaseSize - 2},
		{"floored at minimum", 20, minBodySize},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var body []compiler.BodyBlock
			for i := 0; i < tt.blocks; i++ {
				body = append(body, compiler.Paragraph{Spans: spans(fmt.Sprintf("line %d", i))})
			}
			a := NewAssembler(nil, nil, AssembleOptions{})
			deck, err := a.Assemble(context.Background(), []compiler.SlideContent{{
				Kind: compiler.KindContent, Body: body,
			}})
			if err != nil {
				t.Fatalf("Assemble() error = %v", err)
			}
			for _, s := range textShapes(deck.Slides[0]) {
				for _, p := range s.Paragraphs {
					if p.Size != tt.wantSize {
						t.Fatalf("paragraph size = %v, want %v", p.Size, tt.wantSize)
					}
				}
			}
		})
	}
}

func TestAssembleDeterministic(t *testing.T) {
	t.Parallel()

	slides := []compiler.SlideContent{
		{Kind: compiler.KindTitle, Title: "T", Body: []compiler.BodyBlock{
			compiler.Paragraph{Spans: spans("sub")},
		}},
		{Kind: compiler.KindContent, Title: "S", Lead: "L", Body: []compiler.BodyBlock{
			compiler.Paragraph{Spans: spans(strings.Repeat("word ", 80))},
			compiler.CodeBlock{Text: "x := 1", Language: "go"},
		}},
	}

	run := func() *Deck {
		a := NewAssembler(nil, nil, AssembleOptions{})
		deck, err := a.Assemble(context.Background(), slides)
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		return deck
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("two assemblies of the same content differ")
	}
}

func TestAssembleCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAssembler(nil, nil, AssembleOptions{})
	_, err := a.Assemble(ctx, []compiler.SlideContent{{Kind: compiler.KindContent}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
