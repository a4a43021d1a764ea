package pptx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/alnah/go-md2pptx/internal/compiler"
	"github.com/alnah/go-md2pptx/internal/diag"
	"github.com/alnah/go-md2pptx/internal/diagram"
)

// ErrMissingPlaceholder indicates a strict-mode template is missing a
// placeholder a slide needs.
var ErrMissingPlaceholder = errors.New("template missing required placeholder")

// Text sizing defaults, in points.
const (
	bodyBaseSize = 18.0
	leadBaseSize = 20.0
	codeBaseSize = 12.0
	minBodySize  = 10.0
	shrinkStep   = 2.0
	lineSpacing  = 1.2
)

// Flow spacing and fallback geometry.
const (
	blockGap       = EMU(91440)  // 0.1in between stacked shapes
	sideMargin     = EMU(457200) // 0.5in
	fallbackTitleH = EMU(1143000)
	tableRowH      = EMU(370840)
	codeFill       = "F2F2F2"
)

// AssembleOptions configures the assembler.
type AssembleOptions struct {
	DPI    int
	Strict bool
	// BaseDir resolves relative image paths in the source document.
	BaseDir string
	Sink    diag.Sink
}

// Assembler turns compiled slide content into the deck object graph.
type Assembler struct {
	layouts  *LayoutSet
	delegate diagram.Renderer
	opts     AssembleOptions
}

// NewAssembler creates an Assembler. A nil delegate disables diagram
// rendering; a nil sink discards diagnostics.
func NewAssembler(layouts *LayoutSet, delegate diagram.Renderer, opts AssembleOptions) *Assembler {
	if layouts == nil {
		layouts = DefaultLayouts()
	}
	if delegate == nil {
		delegate = diagram.Disabled{}
	}
	if opts.Sink == nil {
		opts.Sink = diag.Discard{}
	}
	if opts.DPI <= 0 {
		opts.DPI = diagram.BaseDPI
	}
	return &Assembler{layouts: layouts, delegate: delegate, opts: opts}
}

// Assemble builds the deck slide by slide, in order.
func (a *Assembler) Assemble(ctx context.Context, slides []compiler.SlideContent) (*Deck, error) {
	deck := &Deck{
		SlideWidth:  a.layouts.SlideWidth,
		SlideHeight: a.layouts.SlideHeight,
		ThemeXML:    a.layouts.ThemeXML,
	}
	for i, sc := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slide, err := a.assembleSlide(ctx, i, sc)
		if err != nil {
			return nil, err
		}
		deck.Slides = append(deck.Slides, slide)
	}
	return deck, nil
}

func (a *Assembler) assembleSlide(ctx context.Context, idx int, sc compiler.SlideContent) (*Slide, error) {
	isTitle := sc.Kind == compiler.KindTitle
	layout := a.layouts.Content
	slide := &Slide{Layout: LayoutContent}
	if isTitle {
		layout = a.layouts.Title
		slide.Layout = LayoutTitle
	}

	body := sc.Body

	// Title placeholder.
	if sc.Title != "" {
		ph, ok := layout.Placeholders[RoleTitle]
		if !ok {
			if a.opts.Strict && a.layouts.FromTemplate {
				return nil, fmt.Errorf("%w: title (layout %q)", ErrMissingPlaceholder, layout.Name)
			}
			diag.Reportf(a.opts.Sink, diag.StageAssemble, idx,
				"layout %q has no title placeholder; using a plain text box", layout.Name)
			ph = ShapeDescriptor{Frame: Rect{
				X: sideMargin, Y: 274638,
				W: a.layouts.SlideWidth - 2*sideMargin, H: fallbackTitleH,
			}}
		}
		kind := PHTitle
		if isTitle {
			kind = PHCenterTitle
		}
		slide.Shapes = append(slide.Shapes, &TextShape{
			Name:        "Title 1",
			Frame:       ph.Frame,
			Placeholder: kind,
			Paragraphs:  []TextParagraph{{Runs: runsOf(nil, sc.Title)}},
		})
	}

	// Lead placeholder: resolved by exact name, independent of layout.
	if sc.Lead != "" {
		if ph, ok := a.layouts.ByName[LeadShapeName]; ok {
			slide.Shapes = append(slide.Shapes, &TextShape{
				Name:  LeadShapeName,
				Frame: ph.Frame,
				Paragraphs: []TextParagraph{{
					Runs: []TextRun{{Text: sc.Lead, Italic: true}},
					Size: leadBaseSize,
				}},
			})
		} else if a.opts.Strict && a.layouts.FromTemplate {
			return nil, fmt.Errorf("%w: %s", ErrMissingPlaceholder, LeadShapeName)
		} else {
			diag.Reportf(a.opts.Sink, diag.StageAssemble, idx,
				"no %q shape in template; folding lead text into the body", LeadShapeName)
			body = append([]compiler.BodyBlock{leadFallback(sc.Lead)}, body...)
		}
	}

	bound := a.bodyBound(layout, isTitle)

	// On the title slide the first paragraph becomes the subtitle
	// placeholder; remaining blocks flow beneath it.
	if isTitle {
		if ph, ok := layout.Placeholders[RoleBody]; ok && len(body) > 0 {
			if p, isPara := body[0].(compiler.Paragraph); isPara {
				slide.Shapes = append(slide.Shapes, &TextShape{
					Name:        "Subtitle 2",
					Frame:       ph.Frame,
					Placeholder: PHSubtitle,
					Paragraphs:  []TextParagraph{{Runs: runsOf(p.Spans, "")}},
				})
				body = body[1:]
				bound = Rect{
					X: sideMargin,
					Y: ph.Frame.Y + ph.Frame.H + blockGap,
					W: a.layouts.SlideWidth - 2*sideMargin,
					H: a.layouts.SlideHeight - (ph.Frame.Y + ph.Frame.H + blockGap) - sideMargin,
				}
			}
		}
	}

	plans := a.planBody(ctx, idx, body, bound)
	a.flowBody(slide, plans, bound, isTitle)
	return slide, nil
}

// bodyBound returns the region body shapes flow into.
func (a *Assembler) bodyBound(layout TemplateLayout, isTitle bool) Rect {
	if !isTitle {
		if ph, ok := layout.Placeholders[RoleBody]; ok {
			return ph.Frame
		}
	}
	top := fallbackTitleH + 2*blockGap
	return Rect{
		X: sideMargin,
		Y: top,
		W: a.layouts.SlideWidth - 2*sideMargin,
		H: a.layouts.SlideHeight - top - sideMargin,
	}
}

// bodyPlan is one body block prepared for flowing: either scalable text
// or a fixed-extent table/picture.
type bodyPlan struct {
	paras []TextParagraph // scalable text (nil for table/picture)
	fill  string
	table *TableShape
	pic   *PictureShape
	picW  EMU // natural picture extent
	picH  EMU
}

// planBody translates body blocks into plans, invoking the diagram
// delegate for diagram blocks. Delegate failure skips the block with a
// diagnostic; this is the pipeline's only intentional drop.
func (a *Assembler) planBody(ctx context.Context, idx int, body []compiler.BodyBlock, bound Rect) []bodyPlan {
	var plans []bodyPlan
	for _, block := range body {
		switch b := block.(type) {
		case compiler.Paragraph:
			plans = append(plans, bodyPlan{paras: []TextParagraph{
				{Runs: runsOf(b.Spans, ""), Size: bodyBaseSize},
			}})

		case compiler.BulletList:
			plans = append(plans, bodyPlan{paras: listParas(b.Items, BulletChar)})

		case compiler.NumberedList:
			plans = append(plans, bodyPlan{paras: listParas(b.Items, BulletNumber)})

		case compiler.CodeBlock:
			plans = append(plans, bodyPlan{
				paras: highlightCode(b.Text, b.Language, codeBaseSize),
				fill:  codeFill,
			})

		case compiler.Table:
			if len(b.Rows) == 0 {
				continue
			}
			cols := len(b.Rows[0])
			plans = append(plans, bodyPlan{table: &TableShape{
				Rows:      b.Rows,
				HeaderRow: true,
				ColWidth:  bound.W / EMU(cols),
				RowHeight: tableRowH,
			}})

		case compiler.Image:
			if plan, ok := a.planImage(idx, b); ok {
				plans = append(plans, plan)
			}

		case compiler.Diagram:
			rendered, err := a.delegate.Render(ctx, b.Source, b.Language, a.opts.DPI)
			if err != nil {
				diag.Reportf(a.opts.Sink, diag.StageDiagram, idx,
					"skipping %s block: %v", b.Language, err)
				continue
			}
			plans = append(plans, bodyPlan{
				pic:  &PictureShape{Data: rendered.Data, Alt: b.Language + " diagram"},
				picW: FromPixels(rendered.PixelWidth, rendered.DPI),
				picH: FromPixels(rendered.PixelHeight, rendered.DPI),
			})
		}
	}
	return plans
}

// planImage loads an image asset from disk. An unreadable asset degrades
// to its alt text so no content silently disappears.
func (a *Assembler) planImage(idx int, img compiler.Image) (bodyPlan, bool) {
	path := img.Path
	if !filepath.IsAbs(path) && a.opts.BaseDir != "" {
		path = filepath.Join(a.opts.BaseDir, path)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path from user document
	if err != nil {
		diag.Reportf(a.opts.Sink, diag.StageAssemble, idx,
			"image %q unreadable (%v); substituting alt text", img.Path, err)
		return altTextPlan(img), img.Alt != "" || img.Path != ""
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		diag.Reportf(a.opts.Sink, diag.StageAssemble, idx,
			"image %q undecodable (%v); substituting alt text", img.Path, err)
		return altTextPlan(img), img.Alt != "" || img.Path != ""
	}

	return bodyPlan{
		pic:  &PictureShape{Data: data, Alt: img.Alt},
		picW: FromPixels(cfg.Width, diagram.BaseDPI),
		picH: FromPixels(cfg.Height, diagram.BaseDPI),
	}, true
}

func altTextPlan(img compiler.Image) bodyPlan {
	text := img.Alt
	if text == "" {
		text = img.Path
	}
	return bodyPlan{paras: []TextParagraph{{
		Runs: []TextRun{{Text: "[" + text + "]", Italic: true}},
		Size: bodyBaseSize,
	}}}
}

// flowBody stacks the planned shapes into the bound. When the accumulated
// height exceeds the bound, text sizes shrink in fixed steps down to a
// floor; past the floor, overflow is allowed rather than dropping content.
func (a *Assembler) flowBody(slide *Slide, plans []bodyPlan, bound Rect, isTitle bool) {
	if len(plans) == 0 {
		return
	}

	var delta float64
	for delta = 0; delta <= bodyBaseSize-minBodySize; delta += shrinkStep {
		if a.totalHeight(plans, bound, delta) <= bound.H {
			break
		}
	}
	if delta > bodyBaseSize-minBodySize {
		delta = bodyBaseSize - minBodySize
	}

	y := bound.Y
	n := 1
	for i := range plans {
		p := &plans[i]
		var h EMU
		switch {
		case p.table != nil:
			h = EMU(len(p.table.Rows)) * p.table.RowHeight
			p.table.Name = fmt.Sprintf("Table %d", n+2)
			p.table.Frame = Rect{X: bound.X, Y: y, W: bound.W, H: h}
			slide.Shapes = append(slide.Shapes, p.table)

		case p.pic != nil:
			region := remaining(bound, y)
			fitted := FitInto(p.picW, p.picH, region)
			h = fitted.H
			p.pic.Name = fmt.Sprintf("Picture %d", n+2)
			p.pic.Frame = fitted
			slide.Shapes = append(slide.Shapes, p.pic)

		default:
			paras := shrunkParas(p.paras, delta)
			h = textHeight(paras, bound.W)
			shape := &TextShape{
				Name:       fmt.Sprintf("TextBox %d", n+2),
				Frame:      Rect{X: bound.X, Y: y, W: bound.W, H: h},
				Paragraphs: paras,
				Fill:       p.fill,
			}
			// The first text block of a content slide binds to the body
			// placeholder so the layout's list styling applies.
			if !isTitle && n == 1 && p.fill == "" {
				shape.Placeholder = PHBody
			}
			slide.Shapes = append(slide.Shapes, shape)
		}
		y += h + blockGap
		n++
	}
}

// totalHeight estimates the flowed height of all plans at a shrink delta.
func (a *Assembler) totalHeight(plans []bodyPlan, bound Rect, delta float64) EMU {
	var total EMU
	for _, p := range plans {
		switch {
		case p.table != nil:
			total += EMU(len(p.table.Rows)) * p.table.RowHeight
		case p.pic != nil:
			fitted := FitInto(p.picW, p.picH, Rect{W: bound.W, H: bound.H})
			total += fitted.H
		default:
			total += textHeight(shrunkParas(p.paras, delta), bound.W)
		}
		total += blockGap
	}
	return total - blockGap
}

// remaining is the unconsumed part of the bound from y down, falling back
// to the full bound height once flow has overflowed.
func remaining(bound Rect, y EMU) Rect {
	h := bound.H - (y - bound.Y)
	if h <= 0 {
		h = bound.H
	}
	return Rect{X: bound.X, Y: y, W: bound.W, H: h}
}

// shrunkParas returns paragraphs with sizes reduced by delta, floored.
func shrunkParas(paras []TextParagraph, delta float64) []TextParagraph {
	if delta == 0 {
		return paras
	}
	out := make([]TextParagraph, len(paras))
	copy(out, paras)
	for i := range out {
		if out[i].Size > 0 {
			out[i].Size = math.Max(minBodySize, out[i].Size-delta)
		}
	}
	return out
}

// textHeight estimates the rendered height of paragraphs wrapped to width.
// The estimate is deliberately simple (average glyph width) but
// deterministic, which the overflow policy and idempotence both need.
func textHeight(paras []TextParagraph, width EMU) EMU {
	widthPt := float64(width) / float64(EMUPerPoint)
	var total float64
	for _, p := range paras {
		size := p.Size
		if size == 0 {
			size = bodyBaseSize
		}
		var chars int
		for _, r := range p.Runs {
			chars += len([]rune(r.Text))
		}
		charW := 0.55 * size
		perLine := int(widthPt / charW)
		if perLine < 1 {
			perLine = 1
		}
		lines := (chars + perLine - 1) / perLine
		if lines < 1 {
			lines = 1
		}
		total += float64(lines) * size * lineSpacing
	}
	return Points(total)
}

// listParas converts list items into bulleted or numbered paragraphs.
func listParas(items []compiler.ListItem, bullet BulletKind) []TextParagraph {
	paras := make([]TextParagraph, 0, len(items))
	for _, it := range items {
		paras = append(paras, TextParagraph{
			Runs:   runsOf(it.Spans, ""),
			Level:  it.Depth,
			Bullet: bullet,
			Size:   bodyBaseSize,
		})
	}
	return paras
}

// runsOf maps styled spans to text runs. When spans is nil, plain is used
// as a single unstyled run.
func runsOf(spans []compiler.Span, plain string) []TextRun {
	if spans == nil {
		return []TextRun{{Text: plain}}
	}
	runs := make([]TextRun, 0, len(spans))
	for _, s := range spans {
		runs = append(runs, TextRun{
			Text:   s.Text,
			Bold:   s.Bold,
			Italic: s.Italic,
			Strike: s.Strike,
			Mono:   s.Code,
		})
	}
	return runs
}

// leadFallback styles dropped lead text as a distinct first paragraph.
func leadFallback(lead string) compiler.BodyBlock {
	return compiler.Paragraph{Spans: []compiler.Span{{Text: lead, Italic: true}}}
}
