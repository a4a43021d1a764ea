package md2pptx

import (
	"context"
	"fmt"

	"github.com/alnah/go-md2pptx/internal/compiler"
	"github.com/alnah/go-md2pptx/internal/diag"
	"github.com/alnah/go-md2pptx/internal/diagram"
	"github.com/alnah/go-md2pptx/internal/pptx"
)

// Compile-time interface implementation checks.
// These ensure implementations satisfy their interfaces at compile time,
// catching signature mismatches before runtime.
var (
	_ diagram.Renderer = (*diagram.RodRenderer)(nil)
	_ diagram.Renderer = diagram.Disabled{}
	_ diagram.Renderer = (*renderCache)(nil)
	_ diag.Sink        = (*diag.Collector)(nil)
)

// Converter orchestrates the markdown-to-presentation pipeline.
// Create with NewConverter(), use Convert() for conversion, and Close() when done.
type Converter struct {
	cfg      converterConfig
	compiler *compiler.Compiler
	renderer diagram.Renderer
}

// NewConverter creates a Converter with default configuration.
// Use options to customize behavior (e.g., WithTimeout, WithDiagramDPI).
// Returns an error if an option value is out of range.
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{
		cfg: converterConfig{
			timeout:        defaultTimeout,
			diagramTimeout: defaultDiagramTimeout,
			diagramDPI:     DefaultDiagramDPI,
		},
		compiler: compiler.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.cfg.diagramDPI < MinDiagramDPI || c.cfg.diagramDPI > MaxDiagramDPI {
		return nil, fmt.Errorf("%w: %d (must be between %d and %d)",
			ErrInvalidDPI, c.cfg.diagramDPI, MinDiagramDPI, MaxDiagramDPI)
	}

	// Create the diagram renderer if not injected (e.g., by tests)
	if c.renderer == nil {
		if c.cfg.noDiagrams {
			c.renderer = diagram.Disabled{}
		} else {
			c.renderer = diagram.NewRodRenderer(c.cfg.diagramTimeout)
		}
	}

	return c, nil
}

// Convert runs the full pipeline and returns the presentation package plus
// any diagnostics collected along the way. The context is used for
// cancellation; the configured timeout bounds the whole conversion.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (c *Converter) Convert(ctx context.Context, input Input) (result *ConvertResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if input.Markdown == "" {
		return nil, ErrEmptyMarkdown
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	sink := &diag.Collector{}

	// Compile markdown into slide content
	slides, err := c.compiler.Compile(ctx, []byte(input.Markdown))
	if err != nil {
		return nil, fmt.Errorf("compiling markdown: %w", err)
	}

	// Resolve layouts from the template, if one was supplied
	layouts := pptx.DefaultLayouts()
	if input.Template != nil {
		layouts, err = pptx.ResolveTemplate(input.Template)
		if err != nil {
			return nil, fmt.Errorf("resolving template: %w", err)
		}
	}

	// Render diagrams up front with bounded concurrency. The assembler then
	// consumes results from the cache in document order, so slide output
	// stays deterministic regardless of render completion order.
	cache := c.prerenderDiagrams(ctx, slides)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Assemble the deck
	assembler := pptx.NewAssembler(layouts, cache, pptx.AssembleOptions{
		DPI:     c.cfg.diagramDPI,
		Strict:  c.cfg.strict,
		BaseDir: input.SourceDir,
		Sink:    sink,
	})
	deck, err := assembler.Assemble(ctx, slides)
	if err != nil {
		return nil, fmt.Errorf("assembling slides: %w", err)
	}

	// Serialize the package
	data, err := pptx.Package(deck, layouts)
	if err != nil {
		return nil, fmt.Errorf("packaging presentation: %w", err)
	}

	return &ConvertResult{
		PPTX:        data,
		SlideCount:  len(deck.Slides),
		Diagnostics: sink.Items(),
	}, nil
}

// Close releases resources (headless Chrome browser, when one was started).
func (c *Converter) Close() error {
	if c.renderer != nil {
		return c.renderer.Close()
	}
	return nil
}
