package md2pptx

import (
	"time"

	"github.com/alnah/go-md2pptx/internal/diag"
	"github.com/alnah/go-md2pptx/internal/diagram"
)

// Diagram DPI bounds, re-exported for flag validation.
const (
	DefaultDiagramDPI = diagram.BaseDPI
	MinDiagramDPI     = diagram.MinDPI
	MaxDiagramDPI     = diagram.MaxDPI
)

// Input contains conversion parameters.
type Input struct {
	Markdown  string // Markdown content (required)
	Template  []byte // Template presentation package (optional, nil = built-in layouts)
	SourceDir string // Base directory for relative image paths (optional)
}

// Diagnostic describes a recoverable degradation encountered during
// conversion (skipped diagram, missing placeholder, unreadable image).
type Diagnostic = diag.Diagnostic

// ConvertResult contains the conversion output.
type ConvertResult struct {
	PPTX        []byte       // the presentation package
	SlideCount  int          // slides in the output deck
	Diagnostics []Diagnostic // recoverable issues, in pipeline order
}

// Option configures a Converter.
type Option func(*Converter)

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	timeout        time.Duration
	diagramTimeout time.Duration
	diagramDPI     int
	diagramWorkers int
	strict         bool
	noDiagrams     bool
}

// Default timeouts.
const (
	defaultTimeout        = 30 * time.Second
	defaultDiagramTimeout = 15 * time.Second
)

// WithTimeout sets the whole-conversion timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("md2pptx: WithTimeout duration must be positive")
	}
	return func(c *Converter) {
		c.cfg.timeout = d
	}
}

// WithDiagramTimeout sets the per-diagram render timeout.
// Panics if d <= 0.
func WithDiagramTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("md2pptx: WithDiagramTimeout duration must be positive")
	}
	return func(c *Converter) {
		c.cfg.diagramTimeout = d
	}
}

// WithDiagramDPI sets the raster resolution for rendered diagrams.
// The value is validated by NewConverter against [MinDiagramDPI, MaxDiagramDPI].
func WithDiagramDPI(dpi int) Option {
	return func(c *Converter) {
		c.cfg.diagramDPI = dpi
	}
}

// WithDiagramWorkers caps how many diagrams render concurrently.
// Zero picks a size from GOMAXPROCS.
func WithDiagramWorkers(n int) Option {
	return func(c *Converter) {
		c.cfg.diagramWorkers = n
	}
}

// WithStrictPlaceholders makes a template that lacks a required placeholder
// a hard error instead of a degradation. Only meaningful when a template is
// supplied; the built-in layouts always satisfy their slides.
func WithStrictPlaceholders() Option {
	return func(c *Converter) {
		c.cfg.strict = true
	}
}

// WithoutDiagrams disables diagram rendering entirely. Diagram blocks are
// skipped with a diagnostic instead of launching a browser.
func WithoutDiagrams() Option {
	return func(c *Converter) {
		c.cfg.noDiagrams = true
	}
}
