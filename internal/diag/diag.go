// Package diag provides an explicit diagnostics sink for the conversion
// pipeline. Stages report recoverable degradations (skipped diagram, missing
// placeholder, padded table row) through a Sink passed in by the caller, so
// the core carries no process-wide logging state.
package diag

import (
	"fmt"
	"sync"
)

// Stage identifies the pipeline stage that produced a diagnostic.
type Stage string

// Pipeline stages.
const (
	StageCompile  Stage = "compile"
	StageTemplate Stage = "template"
	StageDiagram  Stage = "diagram"
	StageAssemble Stage = "assemble"
	StagePackage  Stage = "package"
)

// Diagnostic describes a recoverable issue encountered during conversion.
// Slide is the zero-based slide index, or -1 when the issue is not tied to
// a particular slide.
type Diagnostic struct {
	Stage   Stage
	Slide   int
	Message string
}

// String formats the diagnostic for human-readable output.
func (d Diagnostic) String() string {
	if d.Slide < 0 {
		return fmt.Sprintf("[%s] %s", d.Stage, d.Message)
	}
	return fmt.Sprintf("[%s] slide %d: %s", d.Stage, d.Slide+1, d.Message)
}

// Sink receives diagnostics from pipeline stages.
type Sink interface {
	Report(Diagnostic)
}

// Collector is a Sink that accumulates diagnostics in order.
// Safe for concurrent use (diagram rendering may report from workers).
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Report appends a diagnostic to the collector.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, d)
}

// Items returns a copy of the collected diagnostics.
func (c *Collector) Items() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Discard is a Sink that drops every diagnostic.
type Discard struct{}

// Report implements Sink.
func (Discard) Report(Diagnostic) {}

// Reportf formats and reports a diagnostic to sink. A nil sink is allowed
// and drops the diagnostic.
func Reportf(sink Sink, stage Stage, slide int, format string, args ...any) {
	if sink == nil {
		return
	}
	sink.Report(Diagnostic{Stage: stage, Slide: slide, Message: fmt.Sprintf(format, args...)})
}
