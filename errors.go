package md2pptx

import (
	"errors"

	"github.com/alnah/go-md2pptx/internal/compiler"
	"github.com/alnah/go-md2pptx/internal/diagram"
	"github.com/alnah/go-md2pptx/internal/pptx"
)

// Sentinel errors for library operations.
var (
	ErrEmptyMarkdown = errors.New("markdown content cannot be empty")
	ErrInvalidDPI    = errors.New("invalid diagram DPI")
)

// Pipeline errors re-exported so callers can classify failures with
// errors.Is without importing internal packages.
var (
	// ErrSourceEncoding means the markdown bytes are not valid UTF-8.
	ErrSourceEncoding = compiler.ErrNotUTF8

	// ErrTemplateOpen means the supplied template is not a readable package.
	ErrTemplateOpen = pptx.ErrTemplateOpen

	// ErrTemplateParse means a template layout part could not be parsed.
	ErrTemplateParse = pptx.ErrTemplateParse

	// ErrMissingPlaceholder means strict mode found a slide whose template
	// lacks a placeholder it needs.
	ErrMissingPlaceholder = pptx.ErrMissingPlaceholder

	// ErrPackage means output serialization failed.
	ErrPackage = pptx.ErrPackage

	// ErrDiagramUnavailable means diagram rendering cannot run at all.
	// It never fails a conversion; it appears in diagnostics only.
	ErrDiagramUnavailable = diagram.ErrUnavailable
)
