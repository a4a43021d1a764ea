package main

import (
	"errors"
	"os"

	md2pptx "github.com/alnah/go-md2pptx"
	"github.com/alnah/go-md2pptx/internal/config"
)

// Exit codes for md2pptx CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful conversion
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitBrowser = 4 // Browser errors (diagram rendering)
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, md2pptx.ErrDiagramUnavailable) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadMarkdown) ||
		errors.Is(err, ErrReadTemplate) ||
		errors.Is(err, ErrWriteDeck) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, md2pptx.ErrEmptyMarkdown) ||
		errors.Is(err, md2pptx.ErrInvalidDPI) ||
		errors.Is(err, md2pptx.ErrSourceEncoding) ||
		errors.Is(err, md2pptx.ErrTemplateOpen) ||
		errors.Is(err, md2pptx.ErrTemplateParse) ||
		errors.Is(err, md2pptx.ErrMissingPlaceholder) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrInvalidFlags) {
		return ExitUsage
	}

	return ExitGeneral
}
