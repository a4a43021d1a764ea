// Package diagram renders diagram-language blocks to raster images.
//
// Rendering is optional infrastructure: every failure surfaces as
// ErrUnavailable or ErrRender, and callers are expected to branch on those
// and degrade (skip the block) rather than abort the conversion.
package diagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-md2pptx/internal/fileutil"
)

// Sentinel errors. ErrUnavailable means the delegate cannot run at all
// (disabled, unsupported language, no browser); ErrRender means this
// particular block failed. Both are non-fatal to the pipeline.
var (
	ErrUnavailable = errors.New("diagram rendering unavailable")
	ErrRender      = errors.New("diagram rendering failed")
)

// DPI bounds. BaseDPI is the CSS reference resolution the browser
// renders at; requested DPI scales the capture relative to it.
const (
	BaseDPI = 96
	MinDPI  = 48
	MaxDPI  = 600
)

// Rendered is the raster output of a successful render.
type Rendered struct {
	Data        []byte // PNG bytes
	PixelWidth  int
	PixelHeight int
	DPI         int
}

// Renderer converts diagram source text into a raster image.
type Renderer interface {
	Render(ctx context.Context, source, language string, dpi int) (*Rendered, error)
	Close() error
}

// Disabled is a Renderer that reports every request as unavailable.
// Used when diagram rendering is switched off.
type Disabled struct{}

// Render implements Renderer.
func (Disabled) Render(context.Context, string, string, int) (*Rendered, error) {
	return nil, ErrUnavailable
}

// Close implements Renderer.
func (Disabled) Close() error { return nil }

// mermaidPage wraps diagram source in a page that renders it client-side.
// The selector #diagram svg appears once rendering has finished.
const mermaidPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<script src="https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"></script>
<style>body { margin: 0; background: white; }</style>
</head>
<body>
<div id="diagram" class="mermaid">
%s
</div>
<script>mermaid.initialize({ startOnLoad: true, theme: "default" });</script>
</body>
</html>`

// RodRenderer renders mermaid diagrams in headless Chrome via go-rod.
// Rod automatically downloads Chromium on first run if not found.
// Safe for concurrent use; renders share one browser with a page each.
type RodRenderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	timeout time.Duration
}

// NewRodRenderer creates a RodRenderer with the given per-render timeout.
func NewRodRenderer(timeout time.Duration) *RodRenderer {
	return &RodRenderer{timeout: timeout}
}

// ensureBrowser lazily connects to the browser.
func (r *RodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.browser = browser
	return browser, nil
}

// Close releases browser resources.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		err := r.browser.Close()
		r.browser = nil
		return err
	}
	return nil
}

// Render renders mermaid source to PNG at the requested DPI.
// Languages other than mermaid report ErrUnavailable.
func (r *RodRenderer) Render(ctx context.Context, source, language string, dpi int) (*Rendered, error) {
	if language != "mermaid" {
		return nil, fmt.Errorf("%w: language %q", ErrUnavailable, language)
	}
	if dpi < MinDPI || dpi > MaxDPI {
		return nil, fmt.Errorf("%w: dpi %d out of range [%d, %d]", ErrRender, dpi, MinDPI, MaxDPI)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tmpPath, cleanup, err := fileutil.WriteTempFile(fmt.Sprintf(mermaidPage, source), "html")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + tmpPath})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	defer page.Close()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	page = page.Timeout(timeout)

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	// Mermaid renders asynchronously; the svg element signals completion.
	svg, err := page.Element("#diagram svg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	data, err := svg.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	return finishRender(data, dpi)
}

// finishRender scales the captured PNG to the requested DPI and probes
// its final pixel dimensions.
func finishRender(data []byte, dpi int) (*Rendered, error) {
	if dpi != BaseDPI {
		scaled, err := ScalePNG(data, float64(dpi)/float64(BaseDPI))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
		data = scaled
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding capture: %v", ErrRender, err)
	}
	return &Rendered{
		Data:        data,
		PixelWidth:  cfg.Width,
		PixelHeight: cfg.Height,
		DPI:         dpi,
	}, nil
}
