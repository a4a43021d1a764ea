package md2pptx

import (
	"context"
	"sync"

	"github.com/alnah/go-md2pptx/internal/compiler"
	"github.com/alnah/go-md2pptx/internal/diagram"
)

// renderKey identifies one diagram rendering request.
type renderKey struct {
	source   string
	language string
	dpi      int
}

// renderResult is a completed rendering, successful or not.
type renderResult struct {
	rendered *diagram.Rendered
	err      error
}

// renderCache is a diagram.Renderer that answers from pre-computed results.
// It lets diagram rendering run concurrently while the assembler consumes
// strictly in document order.
type renderCache struct {
	delegate diagram.Renderer
	results  map[renderKey]renderResult
}

// Render returns the pre-computed result, falling through to the delegate
// for a block the prerender pass did not see.
func (c *renderCache) Render(ctx context.Context, source, language string, dpi int) (*diagram.Rendered, error) {
	if r, ok := c.results[renderKey{source, language, dpi}]; ok {
		return r.rendered, r.err
	}
	return c.delegate.Render(ctx, source, language, dpi)
}

// Close implements diagram.Renderer. The underlying delegate is owned by
// the Converter and closed there.
func (c *renderCache) Close() error { return nil }

// prerenderDiagrams renders every distinct diagram block in the document
// with bounded concurrency and returns the filled cache. Render failures
// are cached too; the assembler reports them per block.
func (c *Converter) prerenderDiagrams(ctx context.Context, slides []compiler.SlideContent) *renderCache {
	cache := &renderCache{
		delegate: c.renderer,
		results:  make(map[renderKey]renderResult),
	}

	var keys []renderKey
	seen := make(map[renderKey]bool)
	for _, s := range slides {
		for _, b := range s.Body {
			d, ok := b.(compiler.Diagram)
			if !ok {
				continue
			}
			k := renderKey{source: d.Source, language: d.Language, dpi: c.cfg.diagramDPI}
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return cache
	}

	workers := ResolvePoolSize(c.cfg.diagramWorkers)
	if workers > len(keys) {
		workers = len(keys)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)
	for _, k := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(k renderKey) {
			defer wg.Done()
			defer func() { <-sem }()

			rendered, err := c.renderer.Render(ctx, k.source, k.language, k.dpi)

			mu.Lock()
			cache.results[k] = renderResult{rendered: rendered, err: err}
			mu.Unlock()
		}(k)
	}
	wg.Wait()

	return cache
}
