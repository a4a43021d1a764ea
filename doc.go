// Package md2pptx converts Markdown documents to PowerPoint presentations.
//
// # Quick Start
//
// Create a converter, convert markdown, and close when done:
//
//	conv, err := md2pptx.NewConverter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	result, err := conv.Convert(ctx, md2pptx.Input{
//	    Markdown: "# Quarterly Review\n\n## Highlights\n\n- Revenue up",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("deck.pptx", result.PPTX, 0644)
//
// The result also carries the slide count and a list of diagnostics:
// recoverable degradations such as a skipped diagram or an unreadable
// image, each tagged with the pipeline stage and slide that produced it.
//
// # Conversion Pipeline
//
// The conversion process follows these stages:
//
//  1. Markdown compilation via Goldmark (GFM) into per-slide content;
//     headings drive slide boundaries (first H1 = title slide, H2 = new
//     slide, H3 right after H2 = lead line)
//  2. Template resolution (layouts, placeholder geometry, theme) from an
//     optional .pptx template, or built-in layouts
//  3. Diagram rendering via headless Chrome (go-rod), concurrent and
//     skippable
//  4. Slide assembly: placeholder binding, text flow with overflow
//     shrinking, code highlighting via Chroma
//  5. Packaging as a deterministic OPC container
//
// # Configuration
//
// Use functional options to customize the converter:
//
//	conv, err := md2pptx.NewConverter(
//	    md2pptx.WithTimeout(2 * time.Minute),
//	    md2pptx.WithDiagramDPI(192),
//	    md2pptx.WithStrictPlaceholders(),
//	)
//
// Per-conversion options are passed via Input:
//
//	result, err := conv.Convert(ctx, md2pptx.Input{
//	    Markdown:  content,
//	    Template:  templateBytes,          // reuse a corporate template
//	    SourceDir: "/path/to/markdown",    // for relative image paths
//	})
//
// # Parallel Processing
//
// For batch conversion, use ConverterPool to manage multiple browser
// instances:
//
//	pool := md2pptx.NewConverterPool(4)
//	defer pool.Close()
//
//	conv, err := pool.Acquire()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Release(conv)
//	result, err := conv.Convert(ctx, input)
//
// # Browser Requirements
//
// Diagram rendering requires Chrome/Chromium. The go-rod library
// automatically downloads a managed Chromium instance on first run
// (~/.cache/rod/browser/). Conversions without diagram blocks never start
// a browser; WithoutDiagrams() disables rendering entirely.
//
// For containers and CI environments, set ROD_NO_SANDBOX=1 to disable the
// Chrome sandbox. Use ROD_BROWSER_BIN to specify a custom Chrome binary.
package md2pptx
