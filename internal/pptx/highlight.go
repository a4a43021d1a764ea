package pptx

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// codeStyleName is the chroma style used for code shapes. Light background
// colours fit the code shape's grey fill.
const codeStyleName = "github"

// highlightCode tokenizes source with chroma and returns one paragraph per
// line, with per-token colour and weight. Unknown languages fall back to
// an unstyled lexer, so this never fails; worst case is monochrome text.
func highlightCode(source, language string, size float64) []TextParagraph {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(codeStyleName)
	if style == nil {
		style = styles.Fallback
	}

	source = strings.TrimRight(source, "\n")

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return plainCode(source, size)
	}

	paras := []TextParagraph{{Size: size}}
	appendRun := func(r TextRun) {
		last := &paras[len(paras)-1]
		last.Runs = append(last.Runs, r)
	}

	for tok := it(); tok != chroma.EOF; tok = it() {
		entry := style.Get(tok.Type)
		lines := strings.Split(tok.Value, "\n")
		for i, line := range lines {
			if i > 0 {
				paras = append(paras, TextParagraph{Size: size})
			}
			if line == "" {
				continue
			}
			run := TextRun{
				Text:   line,
				Mono:   true,
				Bold:   entry.Bold == chroma.Yes,
				Italic: entry.Italic == chroma.Yes,
			}
			if entry.Colour.IsSet() {
				run.Color = fmt.Sprintf("%02X%02X%02X",
					entry.Colour.Red(), entry.Colour.Green(), entry.Colour.Blue())
			}
			appendRun(run)
		}
	}
	// Some lexers force a trailing newline onto the source; drop the empty
	// paragraph it leaves behind.
	for len(paras) > 1 && len(paras[len(paras)-1].Runs) == 0 {
		paras = paras[:len(paras)-1]
	}
	return paras
}

// plainCode renders source as unstyled monospace lines.
func plainCode(source string, size float64) []TextParagraph {
	lines := strings.Split(source, "\n")
	paras := make([]TextParagraph, 0, len(lines))
	for _, line := range lines {
		p := TextParagraph{Size: size}
		if line != "" {
			p.Runs = []TextRun{{Text: line, Mono: true}}
		}
		paras = append(paras, p)
	}
	return paras
}
