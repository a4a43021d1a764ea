package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// templateFlags holds template presentation flags.
type templateFlags struct {
	path   string
	strict bool
}

// diagramFlags holds diagram rendering flags.
type diagramFlags struct {
	disabled bool
	dpi      int
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common   commonFlags
	output   string
	workers  int
	timeout  string
	template templateFlags
	diagrams diagramFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed timing and diagnostics")
}

// addTemplateFlags adds template flags to a FlagSet.
func addTemplateFlags(fs *flag.FlagSet, f *templateFlags) {
	fs.StringVar(&f.path, "template", "", "template presentation (.pptx) for layouts and theme")
	fs.BoolVar(&f.strict, "strict", false, "fail on missing template placeholders")
}

// addDiagramFlags adds diagram rendering flags to a FlagSet.
func addDiagramFlags(fs *flag.FlagSet, f *diagramFlags) {
	fs.BoolVar(&f.disabled, "no-diagrams", false, "skip mermaid diagram rendering")
	fs.IntVar(&f.dpi, "dpi", 0, "diagram raster resolution (0 = default)")
}

// parseConvertFlags parses convert command flags and returns positional args.
func parseConvertFlags(args []string) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	f := &convertFlags{}

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-document timeout (e.g., 30s, 2m)")

	// Flag groups
	addCommonFlags(fs, &f.common)
	addTemplateFlags(fs, &f.template)
	addDiagramFlags(fs, &f.diagrams)

	fs.Usage = func() { printConvertUsage(os.Stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
