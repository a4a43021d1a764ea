package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: md2pptx <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert    Convert markdown files to PowerPoint presentations")
	fmt.Fprintln(w, "  doctor     Check the environment for diagram rendering")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'md2pptx help <command>' for details on a specific command.")
	fmt.Fprintln(w, "A markdown file or directory as the first argument implies 'convert'.")
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: md2pptx convert <input> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert markdown files to PowerPoint presentations.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    Markdown file or directory (optional if config has input.defaultDir)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel workers (0 = auto)")
	fmt.Fprintln(w, "  -t, --timeout <dur>       Per-document timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Template:")
	fmt.Fprintln(w, "      --template <path>     Template presentation (.pptx)")
	fmt.Fprintln(w, "      --strict              Fail on missing template placeholders")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Diagrams:")
	fmt.Fprintln(w, "      --dpi <n>             Diagram raster resolution (0 = default)")
	fmt.Fprintln(w, "      --no-diagrams         Skip mermaid diagram rendering")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show detailed timing and diagnostics")
}

// runHelp prints help for a specific command.
func runHelp(args []string, deps *Dependencies) {
	if len(args) == 0 {
		printUsage(deps.Stdout)
		return
	}

	switch args[0] {
	case "convert":
		printConvertUsage(deps.Stdout)
	case "doctor":
		fmt.Fprintln(deps.Stdout, "Usage: md2pptx doctor [--json]")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Check whether the environment can render mermaid diagrams.")
	case "version":
		fmt.Fprintln(deps.Stdout, "Usage: md2pptx version")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(deps.Stdout, "Usage: md2pptx help [command]")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(deps.Stderr, "Unknown command: %s\n", args[0])
		printUsage(deps.Stderr)
	}
}
