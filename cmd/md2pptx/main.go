package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	md2pptx "github.com/alnah/go-md2pptx"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(realMain(os.Args[1:], DefaultDeps()))
}

// realMain dispatches commands and returns the process exit code.
// Split from main for testability.
func realMain(args []string, deps *Dependencies) int {
	if len(args) == 0 {
		printUsage(deps.Stderr)
		return ExitUsage
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(deps.Stdout, "md2pptx %s\n", Version)
		return ExitSuccess
	case "help":
		runHelp(args[1:], deps)
		return ExitSuccess
	case "doctor":
		return runDoctorCmd(args[1:], deps)
	case "convert":
		args = args[1:]
	}
	// Anything else is treated as implicit convert: "md2pptx deck.md".

	return runConvertCommand(args, deps)
}

// runConvertCommand parses flags, sets up the converter pool, and runs the
// conversion, translating the outcome into an exit code.
func runConvertCommand(args []string, deps *Dependencies) int {
	flags, positional, err := parseConvertFlags(args)
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return ExitUsage
	}

	configureMaxprocs(flags.common.verbose, deps)

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := runConvert(ctx, positional, flags, newConverterPool, deps); err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// configureMaxprocs aligns GOMAXPROCS with container CPU limits.
// Error ignored: maxprocs.Set only fails if the GOMAXPROCS env is invalid,
// in which case Go runtime defaults apply and the program continues safely.
func configureMaxprocs(verbose bool, deps *Dependencies) {
	if verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			deps.Logger.Debugf(format, args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}
}

// Compile-time interface implementation checks.
var (
	_ Converter = (*md2pptx.Converter)(nil)
	_ Pool      = (*converterPool)(nil)
)
