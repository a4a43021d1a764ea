package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	md2pptx "github.com/alnah/go-md2pptx"
	"github.com/alnah/go-md2pptx/internal/config"
	"github.com/alnah/go-md2pptx/internal/fileutil"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrReadMarkdown       = errors.New("failed to read markdown file")
	ErrReadTemplate       = errors.New("failed to read template file")
	ErrWriteDeck          = errors.New("failed to write presentation file")
	ErrInvalidExtension   = errors.New("file must have .md or .markdown extension")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrInvalidFlags       = errors.New("invalid flags")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// Converter is the interface for the conversion engine.
type Converter interface {
	Convert(ctx context.Context, input md2pptx.Input) (*md2pptx.ConvertResult, error)
}

// Pool abstracts converter pool operations for testability.
type Pool interface {
	Acquire() (Converter, error)
	Release(Converter)
	Size() int
	Close() error
}

// poolFactory builds a Pool once the final converter options are known.
// Options depend on the merged flag/config values, so the pool cannot be
// created before runConvert has resolved them.
type poolFactory func(size int, opts ...md2pptx.Option) Pool

// FileToConvert represents a single file to process.
type FileToConvert struct {
	InputPath  string
	OutputPath string
}

// ConversionResult holds the outcome of a single conversion.
type ConversionResult struct {
	InputPath   string
	OutputPath  string
	SlideCount  int
	Diagnostics []md2pptx.Diagnostic
	Err         error
	Duration    time.Duration
}

// conversionParams groups parameters shared across the batch.
type conversionParams struct {
	template []byte
	cfg      *config.Config
}

// runConvert orchestrates the conversion process.
func runConvert(ctx context.Context, positionalArgs []string, flags *convertFlags, newPool poolFactory, deps *Dependencies) error {
	// Validate worker count early
	if err := validateWorkers(flags.workers); err != nil {
		return err
	}

	// Load configuration
	cfg := config.DefaultConfig()
	var err error
	if flags.common.config != "" {
		cfg, err = config.LoadConfig(flags.common.config)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	// Merge CLI flags into config (CLI wins)
	if err := mergeFlags(flags, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFlags, err)
	}

	// Resolve input path
	inputPath, err := resolveInputPath(positionalArgs, cfg)
	if err != nil {
		return err
	}

	// Resolve output directory
	outputDir := resolveOutputDir(flags.output, cfg)

	// Discover files to convert
	files, err := discoverFiles(inputPath, outputDir)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("no markdown files found in %s", inputPath)
	}

	// Read the template once for the whole batch
	var template []byte
	if cfg.Template.Path != "" {
		template, err = os.ReadFile(cfg.Template.Path) // #nosec G304 -- user-provided path
		if err != nil {
			return fmt.Errorf("%w: %v", ErrReadTemplate, err)
		}
	}

	// Build the pool with the merged converter options
	pool := newPool(md2pptx.ResolvePoolSize(cfg.Convert.Workers), converterOptions(cfg)...)
	defer pool.Close()

	params := &conversionParams{template: template, cfg: cfg}

	// Convert files
	results := convertBatch(ctx, pool, files, params)

	// Print results
	failedCount := printResultsWithWriter(results, flags.common.quiet, flags.common.verbose, deps)
	if failedCount > 0 {
		return fmt.Errorf("%d conversion(s) failed", failedCount)
	}

	return nil
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *convertFlags, cfg *config.Config) error {
	if flags.template.path != "" {
		cfg.Template.Path = flags.template.path
	}
	if flags.template.strict {
		cfg.Template.Strict = true
	}
	if flags.diagrams.disabled {
		cfg.Diagrams.Disabled = true
	}
	if flags.diagrams.dpi != 0 {
		cfg.Diagrams.DPI = flags.diagrams.dpi
	}
	if flags.workers != 0 {
		cfg.Convert.Workers = flags.workers
	}
	if flags.timeout != "" {
		d, err := time.ParseDuration(flags.timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: --timeout %q", ErrInvalidFlags, flags.timeout)
		}
		cfg.Convert.TimeoutSeconds = int(d.Round(time.Second) / time.Second)
		if cfg.Convert.TimeoutSeconds < 1 {
			cfg.Convert.TimeoutSeconds = 1
		}
	}
	return nil
}

// converterOptions translates the merged config into converter options.
func converterOptions(cfg *config.Config) []md2pptx.Option {
	var opts []md2pptx.Option
	if cfg.Diagrams.Disabled {
		opts = append(opts, md2pptx.WithoutDiagrams())
	}
	if cfg.Diagrams.DPI != 0 {
		opts = append(opts, md2pptx.WithDiagramDPI(cfg.Diagrams.DPI))
	}
	if cfg.Template.Strict {
		opts = append(opts, md2pptx.WithStrictPlaceholders())
	}
	if cfg.Convert.TimeoutSeconds > 0 {
		opts = append(opts, md2pptx.WithTimeout(time.Duration(cfg.Convert.TimeoutSeconds)*time.Second))
	}
	return opts
}

// resolveInputPath determines the input path from args or config.
func resolveInputPath(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Input.DefaultDir != "" {
		return cfg.Input.DefaultDir, nil
	}
	return "", ErrNoInput
}

// resolveOutputDir determines the output directory from flag or config.
func resolveOutputDir(flagOutput string, cfg *config.Config) string {
	if flagOutput != "" {
		return flagOutput
	}
	return cfg.Output.DefaultDir
}

// discoverFiles finds all markdown files to convert.
func discoverFiles(inputPath, outputDir string) ([]FileToConvert, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if err := validateMarkdownExtension(inputPath); err != nil {
			return nil, err
		}
		outPath := resolveOutputPath(inputPath, outputDir, "")
		return []FileToConvert{{InputPath: inputPath, OutputPath: outPath}}, nil
	}

	var files []FileToConvert
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".md" && ext != ".markdown" {
			return nil
		}
		outPath := resolveOutputPath(path, outputDir, inputPath)
		files = append(files, FileToConvert{InputPath: path, OutputPath: outPath})
		return nil
	})

	return files, err
}

// resolveOutputPath determines the presentation output path for a markdown file.
func resolveOutputPath(inputPath, outputDir, baseInputDir string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), ext)

	if outputDir == "" {
		return filepath.Join(filepath.Dir(inputPath), base+".pptx")
	}

	if strings.HasSuffix(outputDir, ".pptx") {
		return outputDir
	}

	if baseInputDir != "" {
		relPath, err := filepath.Rel(baseInputDir, inputPath)
		if err == nil {
			relDir := filepath.Dir(relPath)
			return filepath.Join(outputDir, relDir, base+".pptx")
		}
	}

	return filepath.Join(outputDir, base+".pptx")
}

// validateMarkdownExtension checks that the file has a .md or .markdown extension.
func validateMarkdownExtension(path string) error {
	ext := filepath.Ext(path)
	if ext != ".md" && ext != ".markdown" {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, ext)
	}
	return nil
}

// validateWorkers checks that the worker count is within valid bounds.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > md2pptx.MaxPoolSize {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, md2pptx.MaxPoolSize)
	}
	return nil
}

// convertBatch processes files concurrently using the converter pool.
func convertBatch(ctx context.Context, pool Pool, files []FileToConvert, params *conversionParams) []ConversionResult {
	if len(files) == 0 {
		return nil
	}

	concurrency := pool.Size()
	if concurrency > len(files) {
		concurrency = len(files)
	}

	results := make([]ConversionResult, len(files))
	var wg sync.WaitGroup
	jobs := make(chan int, len(files))

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conv, err := pool.Acquire()
			if err != nil {
				for idx := range jobs {
					results[idx] = ConversionResult{
						InputPath: files[idx].InputPath,
						Err:       err,
					}
				}
				return
			}
			defer pool.Release(conv)

			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = ConversionResult{
						InputPath: files[idx].InputPath,
						Err:       ctx.Err(),
					}
					continue
				}
				results[idx] = convertFile(ctx, conv, files[idx], params)
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// convertFile processes a single file and returns the result.
func convertFile(ctx context.Context, conv Converter, f FileToConvert, params *conversionParams) ConversionResult {
	start := time.Now()
	result := ConversionResult{
		InputPath:  f.InputPath,
		OutputPath: f.OutputPath,
	}

	content, err := os.ReadFile(f.InputPath) // #nosec G304 -- discovered path
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrReadMarkdown, err)
		result.Duration = time.Since(start)
		return result
	}

	outDir := filepath.Dir(f.OutputPath)
	if err := os.MkdirAll(outDir, dirPermissions); err != nil {
		result.Err = fmt.Errorf("creating output directory: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	converted, err := conv.Convert(ctx, md2pptx.Input{
		Markdown:  string(content),
		Template:  params.template,
		SourceDir: filepath.Dir(f.InputPath),
	})
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	result.SlideCount = converted.SlideCount
	result.Diagnostics = converted.Diagnostics

	if err := fileutil.WriteFileAtomic(f.OutputPath, converted.PPTX, filePermissions); err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrWriteDeck, err)
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	return result
}

// printResultsWithWriter outputs conversion results using the provided writers.
// Returns the number of failed conversions.
func printResultsWithWriter(results []ConversionResult, quiet, verbose bool, deps *Dependencies) int {
	var succeeded, failed int

	for _, r := range results {
		if r.Err != nil {
			failed++
			deps.Logger.Error("conversion failed", "file", r.InputPath, "err", r.Err)
			continue
		}

		succeeded++

		if !quiet {
			for _, d := range r.Diagnostics {
				deps.Logger.Warn(d.String(), "file", r.InputPath)
			}
		}

		if quiet {
			continue
		}

		if verbose {
			fmt.Fprintf(deps.Stdout, "%s -> %s (%d slides, %v)\n",
				r.InputPath, r.OutputPath, r.SlideCount, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(deps.Stdout, "Created %s\n", r.OutputPath)
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(deps.Stdout, "\n%d succeeded, %d failed\n", succeeded, failed)
	}

	return failed
}
