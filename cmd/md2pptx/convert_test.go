package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	md2pptx "github.com/alnah/go-md2pptx"
	"github.com/alnah/go-md2pptx/internal/config"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// testDeps returns Dependencies that write into buffers.
func testDeps() (*Dependencies, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	deps := &Dependencies{
		Stdout: &out,
		Stderr: &errOut,
		Logger: newLogger(&errOut),
	}
	return deps, &out, &errOut
}

// mockConverter records inputs and returns a fixed result.
type mockConverter struct {
	mu     sync.Mutex
	inputs []md2pptx.Input
	result *md2pptx.ConvertResult
	err    error
}

func (m *mockConverter) Convert(_ context.Context, in md2pptx.Input) (*md2pptx.ConvertResult, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	res := *m.result
	return &res, nil
}

func (m *mockConverter) calls() []md2pptx.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]md2pptx.Input, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// mockPool hands out a single shared converter.
type mockPool struct {
	conv       Converter
	size       int
	acquireErr error
}

func (p *mockPool) Acquire() (Converter, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.conv, nil
}

func (p *mockPool) Release(Converter) {}
func (p *mockPool) Size() int         { return p.size }
func (p *mockPool) Close() error      { return nil }

// mockFactory returns a poolFactory producing the given pool and records
// the options it was built with.
func mockFactory(pool Pool) (poolFactory, *int) {
	optCount := new(int)
	return func(size int, opts ...md2pptx.Option) Pool {
		*optCount = len(opts)
		return pool
	}, optCount
}

// setupTestDir creates a temp directory with the given file structure.
func setupTestDir(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()

	for path, content := range files {
		fullPath := filepath.Join(tempDir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
			t.Fatalf("failed to create dir for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}

	return tempDir
}

func okResult() *md2pptx.ConvertResult {
	return &md2pptx.ConvertResult{PPTX: []byte("PK\x03\x04deck"), SlideCount: 3}
}

// ---------------------------------------------------------------------------
// Flag parsing
// ---------------------------------------------------------------------------

func TestParseConvertFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		args           []string
		wantOutput     string
		wantConfig     string
		wantWorkers    int
		wantTimeout    string
		wantTemplate   string
		wantStrict     bool
		wantNoDiagrams bool
		wantDPI        int
		wantQuiet      bool
		wantVerbose    bool
		wantPositional []string
		wantErr        bool
	}{
		{
			name:           "no args",
			args:           []string{},
			wantPositional: []string{},
		},
		{
			name:           "positional input",
			args:           []string{"deck.md"},
			wantPositional: []string{"deck.md"},
		},
		{
			name:           "short flags",
			args:           []string{"-o", "out", "-w", "4", "-q", "deck.md"},
			wantOutput:     "out",
			wantWorkers:    4,
			wantQuiet:      true,
			wantPositional: []string{"deck.md"},
		},
		{
			name:           "template flags",
			args:           []string{"--template", "brand.pptx", "--strict", "deck.md"},
			wantTemplate:   "brand.pptx",
			wantStrict:     true,
			wantPositional: []string{"deck.md"},
		},
		{
			name:           "diagram flags",
			args:           []string{"--no-diagrams", "--dpi", "192"},
			wantNoDiagrams: true,
			wantDPI:        192,
			wantPositional: []string{},
		},
		{
			name:           "timeout and config",
			args:           []string{"-t", "2m", "-c", "team", "-v"},
			wantTimeout:    "2m",
			wantConfig:     "team",
			wantVerbose:    true,
			wantPositional: []string{},
		},
		{
			name:    "unknown flag",
			args:    []string{"--nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags, positional, err := parseConvertFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConvertFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if flags.output != tt.wantOutput {
				t.Errorf("output = %q, want %q", flags.output, tt.wantOutput)
			}
			if flags.common.config != tt.wantConfig {
				t.Errorf("config = %q, want %q", flags.common.config, tt.wantConfig)
			}
			if flags.workers != tt.wantWorkers {
				t.Errorf("workers = %d, want %d", flags.workers, tt.wantWorkers)
			}
			if flags.timeout != tt.wantTimeout {
				t.Errorf("timeout = %q, want %q", flags.timeout, tt.wantTimeout)
			}
			if flags.template.path != tt.wantTemplate {
				t.Errorf("template = %q, want %q", flags.template.path, tt.wantTemplate)
			}
			if flags.template.strict != tt.wantStrict {
				t.Errorf("strict = %v, want %v", flags.template.strict, tt.wantStrict)
			}
			if flags.diagrams.disabled != tt.wantNoDiagrams {
				t.Errorf("no-diagrams = %v, want %v", flags.diagrams.disabled, tt.wantNoDiagrams)
			}
			if flags.diagrams.dpi != tt.wantDPI {
				t.Errorf("dpi = %d, want %d", flags.diagrams.dpi, tt.wantDPI)
			}
			if flags.common.quiet != tt.wantQuiet {
				t.Errorf("quiet = %v, want %v", flags.common.quiet, tt.wantQuiet)
			}
			if flags.common.verbose != tt.wantVerbose {
				t.Errorf("verbose = %v, want %v", flags.common.verbose, tt.wantVerbose)
			}
			if len(positional) != len(tt.wantPositional) {
				t.Errorf("positional = %v, want %v", positional, tt.wantPositional)
			}
		})
	}
}

func TestMergeFlags(t *testing.T) {
	t.Parallel()

	flags := &convertFlags{
		template: templateFlags{path: "brand.pptx", strict: true},
		diagrams: diagramFlags{disabled: true, dpi: 192},
		workers:  3,
		timeout:  "90s",
	}
	cfg := config.DefaultConfig()

	if err := mergeFlags(flags, cfg); err != nil {
		t.Fatalf("mergeFlags() error = %v", err)
	}

	if cfg.Template.Path != "brand.pptx" || !cfg.Template.Strict {
		t.Errorf("Template = %+v", cfg.Template)
	}
	if !cfg.Diagrams.Disabled || cfg.Diagrams.DPI != 192 {
		t.Errorf("Diagrams = %+v", cfg.Diagrams)
	}
	if cfg.Convert.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Convert.Workers)
	}
	if cfg.Convert.TimeoutSeconds != 90 {
		t.Errorf("TimeoutSeconds = %d, want 90", cfg.Convert.TimeoutSeconds)
	}
}

func TestMergeFlagsKeepsConfigValues(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Template.Path = "corp.pptx"
	cfg.Convert.Workers = 2

	if err := mergeFlags(&convertFlags{}, cfg); err != nil {
		t.Fatalf("mergeFlags() error = %v", err)
	}

	if cfg.Template.Path != "corp.pptx" {
		t.Errorf("Template.Path = %q, config value overwritten", cfg.Template.Path)
	}
	if cfg.Convert.Workers != 2 {
		t.Errorf("Workers = %d, config value overwritten", cfg.Convert.Workers)
	}
}

func TestMergeFlagsInvalidTimeout(t *testing.T) {
	t.Parallel()

	tests := []string{"nonsense", "-5s", "0s"}
	for _, timeout := range tests {
		timeout := timeout
		err := mergeFlags(&convertFlags{timeout: timeout}, config.DefaultConfig())
		if !errors.Is(err, ErrInvalidFlags) {
			t.Errorf("mergeFlags(timeout=%q) error = %v, want ErrInvalidFlags", timeout, err)
		}
	}
}

func TestConverterOptions(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Diagrams.DPI = 0 // neutral
	if got := len(converterOptions(cfg)); got != 0 {
		t.Errorf("neutral config produced %d options, want 0", got)
	}

	cfg = config.DefaultConfig()
	cfg.Diagrams.Disabled = true
	cfg.Diagrams.DPI = 192
	cfg.Template.Strict = true
	cfg.Convert.TimeoutSeconds = 60
	if got := len(converterOptions(cfg)); got != 4 {
		t.Errorf("full config produced %d options, want 4", got)
	}
}

// ---------------------------------------------------------------------------
// Path resolution and discovery
// ---------------------------------------------------------------------------

func TestResolveOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		inputPath    string
		outputDir    string
		baseInputDir string
		want         string
	}{
		{
			name:      "no output dir: next to source",
			inputPath: filepath.Join("docs", "deck.md"),
			want:      filepath.Join("docs", "deck.pptx"),
		},
		{
			name:      "explicit output file",
			inputPath: "deck.md",
			outputDir: filepath.Join("out", "final.pptx"),
			want:      filepath.Join("out", "final.pptx"),
		},
		{
			name:      "output dir flattens single file",
			inputPath: filepath.Join("docs", "deck.md"),
			outputDir: "out",
			want:      filepath.Join("out", "deck.pptx"),
		},
		{
			name:         "output dir mirrors tree",
			inputPath:    filepath.Join("docs", "q3", "deck.md"),
			outputDir:    "out",
			baseInputDir: "docs",
			want:         filepath.Join("out", "q3", "deck.pptx"),
		},
		{
			name:      "markdown extension variant",
			inputPath: "notes.markdown",
			want:      "notes.pptx",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := resolveOutputPath(tt.inputPath, tt.outputDir, tt.baseInputDir)
			if got != tt.want {
				t.Errorf("resolveOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiscoverFilesSingle(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"deck.md": "# Hi"})
	input := filepath.Join(dir, "deck.md")

	files, err := discoverFiles(input, "")
	if err != nil {
		t.Fatalf("discoverFiles() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].OutputPath != filepath.Join(dir, "deck.pptx") {
		t.Errorf("OutputPath = %q", files[0].OutputPath)
	}
}

func TestDiscoverFilesRejectsWrongExtension(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"deck.txt": "# Hi"})

	_, err := discoverFiles(filepath.Join(dir, "deck.txt"), "")
	if !errors.Is(err, ErrInvalidExtension) {
		t.Errorf("error = %v, want ErrInvalidExtension", err)
	}
}

func TestDiscoverFilesDirectory(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{
		"a.md":           "# A",
		"sub/b.markdown": "# B",
		"sub/skip.txt":   "not markdown",
	})

	files, err := discoverFiles(dir, "")
	if err != nil {
		t.Fatalf("discoverFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
}

func TestValidateWorkers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		workers int
		wantErr bool
	}{
		{0, false},
		{1, false},
		{md2pptx.MaxPoolSize, false},
		{-1, true},
		{md2pptx.MaxPoolSize + 1, true},
	}

	for _, tt := range tests {
		tt := tt
		err := validateWorkers(tt.workers)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateWorkers(%d) error = %v, wantErr %v", tt.workers, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidWorkerCount) {
			t.Errorf("validateWorkers(%d) error = %v, want ErrInvalidWorkerCount", tt.workers, err)
		}
	}
}

// ---------------------------------------------------------------------------
// runConvert
// ---------------------------------------------------------------------------

func TestRunConvertSingleFile(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"deck.md": "# Kickoff\n\nHello"})
	input := filepath.Join(dir, "deck.md")

	mock := &mockConverter{result: okResult()}
	factory, _ := mockFactory(&mockPool{conv: mock, size: 2})
	deps, out, _ := testDeps()

	err := runConvert(context.Background(), []string{input}, &convertFlags{}, factory, deps)
	if err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}

	outPath := filepath.Join(dir, "deck.pptx")
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(data, okResult().PPTX) {
		t.Error("output bytes do not match conversion result")
	}
	if !strings.Contains(out.String(), "Created "+outPath) {
		t.Errorf("stdout = %q, missing Created line", out.String())
	}

	calls := mock.calls()
	if len(calls) != 1 {
		t.Fatalf("converter called %d times, want 1", len(calls))
	}
	if calls[0].SourceDir != dir {
		t.Errorf("SourceDir = %q, want %q", calls[0].SourceDir, dir)
	}
}

func TestRunConvertDirectory(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{
		"a.md":     "# A",
		"sub/b.md": "# B",
	})
	outDir := filepath.Join(t.TempDir(), "out")

	mock := &mockConverter{result: okResult()}
	factory, _ := mockFactory(&mockPool{conv: mock, size: 2})
	deps, out, _ := testDeps()

	flags := &convertFlags{output: outDir}
	if err := runConvert(context.Background(), []string{dir}, flags, factory, deps); err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}

	for _, want := range []string{
		filepath.Join(outDir, "a.pptx"),
		filepath.Join(outDir, "sub", "b.pptx"),
	} {
		if _, err := os.Stat(want); err != nil {
			t.Errorf("missing output %s: %v", want, err)
		}
	}
	if !strings.Contains(out.String(), "2 succeeded, 0 failed") {
		t.Errorf("stdout = %q, missing summary", out.String())
	}
}

func TestRunConvertNoInput(t *testing.T) {
	t.Parallel()

	factory, _ := mockFactory(&mockPool{conv: &mockConverter{result: okResult()}, size: 1})
	deps, _, _ := testDeps()

	err := runConvert(context.Background(), nil, &convertFlags{}, factory, deps)
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("error = %v, want ErrNoInput", err)
	}
}

func TestRunConvertInputFromConfig(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"docs/deck.md": "# Hi"})
	// The config needs an absolute defaultDir; the test cwd is unknown.
	cfgPath := filepath.Join(dir, "team.yaml")
	content := "input:\n  defaultDir: " + filepath.Join(dir, "docs") + "\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := &mockConverter{result: okResult()}
	factory, _ := mockFactory(&mockPool{conv: mock, size: 1})
	deps, _, _ := testDeps()

	flags := &convertFlags{common: commonFlags{config: cfgPath}}
	if err := runConvert(context.Background(), nil, flags, factory, deps); err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}
	if len(mock.calls()) != 1 {
		t.Errorf("converter called %d times, want 1", len(mock.calls()))
	}
}

func TestRunConvertTemplateMissing(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"deck.md": "# Hi"})

	factory, _ := mockFactory(&mockPool{conv: &mockConverter{result: okResult()}, size: 1})
	deps, _, _ := testDeps()

	flags := &convertFlags{template: templateFlags{path: filepath.Join(dir, "absent.pptx")}}
	err := runConvert(context.Background(), []string{filepath.Join(dir, "deck.md")}, flags, factory, deps)
	if !errors.Is(err, ErrReadTemplate) {
		t.Errorf("error = %v, want ErrReadTemplate", err)
	}
}

func TestRunConvertTemplateFlowsToConverter(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{
		"deck.md":    "# Hi",
		"brand.pptx": "PK-template-bytes",
	})

	mock := &mockConverter{result: okResult()}
	factory, _ := mockFactory(&mockPool{conv: mock, size: 1})
	deps, _, _ := testDeps()

	flags := &convertFlags{template: templateFlags{path: filepath.Join(dir, "brand.pptx")}}
	if err := runConvert(context.Background(), []string{filepath.Join(dir, "deck.md")}, flags, factory, deps); err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}

	calls := mock.calls()
	if len(calls) != 1 || string(calls[0].Template) != "PK-template-bytes" {
		t.Errorf("template bytes did not reach the converter: %+v", calls)
	}
}

func TestRunConvertStrictWithoutTemplate(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"deck.md": "# Hi"})

	factory, _ := mockFactory(&mockPool{conv: &mockConverter{result: okResult()}, size: 1})
	deps, _, _ := testDeps()

	flags := &convertFlags{template: templateFlags{strict: true}}
	err := runConvert(context.Background(), []string{filepath.Join(dir, "deck.md")}, flags, factory, deps)
	if !errors.Is(err, ErrInvalidFlags) {
		t.Errorf("error = %v, want ErrInvalidFlags", err)
	}
}

func TestRunConvertConversionFailure(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"deck.md": "# Hi"})

	mock := &mockConverter{err: errors.New("boom")}
	factory, _ := mockFactory(&mockPool{conv: mock, size: 1})
	deps, _, errOut := testDeps()

	err := runConvert(context.Background(), []string{filepath.Join(dir, "deck.md")}, &convertFlags{}, factory, deps)
	if err == nil || !strings.Contains(err.Error(), "1 conversion(s) failed") {
		t.Errorf("error = %v, want failure summary", err)
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("stderr = %q, missing failure cause", errOut.String())
	}
}

func TestRunConvertPassesOptionsToPool(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"deck.md": "# Hi"})

	factory, optCount := mockFactory(&mockPool{conv: &mockConverter{result: okResult()}, size: 1})
	deps, _, _ := testDeps()

	flags := &convertFlags{
		diagrams: diagramFlags{disabled: true, dpi: 192},
		timeout:  "45s",
	}
	if err := runConvert(context.Background(), []string{filepath.Join(dir, "deck.md")}, flags, factory, deps); err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}
	if *optCount != 3 {
		t.Errorf("pool built with %d options, want 3 (no-diagrams, dpi, timeout)", *optCount)
	}
}

func TestConvertBatchAcquireFailure(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"a.md": "# A", "b.md": "# B"})

	pool := &mockPool{acquireErr: errors.New("no browser"), size: 1}
	files, err := discoverFiles(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	results := convertBatch(context.Background(), pool, files, &conversionParams{cfg: config.DefaultConfig()})
	for _, r := range results {
		if r.Err == nil {
			t.Errorf("result for %s has no error, want acquire failure", r.InputPath)
		}
	}
}

func TestConvertBatchCancelledContext(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, map[string]string{"a.md": "# A"})
	files, err := discoverFiles(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := &mockPool{conv: &mockConverter{result: okResult()}, size: 1}
	results := convertBatch(ctx, pool, files, &conversionParams{cfg: config.DefaultConfig()})
	if len(results) != 1 || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("results = %+v, want context.Canceled", results)
	}
}

// ---------------------------------------------------------------------------
// Result printing
// ---------------------------------------------------------------------------

func TestPrintResults(t *testing.T) {
	t.Parallel()

	results := []ConversionResult{
		{InputPath: "a.md", OutputPath: "a.pptx", SlideCount: 4, Duration: 120 * time.Millisecond},
		{InputPath: "b.md", Err: errors.New("bad input")},
	}

	t.Run("default output", func(t *testing.T) {
		t.Parallel()
		deps, out, errOut := testDeps()

		failed := printResultsWithWriter(results, false, false, deps)
		if failed != 1 {
			t.Errorf("failed = %d, want 1", failed)
		}
		if !strings.Contains(out.String(), "Created a.pptx") {
			t.Errorf("stdout = %q", out.String())
		}
		if !strings.Contains(out.String(), "1 succeeded, 1 failed") {
			t.Errorf("stdout = %q, missing summary", out.String())
		}
		if !strings.Contains(errOut.String(), "bad input") {
			t.Errorf("stderr = %q", errOut.String())
		}
	})

	t.Run("verbose shows slide count and timing", func(t *testing.T) {
		t.Parallel()
		deps, out, _ := testDeps()

		printResultsWithWriter(results, false, true, deps)
		if !strings.Contains(out.String(), "4 slides") {
			t.Errorf("stdout = %q, missing slide count", out.String())
		}
	})

	t.Run("quiet suppresses success output", func(t *testing.T) {
		t.Parallel()
		deps, out, errOut := testDeps()

		printResultsWithWriter(results, true, false, deps)
		if out.String() != "" {
			t.Errorf("stdout = %q, want empty", out.String())
		}
		if !strings.Contains(errOut.String(), "bad input") {
			t.Errorf("stderr = %q, errors must still show", errOut.String())
		}
	})
}

func TestPrintResultsDiagnostics(t *testing.T) {
	t.Parallel()

	results := []ConversionResult{
		{
			InputPath:  "a.md",
			OutputPath: "a.pptx",
			SlideCount: 2,
			Diagnostics: []md2pptx.Diagnostic{
				{Stage: "diagram", Slide: 0, Message: "mermaid render failed; block skipped"},
			},
		},
	}

	deps, _, errOut := testDeps()
	failed := printResultsWithWriter(results, false, false, deps)
	if failed != 0 {
		t.Errorf("failed = %d, want 0 (diagnostics are not failures)", failed)
	}
	if !strings.Contains(errOut.String(), "mermaid render failed") {
		t.Errorf("stderr = %q, missing diagnostic", errOut.String())
	}

	// Quiet drops diagnostics too.
	deps, _, errOut = testDeps()
	printResultsWithWriter(results, true, false, deps)
	if strings.Contains(errOut.String(), "mermaid") {
		t.Errorf("stderr = %q, quiet must drop diagnostics", errOut.String())
	}
}
