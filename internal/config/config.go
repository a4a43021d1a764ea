// Package config loads CLI configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-md2pptx/internal/diagram"
	"github.com/alnah/go-md2pptx/internal/fileutil"
	"github.com/alnah/go-md2pptx/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
)

// Config holds all configuration for presentation generation.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Template TemplateConfig `yaml:"template"`
	Diagrams DiagramsConfig `yaml:"diagrams"`
	Convert  ConvertConfig  `yaml:"convert"`
}

// InputConfig defines input source options.
type InputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default input directory (empty = must specify)
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default output directory (empty = same as source)
}

// TemplateConfig defines template presentation options.
type TemplateConfig struct {
	Path   string `yaml:"path"`   // Path to a .pptx template (empty = built-in layouts)
	Strict bool   `yaml:"strict"` // Fail on missing placeholders instead of degrading
}

// DiagramsConfig defines diagram rendering options.
type DiagramsConfig struct {
	Disabled bool `yaml:"disabled"` // Skip diagram blocks entirely
	DPI      int  `yaml:"dpi"`      // Raster resolution (default: 96)
}

// ConvertConfig defines batch conversion options.
type ConvertConfig struct {
	Workers        int `yaml:"workers"`        // Parallel conversions (0 = auto)
	TimeoutSeconds int `yaml:"timeoutSeconds"` // Per-document timeout (0 = default)
}

// Validate checks value ranges. Called automatically by LoadConfig, but
// available for consumers who construct Config manually.
func (c *Config) Validate() error {
	if dpi := c.Diagrams.DPI; dpi != 0 && (dpi < diagram.MinDPI || dpi > diagram.MaxDPI) {
		return fmt.Errorf("diagrams.dpi: must be between %d and %d, got %d",
			diagram.MinDPI, diagram.MaxDPI, dpi)
	}
	if c.Convert.Workers < 0 {
		return fmt.Errorf("convert.workers: must not be negative, got %d", c.Convert.Workers)
	}
	if c.Convert.TimeoutSeconds < 0 {
		return fmt.Errorf("convert.timeoutSeconds: must not be negative, got %d", c.Convert.TimeoutSeconds)
	}
	if c.Template.Strict && c.Template.Path == "" {
		return errors.New("template.strict: requires template.path")
	}
	return nil
}

// DefaultConfig returns a neutral configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Diagrams: DiagramsConfig{DPI: diagram.BaseDPI},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-md2pptx/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	// Try current directory first (both extensions)
	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	// Try user config directory (both extensions)
	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-md2pptx", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
