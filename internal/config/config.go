// Package config loads the YAML configuration for batch renders and the ledger.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

// Database selects the render ledger backend.
type Database struct {
	Type             string `yaml:"type" validate:"omitempty,oneof=sqlite"`
	ConnectionString string `yaml:"connectionString"`
}

// SlideConfig names one slide and its detections for a batch run.
type SlideConfig struct {
	Name  string  `yaml:"name"`
	Path  string  `yaml:"path" validate:"required"`
	Cells string  `yaml:"cells" validate:"required"`
	Scale float64 `yaml:"scale" validate:"gte=0"`
}

// Config is the slide-overlay configuration file.
type Config struct {
	OutputPath      string         `yaml:"outputPath" validate:"required"`
	Level           int            `yaml:"level" validate:"gte=0,lte=16"`
	MarkerRadius    float64        `yaml:"markerRadius" validate:"gt=0"`
	MaskWeight      float64        `yaml:"maskWeight" validate:"gt=0,lte=1"`
	JPEGQuality     int            `yaml:"jpegQuality" validate:"gte=0,lte=100"`
	WriteCellCSV    bool           `yaml:"writeCellCSV"`
	AutoColor       bool           `yaml:"autoColor"`
	MicronsPerPixel float64        `yaml:"micronsPerPixel" validate:"gte=0"`
	Palette         map[int]string `yaml:"palette"`
	Database        Database       `yaml:"database"`
	SummaryWorkbook string         `yaml:"summaryWorkbook"`
	Slides          []SlideConfig  `yaml:"slides" validate:"dive"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		OutputPath:   "output",
		Level:        0,
		MarkerRadius: 3,
		MaskWeight:   0.3,
		JPEGQuality:  95,
	}
}

// LoadConfig loads configuration from the specified YAML file. Fields missing
// from the file keep their Default values; relative slide paths are resolved
// against the config file's directory.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	config.resolvePaths(filepath.Dir(configPath))
	return config, nil
}

// Validate checks field constraints and that slide names are unique.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Database.Type != "" && c.Database.ConnectionString == "" {
		return fmt.Errorf("database type %s requires a connectionString", c.Database.Type)
	}
	return validateSlides(c.Slides)
}

// validateSlides ensures every slide resolves to a distinct output name.
func validateSlides(slides []SlideConfig) error {
	seenNames := make(map[string]bool)

	for i, s := range slides {
		name := s.OutputName()
		if name == "" {
			return fmt.Errorf("slide at index %d has empty name", i)
		}
		if seenNames[name] {
			return fmt.Errorf("duplicate slide name: %s", name)
		}
		seenNames[name] = true
	}

	return nil
}

// OutputName is the configured name, or the path's base name without extension.
func (s SlideConfig) OutputName() string {
	if s.Name != "" {
		return s.Name
	}
	base := filepath.Base(s.Path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base[:len(base)-len(filepath.Ext(base))]
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	c.OutputPath = resolve(c.OutputPath)
	if c.SummaryWorkbook != "" {
		c.SummaryWorkbook = resolve(c.SummaryWorkbook)
	}
	for i := range c.Slides {
		c.Slides[i].Path = resolve(c.Slides[i].Path)
		c.Slides[i].Cells = resolve(c.Slides[i].Cells)
	}
}
