package model

import (
	"runtime"
	"time"
)

// Config is the complete steelminer configuration
type Config struct {
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Source      SourceConfig      `yaml:"source" mapstructure:"source"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Quality     QualityConfig     `yaml:"quality" mapstructure:"quality"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// ExtractionConfig controls the extraction engine
type ExtractionConfig struct {
	Segmenter         string `yaml:"segmenter" mapstructure:"segmenter"`                   // auto, punkt, heuristic, regex
	CompositionWindow int    `yaml:"composition_window" mapstructure:"composition_window"` // chars scanned after an element
	Fallback          bool   `yaml:"fallback" mapstructure:"fallback"`                     // run the sentence-segmented second pass
	Tables            bool   `yaml:"tables" mapstructure:"tables"`                         // map table grids to fields
}

// SourceConfig controls document loading
type SourceConfig struct {
	PDFTimeout time.Duration `yaml:"pdf_timeout" mapstructure:"pdf_timeout"`
	MaxBytes   int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	Extensions []string      `yaml:"extensions" mapstructure:"extensions"`
}

// CacheConfig controls result memoization
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls document-level parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	JSON    bool   `yaml:"json" mapstructure:"json"`
	XLSX    bool   `yaml:"xlsx" mapstructure:"xlsx"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// StoreConfig controls SQLite persistence; an empty path disables it
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// QualityConfig holds plausibility rules applied after extraction
type QualityConfig struct {
	Ranges              map[string]Bound `yaml:"ranges" mapstructure:"ranges"`
	MaxCarbonEquivalent float64          `yaml:"max_carbon_equivalent" mapstructure:"max_carbon_equivalent"`
}

// Bound is an inclusive plausibility interval in the field's base unit
type Bound struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// LogConfig controls the global zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json, console
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			Segmenter:         "auto",
			CompositionWindow: 80,
			Fallback:          true,
			Tables:            true,
		},
		Source: SourceConfig{
			PDFTimeout: 30 * time.Second,
			MaxBytes:   50_000_000,
			Extensions: []string{".txt", ".md", ".html", ".htm", ".xml", ".pdf"},
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".steelminer-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Output: OutputConfig{
			Dir:  "./steelminer-output",
			JSON: true,
			XLSX: true,
		},
		Quality: QualityConfig{
			Ranges: map[string]Bound{
				"austenitizing_temperature": {Min: 0, Max: 1200},
				"isothermal_temperature":    {Min: 0, Max: 900},
				"tempering_temperature":     {Min: 0, Max: 1500},
				"austenitizing_time":        {Min: 0, Max: 180},
				"isothermal_time":           {Min: 0, Max: 600},
				"tempering_time":            {Min: 0, Max: 600},
			},
			MaxCarbonEquivalent: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
