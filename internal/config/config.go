// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// Default file names inside the index directory.
const (
	CatalogFileName       = "catalog.db"
	VectorIndexFileName   = "vectors.hnsw"
	InvertedIndexFileName = "inverted-index.json"
	LockFileName          = ".index.lock"
)

// Config is the complete engine configuration.
type Config struct {
	Version     int               `yaml:"version"`
	IndexDir    string            `yaml:"index_dir"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	Performance PerformanceConfig `yaml:"performance"`
	LogLevel    string            `yaml:"log_level"`
}

// EmbeddingsConfig describes the external embedding model whose vectors
// the core stores. The core never calls the model itself.
type EmbeddingsConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// PerformanceConfig tunes the worker pools.
type PerformanceConfig struct {
	// ParseWorkers is validated and saved with the config; the parallel
	// file parser does not read it and always sizes its pool to the host
	// CPU count.
	ParseWorkers int `yaml:"parse_workers"`
}

// Default returns the default configuration rooted at indexDir.
func Default(indexDir string) Config {
	return Config{
		Version:  1,
		IndexDir: indexDir,
		Embeddings: EmbeddingsConfig{
			Model:      "external",
			Dimensions: 768,
		},
		Performance: PerformanceConfig{
			ParseWorkers: runtime.NumCPU(),
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file, filling unset fields from defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return Config{}, errors.IOError("failed to read config", err)
	}

	cfg := Default("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.New(errors.ErrCodeConfigInvalid, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New(errors.ErrCodeSerializationFailed, "failed to encode config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.IOError("failed to write config", err)
	}
	return nil
}

// Validate checks invariants the engine relies on.
func (c Config) Validate() error {
	if c.IndexDir == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "index_dir must be set", nil)
	}
	if c.Embeddings.Dimensions <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "embeddings.dimensions must be positive", nil)
	}
	if c.Performance.ParseWorkers < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "performance.parse_workers must not be negative", nil)
	}
	return nil
}

// CatalogPath returns the catalog database path.
func (c Config) CatalogPath() string {
	return filepath.Join(c.IndexDir, CatalogFileName)
}

// VectorIndexPath returns the vector index base path.
func (c Config) VectorIndexPath() string {
	return filepath.Join(c.IndexDir, VectorIndexFileName)
}

// InvertedIndexPath returns the inverted index JSON path.
func (c Config) InvertedIndexPath() string {
	return filepath.Join(c.IndexDir, InvertedIndexFileName)
}

// LockPath returns the single-writer lock file path.
func (c Config) LockPath() string {
	return filepath.Join(c.IndexDir, LockFileName)
}
