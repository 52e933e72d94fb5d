package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/pointstore"
	"github.com/hupe1980/pointstore/model"
)

// Config is the optional YAML file passed with --config.
type Config struct {
	Store  string       `yaml:"store"`
	Ingest IngestConfig `yaml:"ingest"`
	Query  QueryConfig  `yaml:"query"`
}

// IngestConfig tunes ingestion.
type IngestConfig struct {
	MaxPointsPerLeaf int          `yaml:"max_points_per_leaf"`
	MaxDepth         int          `yaml:"max_depth"`
	OverviewPoints   int          `yaml:"overview_points"`
	Compression      string       `yaml:"compression"`
	Format           string       `yaml:"format"`
	Workers          int          `yaml:"workers"`
	IOLimit          int64        `yaml:"io_limit_bytes_per_sec"`
	Scale            *ScaleConfig `yaml:"scale"`
}

// ScaleConfig is the fixed-point precision per axis.
type ScaleConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// QueryConfig tunes queries.
type QueryConfig struct {
	Parallelism int   `yaml:"parallelism"`
	ChunkCache  int64 `yaml:"chunk_cache_bytes"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Store: ".",
		Ingest: IngestConfig{
			MaxPointsPerLeaf: pointstore.DefaultMaxPointsPerLeaf,
			MaxDepth:         pointstore.DefaultMaxDepth,
			Compression:      "zstd",
			Format:           "xyzi",
		},
		Query: QueryConfig{Parallelism: 1},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return decodeConfig(f, cfg)
}

func decodeConfig(r io.Reader, cfg Config) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}
	return cfg, nil
}

func parseFormat(name string) (model.PointFormat, error) {
	switch name {
	case "", "xyzi":
		return model.FormatXYZI, nil
	case "xyzit":
		return model.FormatXYZIT, nil
	default:
		return 0, fmt.Errorf("unknown point format %q", name)
	}
}

// Options converts the ingest section to pointstore options.
func (c IngestConfig) Options() ([]pointstore.Option, error) {
	comp, err := pointstore.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	opts := []pointstore.Option{
		pointstore.WithMaxPointsPerLeaf(c.MaxPointsPerLeaf),
		pointstore.WithMaxDepth(c.MaxDepth),
		pointstore.WithOverviewPoints(c.OverviewPoints),
		pointstore.WithCompression(comp),
		pointstore.WithPointFormat(format),
		pointstore.WithWorkers(c.Workers),
		pointstore.WithIOLimit(c.IOLimit),
	}
	if c.Scale != nil {
		opts = append(opts, pointstore.WithScale(model.Scale{X: c.Scale.X, Y: c.Scale.Y, Z: c.Scale.Z}))
	}
	return opts, nil
}
