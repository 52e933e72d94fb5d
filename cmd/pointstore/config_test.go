package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	cfg, err := decodeConfig(strings.NewReader(`
store: s3://lidar/tiles
ingest:
  max_points_per_leaf: 1000
  compression: lz4
  format: xyzit
  scale:
    x: 0.01
    y: 0.01
    z: 0.001
query:
  parallelism: 4
  chunk_cache_bytes: 1048576
`), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "s3://lidar/tiles", cfg.Store)
	assert.Equal(t, 1000, cfg.Ingest.MaxPointsPerLeaf)
	assert.Equal(t, DefaultConfig().Ingest.MaxDepth, cfg.Ingest.MaxDepth)
	assert.Equal(t, "lz4", cfg.Ingest.Compression)
	require.NotNil(t, cfg.Ingest.Scale)
	assert.InDelta(t, 0.001, cfg.Ingest.Scale.Z, 1e-12)
	assert.Equal(t, 4, cfg.Query.Parallelism)
	assert.Equal(t, int64(1<<20), cfg.Query.ChunkCache)

	opts, err := cfg.Ingest.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 8)
}

func TestDecodeConfig_Empty(t *testing.T) {
	cfg, err := decodeConfig(strings.NewReader(""), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestDecodeConfig_UnknownField(t *testing.T) {
	_, err := decodeConfig(strings.NewReader("ingest:\n  leaf_size: 3\n"), DefaultConfig())
	assert.Error(t, err)
}

func TestLoadConfig_NoPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestIngestConfig_Options_Invalid(t *testing.T) {
	ic := DefaultConfig().Ingest
	ic.Compression = "brotli"
	_, err := ic.Options()
	assert.Error(t, err)

	ic = DefaultConfig().Ingest
	ic.Format = "rgb"
	_, err = ic.Options()
	assert.Error(t, err)
}
