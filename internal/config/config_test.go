package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	indexerrors "github.com/Aman-CERP/codeindex/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default("/tmp/index")

	assert.Equal(t, "/tmp/index", cfg.IndexDir)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join("/tmp/index", CatalogFileName), cfg.CatalogPath())
	assert.Equal(t, filepath.Join("/tmp/index", VectorIndexFileName), cfg.VectorIndexPath())
	assert.Equal(t, filepath.Join("/tmp/index", InvertedIndexFileName), cfg.InvertedIndexPath())
}

func TestValidate(t *testing.T) {
	cfg := Default("")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, indexerrors.ErrCodeConfigInvalid, indexerrors.GetCode(err))

	cfg = Default("/tmp/index")
	cfg.Embeddings.Dimensions = 0
	assert.Error(t, cfg.Validate())

	cfg = Default("/tmp/index")
	cfg.Performance.ParseWorkers = -1
	assert.Error(t, cfg.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default("/data/index")
	cfg.Embeddings.Model = "embed-small"
	cfg.Embeddings.Dimensions = 384
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, indexerrors.ErrCodeConfigNotFound, indexerrors.GetCode(err))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, indexerrors.ErrCodeConfigInvalid, indexerrors.GetCode(err))
}
