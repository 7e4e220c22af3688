package config_test

import (
	"testing"

	"gotest.tools/assert"

	"github.com/chunkdb/chunkdb/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without environment", func(t *testing.T) {
		cfg, err := config.Load()
		assert.NilError(t, err)
		assert.DeepEqual(t, cfg, config.Default())
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("CHUNKDB_CHUNK_ROWS", "512")
		t.Setenv("CHUNKDB_DATA_DIR", "/var/lib/chunkdb")

		cfg, err := config.Load()
		assert.NilError(t, err)
		assert.Equal(t, cfg.ChunkRows, 512)
		assert.Equal(t, cfg.DataDir, "/var/lib/chunkdb")
		assert.Equal(t, cfg.MemoryBudget, config.Default().MemoryBudget)
	})
}
