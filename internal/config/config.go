package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/chunkdb/chunkdb/internal/engine"
	"github.com/chunkdb/chunkdb/internal/store"
)

const ENV_PREFIX = "CHUNKDB_"

type Config struct {
	// DataDir is the root directory datasets live under, one
	// subdirectory per dataset.
	DataDir string `mapstructure:"data_dir"`

	// ChunkRows is the maximum row count per chunk file.
	ChunkRows int `mapstructure:"chunk_rows"`

	// MemoryBudget bounds, in bytes, any materialized result or join
	// build side. Past it evaluation fails instead of spilling.
	MemoryBudget int64 `mapstructure:"memory_budget"`

	// CacheSize bounds the decoded chunk cache per open dataset.
	CacheSize int `mapstructure:"cache_size"`

	// Port the websocket server listens on, serve mode only.
	Port int `mapstructure:"port"`

	// LogLevel: 0 none, 1 errors, 2 debug.
	LogLevel int `mapstructure:"log_level"`
}

func Default() *Config {
	return &Config{
		DataDir:      "./data",
		ChunkRows:    engine.DEFAULT_CHUNK_ROWS,
		MemoryBudget: engine.DEFAULT_MEMORY_BUDGET,
		CacheSize:    store.DEFAULT_CHUNK_CACHE,
		Port:         7085,
		LogLevel:     1,
	}
}

// Load reads an optional .env file, then environment variables with
// the CHUNKDB_ prefix (CHUNKDB_CHUNK_ROWS -> chunk_rows), on top of
// the defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading .env: %w", err)
		}
	}

	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, ENV_PREFIX) {
			continue
		}
		v.Set(strings.ToLower(strings.TrimPrefix(key, ENV_PREFIX)), value)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
