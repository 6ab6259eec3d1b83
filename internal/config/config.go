// Package config loads the server's TOML configuration file (spec §4.6/
// §4.7 parameters: worker count, buffer pool ceiling, listen address,
// data directory).
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/c2h5oh/datasize"

	"ezdb/internal/ezerr"
)

// Config is the top-level server configuration.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	DataDir    string `toml:"data_dir"`
	Workers    int    `toml:"workers"`

	// BufferPoolSize accepts human-readable sizes ("512MB", "2GiB") via
	// datasize.ByteSize's TOML-compatible text unmarshaler.
	BufferPoolSize datasize.ByteSize `toml:"buffer_pool_size"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:     "127.0.0.1:9999",
		DataDir:        "./data",
		Workers:        4,
		BufferPoolSize: 512 * datasize.MB,
	}
}

// Load parses path into a Config seeded from Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, ezerr.Wrap(ezerr.Io, "config: load "+path, err)
	}
	if cfg.Workers <= 0 {
		return Config{}, ezerr.Newf(ezerr.Structure, "config: workers must be positive, got %d", cfg.Workers)
	}
	return cfg, nil
}
