// Package config loads the optional epdcore.yaml configuration file and
// bridges it to the environment variables the storage and document store
// factories consume. Environment variables always win over the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the epdcore.yaml layout.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Documents DocumentsConfig `yaml:"documents"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"`       // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlite_path"`  // when driver=sqlite
	PostgresDSN string `yaml:"postgres_dsn"` // when driver=postgres
}

// DocumentsConfig selects the raw EPD document backend.
type DocumentsConfig struct {
	Driver string `yaml:"driver"`  // fs|s3|memory
	FSRoot string `yaml:"fs_root"` // when driver=fs
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error (default info)
	Format string `yaml:"format"` // text|json (default text)
}

// Load reads the configuration file at path. A missing file is not an
// error: the zero Config defers every decision to environment variables
// and factory defaults.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// ExportEnv publishes file-based settings as the environment variables
// the factories read, without clobbering variables the operator already
// set.
func (c Config) ExportEnv() {
	setIfUnset("EPDCORE_STORAGE_DRIVER", c.Storage.Driver)
	setIfUnset("EPDCORE_SQLITE_PATH", c.Storage.SQLitePath)
	setIfUnset("EPDCORE_POSTGRES_DSN", c.Storage.PostgresDSN)
	setIfUnset("EPDCORE_DOCS_DRIVER", c.Documents.Driver)
	setIfUnset("EPDCORE_DOCS_FS_ROOT", c.Documents.FSRoot)
}

func setIfUnset(key, value string) {
	if value == "" {
		return
	}
	if _, exists := os.LookupEnv(key); exists {
		return
	}
	os.Setenv(key, value)
}
