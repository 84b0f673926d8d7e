// Package aqlconfig loads engine configuration from a TOML file: the
// VFile path, FileLock retry/backoff knobs, and worker concurrency
// hints. User-supplied values are merged over hard-coded defaults rather
// than requiring every field to be specified.
//
// Grounded on the teacher's pkg/sysregistriesv2 (TOML-based registry
// configuration loaded from disk, merged with built-in defaults) and
// pkg/docker/config (credential file parsing via the same library). Both
// pull in github.com/BurntSushi/toml directly; dario.cat/mergo is a
// direct teacher dependency used the same "defaults struct, overlay
// user struct" way pkg/sysregistriesv2's shortNameAliasConf merging does.
package aqlconfig

import (
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the engine's top-level configuration.
type Config struct {
	// VFilePath is the path to the bolt database backing the VFile.
	VFilePath string `toml:"vfile_path"`

	// Lock configures the FileLock retry/backoff behavior used to
	// serialize writers against the VFile.
	Lock LockConfig `toml:"lock"`

	// Workers is the number of concurrent build workers; zero means "let
	// the scheduler pick", conventionally GOMAXPROCS.
	Workers int `toml:"workers"`
}

// LockConfig mirrors lockfile.Options in a TOML-friendly shape (plain
// int fields - lockfile.Options uses time.Duration, which toml
// cannot decode directly).
type LockConfig struct {
	IntervalMillis int `toml:"interval_ms"`
	Retries        int `toml:"retries"`
}

// Interval returns the configured poll interval as a time.Duration.
func (l LockConfig) Interval() time.Duration {
	return time.Duration(l.IntervalMillis) * time.Millisecond
}

// Default returns the engine's built-in configuration.
func Default() Config {
	return Config{
		VFilePath: ".aqualid.db",
		Lock:      LockConfig{IntervalMillis: 250, Retries: 1200},
		Workers:   0,
	}
}

// Load reads and decodes the TOML file at path, merging it over Default
// so a config file only needs to specify the fields it wants to change.
func Load(path string) (Config, error) {
	cfg := Default()
	var fromFile Config
	if _, err := toml.DecodeFile(path, &fromFile); err != nil {
		return Config{}, errors.Wrapf(err, "aqlconfig: decoding %s", path)
	}
	if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
		return Config{}, errors.Wrapf(err, "aqlconfig: merging %s over defaults", path)
	}
	return cfg, nil
}
