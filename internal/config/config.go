package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional sortcp configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Filter   FilterConfig   `toml:"filter"`
	Output   OutputConfig   `toml:"output"`
}

// DefaultsConfig holds persistent flag defaults. Pointer fields distinguish
// "unset" from the zero value so CLI flags can fall back correctly.
type DefaultsConfig struct {
	Workers        *int    `toml:"workers"`
	Verify         *bool   `toml:"verify"`
	BWLimit        *string `toml:"bwlimit"`
	Collision      *string `toml:"collision"`
	FollowSymlinks *bool   `toml:"follow_symlinks"`
	FoldCase       *bool   `toml:"fold_case"`
	UnknownBucket  *string `toml:"unknown_bucket"`
	Strict         *bool   `toml:"strict"`
}

// FilterConfig holds rules applied before any CLI --include/--exclude.
type FilterConfig struct {
	Rules   []string `toml:"rules"` // "+ PATTERN" / "- PATTERN"
	MinSize *string  `toml:"min_size"`
	MaxSize *string  `toml:"max_size"`
}

// OutputConfig controls the per-file report lines.
type OutputConfig struct {
	Color *string `toml:"color"` // auto, always, never
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "sortcp", "config.toml")
}

// Load reads the config file from the XDG path. A missing file yields a
// zero Config and no error.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// LoadFile reads the config file at path. Keys that are not part of the
// schema are rejected so typos surface instead of being ignored.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}
