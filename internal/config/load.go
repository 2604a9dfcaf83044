package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the partest configuration file.
const ConfigFileName = "partest.toml"

// HiddenConfigFileName is accepted when a project keeps tool configs out of
// the directory listing. ConfigFileName wins when both exist.
const HiddenConfigFileName = ".partest.toml"

// FindConfigFile walks up from startDir looking for partest.toml or
// .partest.toml. The walk stops at the first directory holding a .git entry,
// so a checkout never picks up a config from an enclosing project.
// Returns the absolute path to the config file, or "" if none is found.
func FindConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	for {
		for _, name := range []string{ConfigFileName, HiddenConfigFileName} {
			candidate := filepath.Join(dir, name)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return candidate, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadFromFile parses the TOML file at the given path and returns the
// configuration and TOML metadata. The metadata can be used to detect
// unknown keys via MetaData.Undecoded().
func LoadFromFile(path string) (*Config, toml.MetaData, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, md, fmt.Errorf("loading config %s: %w", path, err)
	}
	return &cfg, md, nil
}
