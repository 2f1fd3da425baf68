package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "cobuy"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/cobuy/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// HelpfulConfigMessage explains where configuration is looked up.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Configuration is read from, in order:
  1. the --config flag
  2. cobuy.yml, cobuy.yaml or cobuy.toml in the working directory
  3. %s

Tip: create a minimal config with
  mkdir -p %s
  printf 'category: electronics.smartphone\ndata_dir: ~/data/2019-Oct\n' > %s`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
