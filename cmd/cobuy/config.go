package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matsen/cobuy/internal/config"
)

var configInit bool

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write the effective config to ./cobuy.yml")
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration cobuy would use, and where it came from.

Usage:
  cobuy config                  # Show config as JSON
  cobuy config --human          # Show config as YAML
  cobuy config --init           # Write it to ./cobuy.yml to start editing`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	Path   string         `json:"path"`
	Source string         `json:"source"` // "file" or "defaults"
	Config *config.Config `json:"config"`
	Paths  ConfigPaths    `json:"paths"`
}

// ConfigPaths lists the file locations derived from the config.
type ConfigPaths struct {
	Raw      string `json:"raw"`
	Filtered string `json:"filtered"`
	Input    string `json:"input"`
	Output   string `json:"output"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, path := mustLoadConfig()
	mustValidateConfig(cfg)

	if configInit {
		return writeProjectConfig(cfg)
	}

	resp := ConfigResponse{
		Path:   path,
		Source: "file",
		Config: cfg,
		Paths: ConfigPaths{
			Raw:      cfg.RawPath(),
			Filtered: cfg.FilteredPath(),
			Input:    cfg.InputPath(),
			Output:   cfg.OutputPath(),
		},
	}
	if path == "" {
		resp.Source = "defaults"
	}

	if !humanOutput {
		outputJSON(resp)
		return nil
	}

	if path == "" {
		fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		fmt.Fprintln(os.Stderr)
		fmt.Println("# defaults")
	} else {
		fmt.Printf("# %s\n", path)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

// writeProjectConfig writes cfg as cobuy.yml in the working directory.
func writeProjectConfig(cfg *config.Config) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	path := filepath.Join(cwd, config.ProjectConfigFiles[0])
	if _, err := os.Stat(path); err == nil {
		exitWithError(ExitConfigError, "%s already exists", path)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if humanOutput {
		fmt.Printf("Wrote %s\n", path)
	} else {
		outputJSON(StatusResponse{Status: "created", Path: path})
	}
	return nil
}
