// Package config handles pipeline configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the explicit configuration passed into the pipeline at construction time.
type Config struct {
	Category string `yaml:"category" toml:"category" json:"category"`
	Month    string `yaml:"month" toml:"month" json:"month"`
	DataDir  string `yaml:"data_dir" toml:"data_dir" json:"data_dir"` // Local directory or s3://bucket/prefix

	Weighting string   `yaml:"weighting" toml:"weighting" json:"weighting"` // "jaccard" or "count"
	Settings  Settings `yaml:"settings" toml:"settings" json:"settings"`

	Strict bool        `yaml:"strict" toml:"strict" json:"strict"`
	Spill  SpillConfig `yaml:"spill" toml:"spill" json:"spill"`
	Shards int         `yaml:"shards" toml:"shards" json:"shards"`

	MinCustomerRecords int `yaml:"min_customer_records" toml:"min_customer_records" json:"min_customer_records"`

	Columns Columns  `yaml:"columns" toml:"columns" json:"columns"`
	S3      S3Config `yaml:"s3" toml:"s3" json:"s3"`
}

// Settings are the layout parameters handed to the force-directed renderer.
// They pass through the pipeline unchanged.
type Settings struct {
	AttractionStrength     float64 `yaml:"attraction_strength" toml:"attraction_strength" json:"attraction_strength"`
	AttractionStrengthWeak float64 `yaml:"attraction_strength_weak" toml:"attraction_strength_weak" json:"attraction_strength_weak"`
	RepulsionStrength      float64 `yaml:"repulsion_strength" toml:"repulsion_strength" json:"repulsion_strength"`
	RepulsionStrengthWeak  float64 `yaml:"repulsion_strength_weak" toml:"repulsion_strength_weak" json:"repulsion_strength_weak"`
	LinkOpacity            float64 `yaml:"link_opacity" toml:"link_opacity" json:"link_opacity"`
	NodeRadius             float64 `yaml:"node_radius" toml:"node_radius" json:"node_radius"`
}

// SpillConfig controls the on-disk basket store.
type SpillConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir,omitempty" toml:"dir" json:"dir,omitempty"` // Defaults to os.TempDir()
	Keep    bool   `yaml:"keep" toml:"keep" json:"keep"`                   // Keep the database after the run
}

// Columns are zero-based field positions in the transaction CSV.
type Columns struct {
	ProductID    int `yaml:"product_id" toml:"product_id" json:"product_id"`
	CategoryCode int `yaml:"category_code" toml:"category_code" json:"category_code"`
	Brand        int `yaml:"brand" toml:"brand" json:"brand"`
	UserID       int `yaml:"user_id" toml:"user_id" json:"user_id"`
}

// S3Config configures access to s3:// locations. Credentials come from the
// environment (optionally loaded from .env).
type S3Config struct {
	Region   string `yaml:"region,omitempty" toml:"region" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint" json:"endpoint,omitempty"` // For MinIO and similar
}

const (
	WeightingJaccard = "jaccard"
	WeightingCount   = "count"

	DefaultCategory           = "electronics"
	DefaultMonth              = "2019-Oct"
	DefaultMinCustomerRecords = 500
)

// ProjectConfigFiles are the file names searched for in the working directory, in order.
var ProjectConfigFiles = []string{"cobuy.yml", "cobuy.yaml", "cobuy.toml"}

// ValidWeightings lists the supported weighting modes.
var ValidWeightings = []string{WeightingJaccard, WeightingCount}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultColumns matches the layout of the monthly eCommerce behaviour export:
// event_time,event_type,product_id,category_id,category_code,brand,price,user_id,user_session
func DefaultColumns() Columns {
	return Columns{ProductID: 2, CategoryCode: 4, Brand: 5, UserID: 7}
}

// DefaultSettings returns the renderer settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		AttractionStrength:     0.7,
		AttractionStrengthWeak: 0.01,
		RepulsionStrength:      -300,
		RepulsionStrengthWeak:  -30,
		LinkOpacity:            0.1,
		NodeRadius:             5,
	}
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Category:           DefaultCategory,
		Month:              DefaultMonth,
		DataDir:            ".",
		Weighting:          WeightingJaccard,
		Settings:           DefaultSettings(),
		Shards:             1,
		MinCustomerRecords: DefaultMinCustomerRecords,
		Columns:            DefaultColumns(),
	}
}

// Load reads configuration from path. The format is chosen by extension;
// fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".yml", ".yaml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, filepath.Ext(path))
	}

	cfg.DataDir = ExpandPath(cfg.DataDir)
	cfg.Spill.Dir = ExpandPath(cfg.Spill.Dir)
	return cfg, nil
}

// FindProjectConfig returns the first project config file present in dir,
// or "" if there is none.
func FindProjectConfig(dir string) string {
	for _, name := range ProjectConfigFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Resolve loads configuration using the lookup order: explicit path,
// project file in dir, global file, defaults.
func Resolve(explicit, dir string) (*Config, string, error) {
	if explicit != "" {
		cfg, err := Load(ExpandPath(explicit))
		return cfg, explicit, err
	}
	if p := FindProjectConfig(dir); p != "" {
		cfg, err := Load(p)
		return cfg, p, err
	}
	if p := GlobalConfigPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	return Default(), "", nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Category == "" {
		return fmt.Errorf("%w: category must not be empty", ErrInvalid)
	}
	if err := ValidateWeighting(c.Weighting); err != nil {
		return err
	}
	if c.Shards < 1 {
		return fmt.Errorf("%w: shards must be at least 1, got %d", ErrInvalid, c.Shards)
	}
	if c.MinCustomerRecords < 0 {
		return fmt.Errorf("%w: min_customer_records must not be negative", ErrInvalid)
	}
	return c.Columns.Validate()
}

// ValidateWeighting checks that the weighting mode is supported.
func ValidateWeighting(w string) error {
	for _, valid := range ValidWeightings {
		if w == valid {
			return nil
		}
	}
	return fmt.Errorf("%w: weighting %q (valid: %v)", ErrInvalid, w, ValidWeightings)
}

// Validate checks that every column is non-negative and distinct.
func (c Columns) Validate() error {
	seen := make(map[int]string, 4)
	for name, idx := range map[string]int{
		"product_id":    c.ProductID,
		"category_code": c.CategoryCode,
		"brand":         c.Brand,
		"user_id":       c.UserID,
	} {
		if idx < 0 {
			return fmt.Errorf("%w: column %s must not be negative", ErrInvalid, name)
		}
		if other, ok := seen[idx]; ok {
			return fmt.Errorf("%w: columns %s and %s share position %d", ErrInvalid, name, other, idx)
		}
		seen[idx] = name
	}
	return nil
}

// UseJaccard reports whether edges are weighted by neighbourhood similarity.
func (c *Config) UseJaccard() bool {
	return c.Weighting != WeightingCount
}

// CategorySlug returns the category with dots replaced, for use in file names.
func (c *Config) CategorySlug() string {
	return strings.ReplaceAll(c.Category, ".", "-")
}

// InputName is the sampled transaction file consumed by the build.
func (c *Config) InputName() string {
	return c.Month + "-" + c.CategorySlug() + "-final.csv"
}

// OutputName is the exported graph document.
func (c *Config) OutputName() string {
	return c.CategorySlug() + ".json"
}

// FilteredName is the category-filtered file written by the filter step.
func (c *Config) FilteredName() string {
	return c.Month + "-" + c.CategorySlug() + ".csv"
}

// RawName is the full monthly export.
func (c *Config) RawName() string {
	return c.Month + ".csv"
}

// InputPath returns the default build input location.
func (c *Config) InputPath() string { return c.join(c.InputName()) }

// OutputPath returns the default build output location.
func (c *Config) OutputPath() string { return c.join(c.OutputName()) }

// FilteredPath returns the default filter output location.
func (c *Config) FilteredPath() string { return c.join(c.FilteredName()) }

// RawPath returns the default filter input location.
func (c *Config) RawPath() string { return c.join(c.RawName()) }

// join resolves name under DataDir. S3 locations are joined with forward slashes.
func (c *Config) join(name string) string {
	if strings.HasPrefix(c.DataDir, "s3://") {
		return "s3://" + path.Join(strings.TrimPrefix(c.DataDir, "s3://"), name)
	}
	return filepath.Join(c.DataDir, name)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
