package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	BackendGCS      = "gcs"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	dirMode  = 0700
	fileMode = 0600
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// GitHub configures the optional commit status notification.
type GitHub struct {
	Repo    string `yaml:"repo" validate:"omitempty,contains=/"`
	SHA     string `yaml:"sha" validate:"omitempty,hexadecimal,min=7,max=40"`
	Context string `yaml:"context"`
}

// Enabled returns true when the repo and commit are both set.
func (g GitHub) Enabled() bool {
	return g.Repo != "" && g.SHA != ""
}

// Config represents the app config object.
type Config struct {
	Backend         string  `yaml:"backend" validate:"required,oneof=gcs sqlite postgres memory"`
	Bucket          string  `yaml:"bucket" validate:"required_if=Backend gcs"`
	Project         string  `yaml:"project"`
	CredentialsFile string  `yaml:"credentials_file"`
	DSN             string  `yaml:"dsn" validate:"required_if=Backend sqlite,required_if=Backend postgres"`
	ManifestKey     string  `yaml:"manifest_key" validate:"required"`
	CounterKey      string  `yaml:"counter_key" validate:"required"`
	ReportPrefix    string  `yaml:"report_prefix" validate:"required"`
	InputPath       string  `yaml:"input_path" validate:"required"`
	InputColumn     string  `yaml:"input_column" validate:"required"`
	OutDir          string  `yaml:"out_dir" validate:"required"`
	MinAvgScore     float64 `yaml:"min_avg_score" validate:"gte=0,lte=100"`
	Workers         int     `yaml:"workers" validate:"gte=0"`
	SampleSize      int     `yaml:"sample_size" validate:"gte=1"`
	LogLevel        string  `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFile         string  `yaml:"log_file"`
	HistoryDB       string  `yaml:"history_db"`
	GitHub          GitHub  `yaml:"github"`
}

// Default returns the config used when no file or flag overrides a value.
func Default() *Config {
	return &Config{
		Backend:      BackendGCS,
		ManifestKey:  "registry/manifest.json",
		CounterKey:   "model_version.txt",
		ReportPrefix: "reports",
		InputPath:    filepath.Join("data", "passwords.csv"),
		InputColumn:  "password",
		OutDir:       "out",
		MinAvgScore:  0,
		SampleSize:   100,
		LogLevel:     "info",
		GitHub: GitHub{
			Context: "pwgate/strength",
		},
	}
}

// Location returns the identifier of the configured store.
func (c *Config) Location() string {
	if c.Backend == BackendGCS {
		return c.Bucket
	}
	return c.DSN
}

// Validate checks the config for missing or invalid values.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Load reads the YAML config at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	return c, nil
}

// Save writes the config to path as YAML.
func Save(path string, c *Config) error {
	if path == "" {
		return errors.New("config path required")
	}
	if c == nil {
		return errors.New("config required")
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("failed to create dir: %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file: %s: %w", path, err)
	}
	return nil
}

// GetOrCreateHomeDir returns the app directory in the user home.
// The created flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir: %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
