package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"repoknow/internal/logging"
	"repoknow/pkg/fileops"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "repoknow" // application name used for config and data directories

const (
	// ConfigPathEnv overrides the config file location.
	ConfigPathEnv = "REPOKNOW_CONFIG_PATH"
	// APIURLEnv overrides api.base_url.
	APIURLEnv = "REPOKNOW_API_URL"
	// APITokenEnv supplies the knowledge API token without touching the keyring.
	APITokenEnv = "REPOKNOW_API_TOKEN"

	CurrentVersion = "1.0"
)

// Config holds user configuration for repoknow.
type Config struct {
	Version  string         `yaml:"version"`   // Track config version
	InitTime int64          `yaml:"init_time"` // Unix timestamp of first save
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Insights InsightsConfig `yaml:"insights"`
}

// APIConfig configures the knowledge API client.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries     int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" validate:"gt=0"`
}

// StorageConfig locates checkpoint and cache files.
type StorageConfig struct {
	CheckpointDir string `yaml:"checkpoint_dir" validate:"required"`
	CacheDir      string `yaml:"cache_dir" validate:"required"`
}

// AnalysisConfig bounds the crawl and the snippet batches.
type AnalysisConfig struct {
	MaxFileSize         int64 `yaml:"max_file_size" validate:"gt=0"`
	MaxDepth            int   `yaml:"max_depth" validate:"gte=1"`
	IncludeHidden       bool  `yaml:"include_hidden"`
	CheckpointEvery     int   `yaml:"checkpoint_every" validate:"gte=1"`
	MaxUtilitySnippets  int   `yaml:"max_utility_snippets" validate:"gte=0"`
	MaxFunctionSnippets int   `yaml:"max_function_snippets" validate:"gte=0"`
	MaxKeyFiles         int   `yaml:"max_key_files" validate:"gte=0"`
}

// InsightsConfig configures optional model-generated insights.
type InsightsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model" validate:"required_if=Enabled true"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv string `yaml:"api_key_env" validate:"required_if=Enabled true"`
}

// ConfigPath returns the config file path, honoring REPOKNOW_CONFIG_PATH.
func ConfigPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv(ConfigPathEnv)); override != "" {
		return fileops.ExpandPath(override), nil
	}

	configDir := filepath.Join(xdg.ConfigHome, APP_NAME)
	configPath := filepath.Join(configDir, "config.yaml")

	logging.Debug("Determined config paths", "path", configPath)
	return configPath, nil
}

// Load loads the config from the standard location. A missing file yields
// DefaultConfig; environment overrides are applied in both cases.
func Load() (*Config, error) {
	configPath, exists := FindConfigFile()
	logging.Debug("Loading config from", "path", configPath, "exists", exists)

	if !exists {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return &cfg, cfg.Validate()
	}

	return LoadFrom(configPath)
}

// LoadFrom loads config from a specific path. Fields missing from the file keep
// their default values.
func LoadFrom(path string) (*Config, error) {
	logging.Debug("Reading config file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.Storage.CheckpointDir = fileops.ExpandPath(cfg.Storage.CheckpointDir)
	cfg.Storage.CacheDir = fileops.ExpandPath(cfg.Storage.CacheDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfigFile returns the path to an existing config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary, err := ConfigPath()
	if err != nil {
		logging.Error("Failed to get config path", "error", err)
		return "", false
	}

	if _, err := os.Stat(primary); err == nil {
		return primary, true
	}

	// Return primary path for new config
	return primary, false
}

// IsFirstRun checks if no config file has been written yet
func IsFirstRun() bool {
	_, exists := FindConfigFile()
	return !exists
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	dataDir := filepath.Join(xdg.DataHome, APP_NAME)

	return Config{
		Version:  CurrentVersion,
		InitTime: 0, // Will be set during first save
		API: APIConfig{
			BaseURL:        "http://localhost:8080/api",
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
		},
		Storage: StorageConfig{
			CheckpointDir: filepath.Join(dataDir, "checkpoints"),
			CacheDir:      filepath.Join(dataDir, "cache"),
		},
		Analysis: AnalysisConfig{
			MaxFileSize:         1 << 20,
			MaxDepth:            20,
			CheckpointEvery:     50,
			MaxUtilitySnippets:  50,
			MaxFunctionSnippets: 100,
			MaxKeyFiles:         20,
		},
		Insights: InsightsConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

func (c *Config) applyEnv() {
	if url := strings.TrimSpace(os.Getenv(APIURLEnv)); url != "" {
		c.API.BaseURL = url
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports the first offending fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	configPath, _ := FindConfigFile()
	return c.SaveTo(configPath)
}

// SaveTo writes the config to a specific path with 0600 permissions.
func (c *Config) SaveTo(path string) error {
	if c.InitTime == 0 {
		c.InitTime = time.Now().Unix()
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := fileops.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
