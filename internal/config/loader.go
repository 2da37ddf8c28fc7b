package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DirName is the per-project configuration directory.
const DirName = ".sightline"

// Default values for Config.
const (
	DefaultReportsDir            = "testing/reports"
	DefaultModel                 = "computer-use-preview"
	DefaultBaseURL               = "https://api.openai.com"
	DefaultAPIKeyEnv             = "OPENAI_API_KEY"
	DefaultMaxActions            = 50
	DefaultAgentTimeoutSeconds   = 120
	DefaultBrowserWidth          = 1024
	DefaultBrowserHeight         = 768
	DefaultBrowserTimeoutSeconds = 30
	DefaultMetricsFile           = "metrics.prom"
	DefaultDatabaseURLEnv        = "SIGHTLINE_DATABASE_URL"
	DefaultServiceName           = "sightline"
	DefaultServerPort            = 8374
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Reports: ReportsConfig{
			Dir:       DefaultReportsDir,
			Collision: CollisionReuse,
			JUnit:     true,
		},
		Agent: AgentConfig{
			Model:          DefaultModel,
			BaseURL:        DefaultBaseURL,
			APIKeyEnv:      DefaultAPIKeyEnv,
			MaxActions:     DefaultMaxActions,
			TimeoutSeconds: DefaultAgentTimeoutSeconds,
		},
		Browser: BrowserConfig{
			Width:          DefaultBrowserWidth,
			Height:         DefaultBrowserHeight,
			TimeoutSeconds: DefaultBrowserTimeoutSeconds,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			File:    DefaultMetricsFile,
		},
		Archive: ArchiveConfig{
			DatabaseURLEnv: DefaultDatabaseURLEnv,
		},
		Telemetry: TelemetryConfig{
			Insecure:    true,
			ServiceName: DefaultServiceName,
		},
		Server: ServerConfig{
			Port: DefaultServerPort,
		},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadConfig reads .sightline/config.yaml under basePath onto the defaults.
// A missing file yields the defaults.
func LoadConfig(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, DirName, "config.yaml")

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are usable.
func ValidateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Reports.Dir) == "" {
		return ValidationError{Field: "reports.dir", Message: "required field is empty"}
	}
	switch cfg.Reports.Collision {
	case CollisionReuse, CollisionSuffix, CollisionReject:
	default:
		return ValidationError{Field: "reports.collision", Message: "must be one of reuse, suffix, reject"}
	}

	if strings.TrimSpace(cfg.Agent.Model) == "" {
		return ValidationError{Field: "agent.model", Message: "required field is empty"}
	}
	if strings.TrimSpace(cfg.Agent.BaseURL) == "" {
		return ValidationError{Field: "agent.base_url", Message: "required field is empty"}
	}
	if cfg.Agent.MaxActions <= 0 {
		return ValidationError{Field: "agent.max_actions", Message: "must be positive"}
	}
	if cfg.Agent.TimeoutSeconds <= 0 {
		return ValidationError{Field: "agent.timeout_seconds", Message: "must be positive"}
	}

	if cfg.Browser.Width <= 0 {
		return ValidationError{Field: "browser.width", Message: "must be positive"}
	}
	if cfg.Browser.Height <= 0 {
		return ValidationError{Field: "browser.height", Message: "must be positive"}
	}
	if cfg.Browser.TimeoutSeconds <= 0 {
		return ValidationError{Field: "browser.timeout_seconds", Message: "must be positive"}
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.File) == "" {
		return ValidationError{Field: "metrics.file", Message: "required when metrics are enabled"}
	}

	if cfg.Publish.Enabled() {
		switch normalizeProvider(cfg.Publish.Provider) {
		case "s3", "gcs", "azure":
		default:
			return ValidationError{Field: "publish.provider", Message: "must be one of s3, gcs, azure"}
		}
		if strings.TrimSpace(cfg.Publish.Bucket) == "" {
			return ValidationError{Field: "publish.bucket", Message: "required when publishing"}
		}
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return ValidationError{Field: "server.port", Message: "must be between 0 and 65535"}
	}

	return nil
}

// SaveConfig writes cfg to .sightline/config.yaml under basePath, creating
// the directory if needed.
func SaveConfig(basePath string, cfg *Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Join(basePath, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func normalizeProvider(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "aws", "s3", "minio":
		return "s3"
	case "gcp", "gcs":
		return "gcs"
	case "azure", "blob":
		return "azure"
	default:
		return value
	}
}

// LoadEnv loads .sightline/.env and then .env under basePath into the process
// environment. Variables already set are never overridden and missing files
// are skipped.
func LoadEnv(basePath string) error {
	for _, path := range []string{
		filepath.Join(basePath, DirName, ".env"),
		filepath.Join(basePath, ".env"),
	} {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat env file: %w", err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// APIKey returns the agent API key from the configured variable.
func (c *Config) APIKey() string {
	return Env(c.Agent.APIKeyEnv)
}

// DatabaseURL returns the archive DSN, falling back to the configured
// environment variable.
func (c *Config) DatabaseURL() string {
	if c.Archive.DatabaseURL != "" {
		return c.Archive.DatabaseURL
	}
	return Env(c.Archive.DatabaseURLEnv)
}

// ReportsRoot resolves the reports directory against basePath.
func (c *Config) ReportsRoot(basePath string) string {
	if filepath.IsAbs(c.Reports.Dir) {
		return c.Reports.Dir
	}
	return filepath.Join(basePath, c.Reports.Dir)
}

// Env returns the trimmed value of the named variable, or "" when name is
// empty.
func Env(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}
