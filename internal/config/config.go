package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "langstar"
	configFileName = "config.yaml"

	DefaultControlPlaneURL = "https://api.host.langchain.com"
	DefaultPlatformDomain  = "langgraph.app"
	DefaultRegionDomain    = "us.langgraph.app"
)

// Output formats accepted by OutputFormat.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

type Config struct {
	APIKey              string        `yaml:"api_key"`
	WorkspaceID         string        `yaml:"workspace_id"`
	OrganizationID      string        `yaml:"organization_id"`
	ControlPlaneURL     string        `yaml:"control_plane_url"`
	PlatformDomain      string        `yaml:"platform_domain"`
	RegionDomain        string        `yaml:"region_domain"`
	GitHubIntegrationID string        `yaml:"github_integration_id"`
	OutputFormat        string        `yaml:"output_format"`
	LogLevel            string        `yaml:"log_level"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	PollTimeout         time.Duration `yaml:"poll_timeout"`
	HTTPTimeout         time.Duration `yaml:"http_timeout"`
	Secrets             SecretsConfig `yaml:"secrets"`

	// Path is the config file the values were read from, empty when none was found.
	Path string `yaml:"-"`

	mu          sync.Mutex
	resolvedKey string
	readers     map[SecretSource]secretReader
}

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	return &Config{
		ControlPlaneURL: DefaultControlPlaneURL,
		PlatformDomain:  DefaultPlatformDomain,
		RegionDomain:    DefaultRegionDomain,
		OutputFormat:    FormatTable,
		LogLevel:        "info",
		PollInterval:    10 * time.Second,
		PollTimeout:     30 * time.Minute,
		HTTPTimeout:     30 * time.Second,
		Secrets:         SecretsConfig{Source: SecretSourceEnv, VaultKey: "api_key"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/langstar/config.yaml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, configDirName, configFileName), nil
}

// Load builds the configuration from defaults, the YAML config file, a .env
// file in the working directory and finally the process environment. An
// empty path selects DefaultPath and tolerates a missing file; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIKey = getEnv("LANGSMITH_API_KEY", getEnv("LANGGRAPH_API_KEY", c.APIKey))
	c.WorkspaceID = getEnv("LANGSMITH_WORKSPACE_ID", getEnv("LANGCHAIN_WORKSPACE_ID", c.WorkspaceID))
	c.OrganizationID = getEnv("LANGSMITH_ORGANIZATION_ID", c.OrganizationID)
	c.ControlPlaneURL = getEnv("LANGSTAR_CONTROL_PLANE_URL", c.ControlPlaneURL)
	c.PlatformDomain = getEnv("LANGSTAR_PLATFORM_DOMAIN", c.PlatformDomain)
	c.RegionDomain = getEnv("LANGSTAR_REGION_DOMAIN", c.RegionDomain)
	c.GitHubIntegrationID = getEnv("LANGGRAPH_GITHUB_INTEGRATION_ID", c.GitHubIntegrationID)
	c.OutputFormat = getEnv("LANGSTAR_OUTPUT_FORMAT", c.OutputFormat)
	c.LogLevel = getEnv("LANGSTAR_LOG_LEVEL", c.LogLevel)

	c.Secrets.Source = SecretSource(getEnv("LANGSTAR_SECRET_SOURCE", string(c.Secrets.Source)))
	c.Secrets.VaultAddress = getEnv("VAULT_ADDR", c.Secrets.VaultAddress)
	c.Secrets.VaultPath = getEnv("LANGSTAR_VAULT_PATH", c.Secrets.VaultPath)
	c.Secrets.AWSSecretID = getEnv("LANGSTAR_AWS_SECRET_ID", c.Secrets.AWSSecretID)

	var err error
	if c.PollInterval, err = getEnvDuration("LANGSTAR_POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.PollTimeout, err = getEnvDuration("LANGSTAR_POLL_TIMEOUT", c.PollTimeout); err != nil {
		return err
	}
	if c.HTTPTimeout, err = getEnvDuration("LANGSTAR_HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("invalid output format %q: must be %q or %q", c.OutputFormat, FormatTable, FormatJSON)
	}

	u, err := url.Parse(c.ControlPlaneURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid control plane url %q", c.ControlPlaneURL)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %s", c.PollTimeout)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}

	return c.Secrets.validate()
}

// BaseURL returns the control plane URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.ControlPlaneURL, "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
