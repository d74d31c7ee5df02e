package config

import (
	"fmt"
	"time"
)

// Config represents the full application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Registry      RegistryConfig      `yaml:"registry"`
	Store         StoreConfig         `yaml:"store"`
	GitHub        GitHubConfig        `yaml:"github"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	HTTP          HTTPConfig          `yaml:"http"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`

	// WebhookSecret is the shared secret GitHub signs deliveries with.
	// Empty disables signature verification.
	WebhookSecret string `yaml:"webhookSecret"`
}

// RegistryConfig controls pending annotation lifetimes.
type RegistryConfig struct {
	// TTL is how long an unresolved annotation lives before the sweeper
	// retires it.
	TTL string `yaml:"ttl"`

	// SweepInterval is how often the sweeper scans for lapsed annotations.
	SweepInterval string `yaml:"sweepInterval"`

	// CodeAttempts bounds retries when a freshly minted code collides.
	CodeAttempts int `yaml:"codeAttempts"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// GitHubConfig configures GitHub App authentication and API access.
type GitHubConfig struct {
	AppID int64 `yaml:"appID"`

	// PrivateKeyPath points at the App's PEM key on disk. PrivateKey holds
	// the PEM inline and wins when both are set.
	PrivateKeyPath string `yaml:"privateKeyPath"`
	PrivateKey     string `yaml:"privateKey"`

	// APIBaseURL overrides https://api.github.com, for GHES or tests.
	APIBaseURL string `yaml:"apiBaseURL"`

	// BotSuffixes are login suffixes treated as bots in addition to the
	// platform bot flag.
	BotSuffixes []string `yaml:"botSuffixes"`
}

// GeminiConfig configures the model backend.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`

	// CodeModel serves code-suggestion calls; falls back to Model when
	// empty.
	CodeModel string `yaml:"codeModel"`
	BaseURL   string `yaml:"baseURL"`
}

// HTTPConfig holds global HTTP client settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`         // debug, info, warn, error
	Format        string `yaml:"format"`        // json, human, auto
	RedactAPIKeys bool   `yaml:"redactAPIKeys"` // Redact API keys in logs
}

// TTLDuration parses the annotation TTL.
func (c RegistryConfig) TTLDuration() (time.Duration, error) {
	return parseDuration("registry.ttl", c.TTL)
}

// SweepIntervalDuration parses the sweep interval.
func (c RegistryConfig) SweepIntervalDuration() (time.Duration, error) {
	return parseDuration("registry.sweepInterval", c.SweepInterval)
}

// ShutdownTimeoutDuration parses the graceful shutdown timeout.
func (c ServerConfig) ShutdownTimeoutDuration() (time.Duration, error) {
	return parseDuration("server.shutdownTimeout", c.ShutdownTimeout)
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, value)
	}
	return d, nil
}

// Validate checks cross-field constraints and required settings.
func (c Config) Validate() error {
	ttl, err := c.Registry.TTLDuration()
	if err != nil {
		return err
	}
	interval, err := c.Registry.SweepIntervalDuration()
	if err != nil {
		return err
	}
	if interval > ttl {
		return fmt.Errorf("registry.sweepInterval %s exceeds registry.ttl %s: lapsed annotations would linger a full extra cycle", interval, ttl)
	}
	if c.Registry.CodeAttempts < 1 {
		return fmt.Errorf("registry.codeAttempts must be at least 1, got %d", c.Registry.CodeAttempts)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.GitHub.AppID == 0 {
		return fmt.Errorf("github.appID is required")
	}
	if c.GitHub.PrivateKeyPath == "" && c.GitHub.PrivateKey == "" {
		return fmt.Errorf("one of github.privateKeyPath or github.privateKey is required")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.apiKey is required")
	}
	return nil
}

// Merge combines multiple configuration instances, prioritising the latter ones.
func Merge(configs ...Config) Config {
	result := Config{}
	for _, cfg := range configs {
		result = merge(result, cfg)
	}
	return result
}

func merge(base, overlay Config) Config {
	result := base

	result.Server = chooseServer(base.Server, overlay.Server)
	result.Registry = chooseRegistry(base.Registry, overlay.Registry)
	result.Store = chooseStore(base.Store, overlay.Store)
	result.GitHub = chooseGitHub(base.GitHub, overlay.GitHub)
	result.Gemini = chooseGemini(base.Gemini, overlay.Gemini)
	result.HTTP = chooseHTTP(base.HTTP, overlay.HTTP)
	result.Observability = chooseObservability(base.Observability, overlay.Observability)

	return result
}

func chooseServer(base, overlay ServerConfig) ServerConfig {
	result := base
	if overlay.Addr != "" {
		result.Addr = overlay.Addr
	}
	if overlay.ShutdownTimeout != "" {
		result.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.WebhookSecret != "" {
		result.WebhookSecret = overlay.WebhookSecret
	}
	return result
}

func chooseRegistry(base, overlay RegistryConfig) RegistryConfig {
	result := base
	if overlay.TTL != "" {
		result.TTL = overlay.TTL
	}
	if overlay.SweepInterval != "" {
		result.SweepInterval = overlay.SweepInterval
	}
	if overlay.CodeAttempts != 0 {
		result.CodeAttempts = overlay.CodeAttempts
	}
	return result
}

func chooseStore(base, overlay StoreConfig) StoreConfig {
	if overlay.Path != "" {
		return overlay
	}
	return base
}

func chooseGitHub(base, overlay GitHubConfig) GitHubConfig {
	result := base
	if overlay.AppID != 0 {
		result.AppID = overlay.AppID
	}
	if overlay.PrivateKeyPath != "" {
		result.PrivateKeyPath = overlay.PrivateKeyPath
	}
	if overlay.PrivateKey != "" {
		result.PrivateKey = overlay.PrivateKey
	}
	if overlay.APIBaseURL != "" {
		result.APIBaseURL = overlay.APIBaseURL
	}
	if len(overlay.BotSuffixes) > 0 {
		result.BotSuffixes = overlay.BotSuffixes
	}
	return result
}

func chooseGemini(base, overlay GeminiConfig) GeminiConfig {
	result := base
	if overlay.APIKey != "" {
		result.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		result.Model = overlay.Model
	}
	if overlay.CodeModel != "" {
		result.CodeModel = overlay.CodeModel
	}
	if overlay.BaseURL != "" {
		result.BaseURL = overlay.BaseURL
	}
	return result
}

func chooseHTTP(base, overlay HTTPConfig) HTTPConfig {
	if overlay.Timeout != "" || overlay.MaxRetries != 0 || overlay.InitialBackoff != "" || overlay.MaxBackoff != "" || overlay.BackoffMultiplier != 0 {
		return overlay
	}
	return base
}

func chooseObservability(base, overlay ObservabilityConfig) ObservabilityConfig {
	result := base
	if overlay.Logging.Level != "" || overlay.Logging.Format != "" {
		result.Logging = overlay.Logging
	}
	return result
}
