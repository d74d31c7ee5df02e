package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "wizardd"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "WIZARD"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand environment variables in config values
	cfg = expandEnvVars(cfg)

	return cfg, nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	cfg.Server.Addr = expandEnvString(cfg.Server.Addr)
	cfg.Server.WebhookSecret = expandEnvString(cfg.Server.WebhookSecret)

	cfg.Store.Path = expandEnvString(cfg.Store.Path)

	cfg.GitHub.PrivateKeyPath = expandEnvString(cfg.GitHub.PrivateKeyPath)
	cfg.GitHub.PrivateKey = expandEnvString(cfg.GitHub.PrivateKey)
	cfg.GitHub.APIBaseURL = expandEnvString(cfg.GitHub.APIBaseURL)

	cfg.Gemini.APIKey = expandEnvString(cfg.Gemini.APIKey)
	cfg.Gemini.Model = expandEnvString(cfg.Gemini.Model)
	cfg.Gemini.CodeModel = expandEnvString(cfg.Gemini.CodeModel)
	cfg.Gemini.BaseURL = expandEnvString(cfg.Gemini.BaseURL)

	cfg.HTTP.Timeout = expandEnvString(cfg.HTTP.Timeout)
	cfg.HTTP.InitialBackoff = expandEnvString(cfg.HTTP.InitialBackoff)
	cfg.HTTP.MaxBackoff = expandEnvString(cfg.HTTP.MaxBackoff)

	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)

	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	// Replace ${VAR} syntax
	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Keep original if not found
	})

	// Replace $VAR syntax (without braces)
	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:] // Remove $
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Keep original if not found
	})

	return s
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.webhookSecret", "")

	// Registry defaults
	v.SetDefault("registry.ttl", "120s")
	v.SetDefault("registry.sweepInterval", "60s")
	v.SetDefault("registry.codeAttempts", 5)

	// Store defaults
	v.SetDefault("store.path", defaultStorePath())

	// GitHub defaults
	v.SetDefault("github.apiBaseURL", "https://api.github.com")
	v.SetDefault("github.appID", 0)
	v.SetDefault("github.privateKeyPath", "")
	v.SetDefault("github.privateKey", "")

	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.apiKey", "")
	v.SetDefault("gemini.codeModel", "")
	v.SetDefault("gemini.baseURL", "")

	// HTTP defaults
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.maxRetries", 5)
	v.SetDefault("http.initialBackoff", "2s")
	v.SetDefault("http.maxBackoff", "32s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "auto")
	v.SetDefault("observability.logging.redactAPIKeys", true)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./wizardd.db"
	}
	return filepath.Join(home, ".config", "wizardd", "wizardd.db")
}
