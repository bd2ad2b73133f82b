package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/wg-gen-plus/wgconsole/internal/state"
)

// Config holds all environment-based configuration for wgconsole.
type Config struct {
	// Backend API root, including the version prefix.
	APIURL string `env:"WG_API_URL" envDefault:"http://localhost:8080/api/v1.0"`

	// Token store database. Defaults to ~/.wgconsole/state.db.
	StatePath string `env:"WG_STATE_PATH"`

	RequestTimeout time.Duration `env:"WG_REQUEST_TIMEOUT" envDefault:"30s"`

	// Extra attempts for GET requests that fail with a transient error.
	RequestRetries int `env:"WG_REQUEST_RETRIES" envDefault:"2"`

	// Loopback address the OAuth2 callback listener binds. The backend's
	// OAuth2 redirect URL must point at http://<addr>/callback.
	CallbackAddr string `env:"WG_CALLBACK_ADDR" envDefault:"127.0.0.1:3000"`
	OpenBrowser  bool   `env:"WG_OPEN_BROWSER" envDefault:"true"`

	BannerTimeout time.Duration `env:"WG_BANNER_TIMEOUT" envDefault:"5s"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`

	// MCP over HTTP when set, stdio otherwise.
	MCPListenAddr string `env:"MCP_LISTEN_ADDR"`
	MCPAPIKeys    string `env:"MCP_API_KEYS"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.StatePath == "" {
		path, err := state.DefaultPath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	} else {
		abs, err := filepath.Abs(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
		}

		cfg.StatePath = abs
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("WG_API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("WG_REQUEST_TIMEOUT must be positive")
	}

	if c.RequestRetries < 0 {
		return fmt.Errorf("WG_REQUEST_RETRIES must not be negative")
	}

	if c.BannerTimeout <= 0 {
		return fmt.Errorf("WG_BANNER_TIMEOUT must be positive")
	}

	if c.CallbackAddr == "" {
		return fmt.Errorf("WG_CALLBACK_ADDR must not be empty")
	}

	return nil
}

// ValidateMCPHTTP checks the settings needed to serve MCP over HTTP.
func (c *Config) ValidateMCPHTTP() error {
	if c.MCPListenAddr == "" {
		return fmt.Errorf("MCP_LISTEN_ADDR is required for MCP over HTTP")
	}

	if c.MCPAPIKeys == "" {
		return fmt.Errorf("MCP_API_KEYS is required when MCP is served over HTTP")
	}

	_, err := c.ParseMCPAPIKeys()

	return err
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

const (
	// APIKeyPrefix marks MCP API keys so they are recognizable in logs
	// and secret scanners.
	APIKeyPrefix = "wgc_"

	// APIKeyMinLen is the prefix plus 32 hex characters.
	APIKeyMinLen = len(APIKeyPrefix) + 32
)

// APIKeyEntry holds a pre-configured API key and the name of its holder
// parsed from MCP_API_KEYS.
type APIKeyEntry struct {
	Name string
	Key  string
}

// ParseMCPAPIKeys parses the MCP_API_KEYS string.
// Format: "name1:wgc_key1,name2:wgc_key2"
func (c *Config) ParseMCPAPIKeys() ([]APIKeyEntry, error) {
	if c.MCPAPIKeys == "" {
		return nil, nil
	}

	seen := make(map[string]struct{})

	var entries []APIKeyEntry

	for _, pair := range strings.Split(c.MCPAPIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid API key entry (missing ':')")
		}

		name := pair[:idx]

		key := pair[idx+1:]
		if name == "" || key == "" {
			return nil, fmt.Errorf("empty name or key in entry %d", len(entries)+1)
		}

		if !strings.HasPrefix(key, APIKeyPrefix) {
			return nil, fmt.Errorf("API key must start with %q prefix in entry %d", APIKeyPrefix, len(entries)+1)
		}

		if len(key) < APIKeyMinLen {
			return nil, fmt.Errorf("API key too short in entry %d (minimum %d characters)", len(entries)+1, APIKeyMinLen)
		}

		if _, err := hex.DecodeString(key[len(APIKeyPrefix):]); err != nil {
			return nil, fmt.Errorf("API key contains non-hex characters after %q prefix in entry %d", APIKeyPrefix, len(entries)+1)
		}

		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate name %q in MCP_API_KEYS", name)
		}

		seen[name] = struct{}{}
		entries = append(entries, APIKeyEntry{Name: name, Key: key})
	}

	return entries, nil
}
