package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override secrets from the config file.
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvRefreshToken = "SPOTIFY_REFRESH_TOKEN"
	EnvAgentKey     = "GEMINI_API_KEY"
)

// Duration is a [time.Duration] that reads and writes as a TOML string ("10s", "500ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	HTTP    HTTPConfig    `toml:"http"`
	Token   TokenConfig   `toml:"token"`
	Search  SearchConfig  `toml:"search"`
	Cache   CacheConfig   `toml:"cache"`
	Server  ServerConfig  `toml:"server"`
	Agent   AgentConfig   `toml:"agent"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	APIURL       string `toml:"api_url"`
	TokenURL     string `toml:"token_url"`
}

// HTTPConfig controls timeouts, retries and pacing of catalog calls.
type HTTPConfig struct {
	Timeout           Duration `toml:"timeout"`
	MaxAttempts       int      `toml:"max_attempts"`
	BaseBackoff       Duration `toml:"base_backoff"`
	MaxBackoff        Duration `toml:"max_backoff"`
	MaxRetryTime      Duration `toml:"max_retry_time"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// TokenConfig controls access token caching.
type TokenConfig struct {
	SafetyMargin Duration `toml:"safety_margin"`
	MaxLifetime  Duration `toml:"max_lifetime"`
}

// SearchConfig controls playlist search and track selection.
type SearchConfig struct {
	PlaylistLimit int `toml:"playlist_limit"`
	DefaultTopN   int `toml:"default_top_n"`
}

// CacheConfig enables the sqlite playlist track cache when Path is set.
type CacheConfig struct {
	Path string   `toml:"path"`
	TTL  Duration `toml:"ttl"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// AgentConfig is read for the mood interpretation agent; the catalog layer never uses it.
type AgentConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// LoadConfig reads a TOML configuration file on top of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Load resolves the effective configuration: defaults, then the config file if it exists,
// then a .env file if it exists, then the process environment.
func Load(configPath, envPath string) (*Config, error) {
	config := DefaultConfig()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			loaded, err := LoadConfig(configPath)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	config.ApplyEnv(os.Getenv)
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides secrets with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvClientID, &c.Spotify.ClientID},
		{EnvClientSecret, &c.Spotify.ClientSecret},
		{EnvRefreshToken, &c.Spotify.RefreshToken},
		{EnvAgentKey, &c.Agent.APIKey},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}

// Validate reports missing Spotify secrets and nonsensical limits.
//
// A missing secret is fatal at startup rather than per request.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if c.Spotify.RefreshToken == "" {
		missing = append(missing, EnvRefreshToken)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("%w: http.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Search.PlaylistLimit < 1 || c.Search.PlaylistLimit > 50 {
		return fmt.Errorf("%w: search.playlist_limit must be between 1 and 50", ErrInvalidConfig)
	}
	if c.Search.DefaultTopN < 1 {
		return fmt.Errorf("%w: search.default_top_n must be positive", ErrInvalidConfig)
	}
	return nil
}

// SaveConfig writes the configuration to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
