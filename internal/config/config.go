// Package config loads and validates urlq.json, the configuration file of
// the sync server.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urlq-dev/urlq/internal/errors"
)

const (
	// FileName is the name of the configuration file.
	FileName = "urlq.json"

	// DefaultPort is the default sync server port.
	DefaultPort = 7410

	// DefaultHost is the default bind host.
	DefaultHost = "localhost"
)

// Config represents the complete urlq.json configuration.
type Config struct {
	// Name is the project name, used in logs.
	Name string `json:"name,omitempty"`

	// Server contains HTTP listener configuration.
	Server ServerConfig `json:"server,omitempty"`

	// WebSocket contains connection-level timeouts.
	WebSocket WebSocketConfig `json:"websocket,omitempty"`

	// Metrics contains the Prometheus endpoint configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Debug enables verbose engine logging.
	Debug bool `json:"debug,omitempty"`

	// KeyMap remaps display names to on-the-wire query keys.
	KeyMap map[string]string `json:"keyMap,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP listener configuration.
type ServerConfig struct {
	// Host is the bind host (default: "localhost").
	Host string `json:"host,omitempty"`

	// Port is the listen port (default: 7410).
	Port int `json:"port,omitempty"`

	// AllowedOrigins lists origins accepted for WebSocket upgrades.
	// Empty means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// WebSocketConfig contains connection-level timeouts, as duration strings
// ("30s", "1m").
type WebSocketConfig struct {
	ReadTimeout  string `json:"readTimeout,omitempty"`
	WriteTimeout string `json:"writeTimeout,omitempty"`
	PingInterval string `json:"pingInterval,omitempty"`
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	// Enabled mounts the /metrics endpoint.
	Enabled bool `json:"enabled,omitempty"`

	// Namespace is the metrics namespace (default: "urlq").
	Namespace string `json:"namespace,omitempty"`

	// Path is the scrape path (default: "/metrics").
	Path string `json:"path,omitempty"`
}

// New returns a Config with every default applied.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		WebSocket: WebSocketConfig{
			ReadTimeout:  "60s",
			WriteTimeout: "10s",
			PingInterval: "25s",
		},
		Metrics: MetricsConfig{
			Namespace: "urlq",
			Path:      "/metrics",
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// urlq.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + FileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'urlq init' or create " + FileName + " manually")
		}
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse " + FileName + ": " + err.Error()).
			WithSuggestion("Check that " + FileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.WebSocket.ReadTimeout == "" {
		c.WebSocket.ReadTimeout = "60s"
	}
	if c.WebSocket.WriteTimeout == "" {
		c.WebSocket.WriteTimeout = "10s"
	}
	if c.WebSocket.PingInterval == "" {
		c.WebSocket.PingInterval = "25s"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "urlq"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the configuration for semantic errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("server.port must be between 1 and 65535, got " + strconv.Itoa(c.Server.Port))
	}
	for _, field := range []struct {
		name, value string
	}{
		{"websocket.readTimeout", c.WebSocket.ReadTimeout},
		{"websocket.writeTimeout", c.WebSocket.WriteTimeout},
		{"websocket.pingInterval", c.WebSocket.PingInterval},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return errors.New(errors.CodeConfigInvalid).
				WithDetail(field.name + " is not a valid duration: " + field.value)
		}
	}
	seen := map[string]string{}
	for display, wire := range c.KeyMap {
		if prev, ok := seen[wire]; ok {
			return errors.New(errors.CodeConfigInvalid).
				WithDetail("keyMap entries " + prev + " and " + display + " both map to " + wire)
		}
		seen[wire] = display
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ReadTimeout returns the parsed websocket read timeout.
func (c *Config) ReadTimeout() time.Duration { return mustDuration(c.WebSocket.ReadTimeout) }

// WriteTimeout returns the parsed websocket write timeout.
func (c *Config) WriteTimeout() time.Duration { return mustDuration(c.WebSocket.WriteTimeout) }

// PingInterval returns the parsed websocket ping interval.
func (c *Config) PingInterval() time.Duration { return mustDuration(c.WebSocket.PingInterval) }

// mustDuration assumes Validate has run.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
