// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/shop-proxy/config.toml",
	"configs/config.toml",
}

// Paths served by the proxy itself; routes and the metrics path may not use them.
const (
	HealthzPath = "/healthz"
	StatusPath  = "/proxy/status"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	EnvFile     string `kong:"help='Path to a .env file loaded before startup.',env='ENV_FILE',default='.env'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	UpstreamURL string `kong:"name='upstream-url',help='Backend API base URL (overrides config).',env='API_URL'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Routes   []Route        `toml:"routes"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds backend API connection settings.
type UpstreamConfig struct {
	BaseURL          string `toml:"base_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	IdleConnections  int    `toml:"idle_connections"`
	MaxResponseBytes int64  `toml:"max_response_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Route maps an inbound storefront path onto a fixed backend resource path.
// The inbound method is mirrored upstream.
type Route struct {
	Method       string `toml:"method"`
	Path         string `toml:"path"`
	UpstreamPath string `toml:"upstream_path"`
}

// DefaultRoutes is the route table used when the config declares none:
// the authenticated caller's own shop.
func DefaultRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/api/shop/me", UpstreamPath: "/api/shops/me"},
	}
}

var allowedRouteMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set in the environment are left untouched. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the TOML config file (if any) and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/shop-proxy/config.toml then configs/config.toml. Without a file the
// configuration is built from defaults and CLI/environment values alone.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.normalizeRoutes()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.UpstreamURL != "" {
		c.Upstream.BaseURL = cli.UpstreamURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// normalizeRoutes upper-cases methods and fills the default method and route table.
func (c *Config) normalizeRoutes() {
	if len(c.Routes) == 0 {
		c.Routes = DefaultRoutes()
		return
	}
	for i := range c.Routes {
		m := strings.ToUpper(strings.TrimSpace(c.Routes[i].Method))
		if m == "" {
			m = http.MethodGet
		}
		c.Routes[i].Method = m
	}
}

func (c *Config) validate() error {
	// Upstream URL: required, absolute http(s).
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required (or set API_URL)")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https; got %q", c.Upstream.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url has no host; got %q", c.Upstream.BaseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("upstream.base_url must not carry a query or fragment; got %q", c.Upstream.BaseURL)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Upstream.MaxResponseBytes < 0 {
		return fmt.Errorf("upstream.max_response_bytes must be non-negative; got %d", c.Upstream.MaxResponseBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if err := c.validateRoutes(); err != nil {
		return err
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range c.reservedPaths() {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func (c *Config) validateRoutes() error {
	seen := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		if !allowedRouteMethods[r.Method] {
			return fmt.Errorf("routes[%d].method %q is not supported", i, r.Method)
		}
		if r.Path == "" || r.Path[0] != '/' {
			return fmt.Errorf("routes[%d].path must start with '/'; got %q", i, r.Path)
		}
		if r.UpstreamPath == "" || r.UpstreamPath[0] != '/' {
			return fmt.Errorf("routes[%d].upstream_path must start with '/'; got %q", i, r.UpstreamPath)
		}
		if strings.ContainsAny(r.UpstreamPath, "?#") {
			return fmt.Errorf("routes[%d].upstream_path must not carry a query or fragment; got %q", i, r.UpstreamPath)
		}
		if r.Path == HealthzPath || r.Path == StatusPath {
			return fmt.Errorf("routes[%d].path %q conflicts with a built-in endpoint", i, r.Path)
		}
		key := r.Method + " " + r.Path
		if seen[key] {
			return fmt.Errorf("routes[%d] duplicates %s", i, key)
		}
		seen[key] = true
	}
	return nil
}

// reservedPaths lists paths the metrics endpoint must not shadow.
func (c *Config) reservedPaths() []string {
	paths := []string{HealthzPath, StatusPath}
	for _, r := range c.Routes {
		paths = append(paths, r.Path)
	}
	return paths
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.MaxResponseBytes == 0 {
		c.Upstream.MaxResponseBytes = 10 * 1024 * 1024
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
