// Package config defines the statiker configuration file format and its
// defaults. Every field is defaulted at load time so request handling never
// has to check for missing values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDuration is returned when a duration field cannot be parsed.
var ErrInvalidDuration = errors.New("config: invalid duration")

// ErrTLSIncomplete is returned when TLS is enabled without both a certificate
// and a key path.
var ErrTLSIncomplete = errors.New("config: tls enabled but cert_path or key_path is empty")

// ErrTLSFileMissing is returned when a configured TLS certificate or key file
// does not exist or is not a regular file.
var ErrTLSFileMissing = errors.New("config: tls cert or key file not found")

// ErrInvalidProxyURL is returned when a routing entry declares a proxy with
// an unparseable or schemeless backend URL.
var ErrInvalidProxyURL = errors.New("config: invalid proxy url")

// Duration wraps time.Duration to accept human-readable YAML values such as
// "5s", "1m30s", or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, err)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration object.
type Config struct {
	Server      Server      `yaml:"server"`
	TLS         TLS         `yaml:"tls"`
	Routing     []Route     `yaml:"routing"`
	SPA         SPA         `yaml:"spa"`
	Assets      Assets      `yaml:"assets"`
	Compression Compression `yaml:"compression"`
	Security    Security    `yaml:"security"`
	Obs         Obs         `yaml:"obs"`
}

// Server configures the listener and the static document root.
type Server struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Root      string `yaml:"root"`
	Index     string `yaml:"index"`
	AutoIndex bool   `yaml:"auto_index"`

	// MaxConnections caps concurrent accepted connections. Zero means no cap.
	MaxConnections int `yaml:"max_connections"`

	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// TLS configures the HTTPS listener.
type TLS struct {
	Enabled  bool   `yaml:"enabled"`
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// Route binds a path pattern to static serving or proxying. Entries are
// evaluated in configured order and the first structural match wins, so
// order is significant. A route is never both static and proxy; when a
// route declares both, the proxy target is ignored with a warning.
type Route struct {
	Path  string `yaml:"path"`
	Serve string `yaml:"serve"`
	Proxy *Proxy `yaml:"proxy"`
}

// Proxy describes an upstream backend for a proxied route. AddHeaders values
// may contain the literal token {client_ip}, substituted at forward time.
type Proxy struct {
	URL        string            `yaml:"url"`
	Timeout    Duration          `yaml:"timeout"`
	AddHeaders map[string]string `yaml:"add_headers"`
}

// SPA configures single-page-application fallback for unmatched paths.
type SPA struct {
	Enabled  bool   `yaml:"enabled"`
	Fallback string `yaml:"fallback"`
}

// Assets groups static asset policies.
type Assets struct {
	Cache Cache `yaml:"cache"`
}

// Cache configures Cache-Control for asset responses. ETag is accepted for
// compatibility but not acted on.
type Cache struct {
	Enabled bool     `yaml:"enabled"`
	MaxAge  Duration `yaml:"max_age"`
	ETag    bool     `yaml:"etag"`
}

// Compression configures response body compression.
type Compression struct {
	Enable bool `yaml:"enable"`
	Gzip   bool `yaml:"gzip"`
	Br     bool `yaml:"br"`
}

// Security groups CORS, rate limiting, and extra response headers.
type Security struct {
	CORS      CORS              `yaml:"cors"`
	RateLimit RateLimit         `yaml:"rate_limit"`
	Headers   map[string]string `yaml:"headers"`
}

// CORS configures cross-origin resource sharing headers.
type CORS struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
}

// RateLimit configures the fixed-window per-IP limiter.
type RateLimit struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
}

// Obs configures observability: log level and the optional metrics listener.
type Obs struct {
	Level       string `yaml:"level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is present. These
// values match the documented defaults: plain HTTP on 0.0.0.0:8080 serving
// the current directory.
func Default() Config {
	return Config{
		Server: Server{
			Host:  "0.0.0.0",
			Port:  8080,
			Root:  ".",
			Index: "index.html",
		},
		SPA: SPA{
			Fallback: "index.html",
		},
		Assets: Assets{
			Cache: Cache{
				MaxAge: Duration(time.Hour),
				ETag:   true,
			},
		},
		Compression: Compression{
			Gzip: true,
			Br:   true,
		},
		Security: Security{
			RateLimit: RateLimit{
				RequestsPerMin: 60,
			},
		},
		Obs: Obs{
			Level: "info",
		},
	}
}

// Load reads the YAML configuration at path. A missing file is not an error:
// the built-in defaults are returned with a warning. A file that exists but
// cannot be parsed fails fast.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("could not read config file, falling back to built-in defaults",
			"path", path,
			"error", err,
		)
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing yaml %s: %w", path, err)
	}

	cfg.normalize()
	slog.Info("loaded configuration", "path", path)

	return cfg, nil
}

// normalize repairs values that would otherwise need checking on the request
// path.
func (c *Config) normalize() {
	if c.Server.Root == "" {
		c.Server.Root = "."
	}

	if c.Server.Index == "" {
		c.Server.Index = "index.html"
	}

	if c.SPA.Fallback == "" {
		c.SPA.Fallback = "index.html"
	}

	if c.Security.RateLimit.RequestsPerMin < 1 {
		c.Security.RateLimit.RequestsPerMin = 1
	}

	if c.Obs.Level == "" {
		c.Obs.Level = "info"
	}
}

// Validate checks the parts of the configuration that must fail at startup
// rather than at request time.
func (c *Config) Validate() error {
	if c.TLS.Enabled {
		if c.TLS.CertPath == "" || c.TLS.KeyPath == "" {
			return ErrTLSIncomplete
		}

		for _, p := range []string{c.TLS.CertPath, c.TLS.KeyPath} {
			info, err := os.Stat(p)
			if err != nil || !info.Mode().IsRegular() {
				return fmt.Errorf("%w: %q", ErrTLSFileMissing, p)
			}
		}
	}

	for _, route := range c.Routing {
		if route.Proxy == nil {
			continue
		}

		u, err := url.Parse(route.Proxy.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: route %q: %q", ErrInvalidProxyURL, route.Path, route.Proxy.URL)
		}
	}

	return nil
}

// LogSummary writes a startup summary of the effective configuration.
func (c *Config) LogSummary() {
	slog.Info("server",
		"host", c.Server.Host,
		"port", c.Server.Port,
		"root", c.Server.Root,
		"index", c.Server.Index,
		"auto_index", c.Server.AutoIndex,
		"tls", c.TLS.Enabled,
	)

	if len(c.Routing) == 0 {
		slog.Info("routes: default (serve static at /)")
	} else {
		for _, route := range c.Routing {
			switch {
			case route.Serve == "static":
				slog.Info("route", "path", route.Path, "serve", route.Serve)
			case route.Proxy != nil:
				slog.Info("route", "path", route.Path, "proxy", route.Proxy.URL)
			}
		}
	}

	if c.SPA.Enabled {
		slog.Info("spa enabled", "fallback", c.SPA.Fallback)
	}

	if c.Compression.Enable {
		slog.Info("compression enabled", "gzip", c.Compression.Gzip, "br", c.Compression.Br)
	}

	if c.Security.CORS.Enabled {
		slog.Info("cors enabled",
			"origins", len(c.Security.CORS.AllowedOrigins),
			"methods", len(c.Security.CORS.AllowedMethods),
		)
	}

	if c.Security.RateLimit.Enabled {
		slog.Info("rate limit enabled", "requests_per_min", c.Security.RateLimit.RequestsPerMin)
	}

	if len(c.Security.Headers) > 0 {
		slog.Info("security headers configured", "count", len(c.Security.Headers))
	}

	if c.Assets.Cache.Enabled {
		slog.Info("asset cache enabled", "max_age", c.Assets.Cache.MaxAge.Std().String())
	}

	slog.Info("observability", "level", c.Obs.Level, "metrics_addr", c.Obs.MetricsAddr)
}
