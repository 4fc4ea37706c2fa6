package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ".", cfg.Server.Root)
	assert.Equal(t, "index.html", cfg.Server.Index)
	assert.False(t, cfg.Server.AutoIndex)
	assert.False(t, cfg.TLS.Enabled)
	assert.Empty(t, cfg.Routing)
	assert.False(t, cfg.SPA.Enabled)
	assert.Equal(t, "index.html", cfg.SPA.Fallback)
	assert.False(t, cfg.Assets.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Assets.Cache.MaxAge.Std())
	assert.True(t, cfg.Assets.Cache.ETag)
	assert.False(t, cfg.Compression.Enable)
	assert.True(t, cfg.Compression.Gzip)
	assert.True(t, cfg.Compression.Br)
	assert.False(t, cfg.Security.CORS.Enabled)
	assert.False(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.Security.RateLimit.RequestsPerMin)
	assert.Equal(t, "info", cfg.Obs.Level)
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("invalid yaml fails fast", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("partial file keeps unset defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "statiker.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  auto_index: true
compression:
  enable: true
  br: false
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.True(t, cfg.Server.AutoIndex)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, "index.html", cfg.Server.Index)
		assert.True(t, cfg.Compression.Enable)
		assert.True(t, cfg.Compression.Gzip)
		assert.False(t, cfg.Compression.Br)
	})

	t.Run("full routing config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "statiker.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
routing:
  - path: /api/*
    proxy:
      url: http://127.0.0.1:9000
      timeout: 10s
      add_headers:
        X-Real-IP: "{client_ip}"
  - path: /*
    serve: static
security:
  rate_limit:
    enabled: true
    requests_per_min: 120
  headers:
    X-Frame-Options: DENY
spa:
  enabled: true
  fallback: app.html
assets:
  cache:
    enabled: true
    max_age: 24h
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		require.Len(t, cfg.Routing, 2)
		assert.Equal(t, "/api/*", cfg.Routing[0].Path)
		require.NotNil(t, cfg.Routing[0].Proxy)
		assert.Equal(t, "http://127.0.0.1:9000", cfg.Routing[0].Proxy.URL)
		assert.Equal(t, 10*time.Second, cfg.Routing[0].Proxy.Timeout.Std())
		assert.Equal(t, "{client_ip}", cfg.Routing[0].Proxy.AddHeaders["X-Real-IP"])
		assert.Equal(t, "static", cfg.Routing[1].Serve)

		assert.True(t, cfg.Security.RateLimit.Enabled)
		assert.Equal(t, 120, cfg.Security.RateLimit.RequestsPerMin)
		assert.Equal(t, "DENY", cfg.Security.Headers["X-Frame-Options"])
		assert.True(t, cfg.SPA.Enabled)
		assert.Equal(t, "app.html", cfg.SPA.Fallback)
		assert.True(t, cfg.Assets.Cache.Enabled)
		assert.Equal(t, 24*time.Hour, cfg.Assets.Cache.MaxAge.Std())
	})

	t.Run("invalid duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "statiker.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
routing:
  - path: /api/*
    proxy:
      url: http://127.0.0.1:9000
      timeout: soon
`), 0o644))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidDuration)
	})

	t.Run("rate limit clamped to one", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "statiker.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
security:
  rate_limit:
    enabled: true
    requests_per_min: 0
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Security.RateLimit.RequestsPerMin)
	})
}

func TestValidate(t *testing.T) {
	t.Run("defaults pass", func(t *testing.T) {
		cfg := Default()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("tls enabled without paths", func(t *testing.T) {
		cfg := Default()
		cfg.TLS.Enabled = true

		assert.ErrorIs(t, cfg.Validate(), ErrTLSIncomplete)
	})

	t.Run("tls enabled with missing files", func(t *testing.T) {
		cfg := Default()
		cfg.TLS.Enabled = true
		cfg.TLS.CertPath = filepath.Join(t.TempDir(), "cert.pem")
		cfg.TLS.KeyPath = filepath.Join(t.TempDir(), "key.pem")

		assert.ErrorIs(t, cfg.Validate(), ErrTLSFileMissing)
	})

	t.Run("tls enabled with existing files", func(t *testing.T) {
		dir := t.TempDir()
		cert := filepath.Join(dir, "cert.pem")
		key := filepath.Join(dir, "key.pem")
		require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o644))
		require.NoError(t, os.WriteFile(key, []byte("key"), 0o600))

		cfg := Default()
		cfg.TLS.Enabled = true
		cfg.TLS.CertPath = cert
		cfg.TLS.KeyPath = key

		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid proxy url", func(t *testing.T) {
		cfg := Default()
		cfg.Routing = []Route{
			{Path: "/api/*", Proxy: &Proxy{URL: "not a url"}},
		}

		assert.ErrorIs(t, cfg.Validate(), ErrInvalidProxyURL)
	})
}

func TestDurationYAML(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		d := Duration(90 * time.Second)

		out, err := d.MarshalYAML()
		require.NoError(t, err)
		assert.Equal(t, "1m30s", out)
	})
}
