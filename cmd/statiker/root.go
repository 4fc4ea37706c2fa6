package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-arndt/statiker/config"
	"github.com/p-arndt/statiker/middleware"
	"github.com/p-arndt/statiker/router"
	"github.com/p-arndt/statiker/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "statiker",
	Short:   "A simple, efficient static file hosting server with proxy support",
	Version: Version,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return run(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (default \"statiker.yaml\", env CONFIG)")
}

// configPath resolves the config file location: flag, then CONFIG env, then
// the default name in the working directory.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}

	if env := os.Getenv("CONFIG"); env != "" {
		return env
	}

	return "statiker.yaml"
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}

	setupLogging(cfg.Obs.Level)

	if err := cfg.Validate(); err != nil {
		return err
	}

	cfg.LogSummary()

	handler, metrics, err := buildPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	return server.New(cfg, handler, metrics.Handler()).Run(cmd.Context())
}

// buildPipeline assembles the route table and the policy chain. Request-time
// layer order, outermost first: recovery, request ID, metrics, security
// headers, asset cache-control, compression, CORS, rate limit, dispatcher.
// The rate limiter sits directly around the dispatcher so a rejected request
// never touches the filesystem or a backend, while its 429 still carries the
// security headers; CORS preflights short-circuit before the dispatcher.
func buildPipeline(ctx context.Context, cfg config.Config) (http.Handler, *middleware.Metrics, error) {
	table, err := router.Build(cfg)
	if err != nil {
		return nil, nil, err
	}

	metrics := middleware.NewMetrics()

	chain := []middleware.Middleware{
		middleware.RecoveryMiddleware(),
		middleware.RequestIDMiddleware(),
		metrics.Middleware(),
	}

	if len(cfg.Security.Headers) > 0 {
		chain = append(chain, middleware.SecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
			Headers: cfg.Security.Headers,
		}))
	}

	if cfg.Assets.Cache.Enabled {
		cc, err := middleware.CacheControlMiddleware(middleware.CacheControlConfig{
			MaxAge: cfg.Assets.Cache.MaxAge.Std(),
		})
		if err != nil {
			return nil, nil, err
		}

		chain = append(chain, cc)
	}

	if cfg.Compression.Enable && (cfg.Compression.Gzip || cfg.Compression.Br) {
		cm, err := middleware.CompressionMiddleware(middleware.CompressionConfig{
			Gzip:   cfg.Compression.Gzip,
			Brotli: cfg.Compression.Br,
		})
		if err != nil {
			return nil, nil, err
		}

		chain = append(chain, cm)
	}

	if cfg.Security.CORS.Enabled {
		chain = append(chain, middleware.CORSMiddleware(middleware.CORSConfig{
			AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
			AllowedMethods: cfg.Security.CORS.AllowedMethods,
		}))
	}

	if cfg.Security.RateLimit.Enabled {
		rl, err := middleware.RateLimitMiddleware(ctx, middleware.RateLimitConfig{
			RequestsPerMin: cfg.Security.RateLimit.RequestsPerMin,
			Rejections:     metrics.RateLimitRejections,
		})
		if err != nil {
			return nil, nil, err
		}

		chain = append(chain, rl)
	}

	return middleware.Chain(table, chain...), metrics, nil
}

// setupLogging installs the default slog handler at the configured level.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
}
