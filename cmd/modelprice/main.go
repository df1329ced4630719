package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/adapter/providers/gemini"
	"github.com/everstacklabs/modelprice/internal/adapter/providers/openai"
	"github.com/everstacklabs/modelprice/internal/adapter/providers/openrouter"
	"github.com/everstacklabs/modelprice/internal/adapter/providers/xai"
	"github.com/everstacklabs/modelprice/internal/cache"
	"github.com/everstacklabs/modelprice/internal/config"
	"github.com/everstacklabs/modelprice/internal/diff"
	"github.com/everstacklabs/modelprice/internal/httpclient"
	"github.com/everstacklabs/modelprice/internal/metadata"
	"github.com/everstacklabs/modelprice/internal/pipeline"
	"github.com/everstacklabs/modelprice/internal/storage"
)

var cfgFile string

// Cache entries this many TTLs old are no longer useful for revalidation.
const staleCacheFactor = 24

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelprice",
		Short: "LLM pricing aggregator",
		Long:  "Fetches model pricing from provider sources, enriches it with metadata, and serves the merged database.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A broken config is reported by the command itself.
			level := "info"
			if cfg, err := config.Load(cfgFile); err == nil {
				level = cfg.LogLevel
			}
			setupLogging(level)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		refreshCmd(),
		fetchCmd(),
		listCmd(),
		statsCmd(),
		providersCmd(),
		overrideCmd(),
		validateCmd(),
		serveCmd(),
		schemaCmd(),
		publishCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// app bundles everything a command needs, built from config.
type app struct {
	cfg       *config.Config
	client    *httpclient.Client
	registry  *adapter.Registry
	store     storage.Store
	static    *metadata.StaticStore
	overrides *metadata.OverrideStore
	enricher  *metadata.Enricher
	pipeline  *pipeline.Pipeline
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	fc := openCache(cfg)
	a := &app{cfg: cfg, client: newHTTPClient(cfg, fc)}

	a.registry, err = buildRegistry(cfg, a.client)
	if err != nil {
		return nil, err
	}

	a.store, err = storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	a.static = metadata.NewStaticStore(cfg.Metadata.StaticPath)
	a.overrides = metadata.NewOverrideStore(cfg.Metadata.OverridesPath)
	a.enricher = metadata.NewEnricher(a.static, newCatalog(cfg, fc), a.overrides, cfg.Rules())

	opts := pipeline.Options{
		Concurrency: cfg.Fetch.Concurrency,
		Diff:        diff.Options{TrackDisplayName: cfg.Fetch.TrackDisplayName},
	}
	if cfg.Publish.Enabled {
		opts.Publisher = newPublisher(ctx, cfg)
	}
	a.pipeline = pipeline.New(a.registry, a.store, a.enricher, a.overrides, opts)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}

// openCache returns the response cache, or nil when it is disabled or
// cannot be created.
func openCache(cfg *config.Config) *cache.FileCache {
	if cfg.NoCache {
		return nil
	}
	ttl := config.Duration(cfg.CacheTTL, time.Hour)
	fc, err := cache.New(cfg.CacheDir, ttl)
	if err != nil {
		slog.Warn("failed to create cache, continuing without", "error", err)
		return nil
	}
	if _, err := fc.Prune(staleCacheFactor * ttl); err != nil {
		slog.Warn("pruning cache failed", "error", err)
	}
	return fc
}

func newHTTPClient(cfg *config.Config, fc *cache.FileCache, extra ...httpclient.Option) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithTimeout(config.Duration(cfg.HTTP.Timeout, 30*time.Second)),
		httpclient.WithRetries(cfg.HTTP.Retries),
	}
	if cfg.HTTP.RateLimit > 0 {
		opts = append(opts, httpclient.WithRateLimit(cfg.HTTP.RateLimit))
	}
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, httpclient.WithUserAgent(cfg.HTTP.UserAgent))
	}
	if fc != nil {
		opts = append(opts, httpclient.WithCache(fc))
	}
	if cfg.NoCache {
		opts = append(opts, httpclient.WithNoCache())
	}
	return httpclient.New(append(opts, extra...)...)
}

// newCatalog builds the external metadata catalog. Its client never
// retries; http.retries applies to provider fetches only.
func newCatalog(cfg *config.Config, fc *cache.FileCache) *metadata.Catalog {
	client := newHTTPClient(cfg, fc, httpclient.WithRetries(0))
	return metadata.NewCatalog(client, cfg.Metadata.CatalogURL,
		config.Duration(cfg.Metadata.CatalogTimeout, 30*time.Second))
}

func buildRegistry(cfg *config.Config, client *httpclient.Client) (*adapter.Registry, error) {
	constructors := map[string]func() adapter.Adapter{
		"openai":        func() adapter.Adapter { return openai.New(client, cfg.OpenAI.PricingURL) },
		"openrouter":    func() adapter.Adapter { return openrouter.New(client, cfg.OpenRouter.BaseURL) },
		"google_gemini": func() adapter.Adapter { return gemini.New(client, cfg.Gemini.PricingURL) },
		"xai":           func() adapter.Adapter { return xai.New() },
	}

	registry := adapter.NewRegistry()
	for _, name := range cfg.Providers {
		build, ok := constructors[name]
		if !ok {
			return nil, &adapter.UnknownSourceError{Name: name}
		}
		registry.Register(build())
	}
	return registry, nil
}

func newPublisher(ctx context.Context, cfg *config.Config) *pipeline.GitPublisher {
	return pipeline.NewGitPublisher(ctx, pipeline.GitPublisherConfig{
		RepoPath:   cfg.Publish.RepoPath,
		DBPath:     cfg.Storage.Path,
		Token:      cfg.GitHub.Token,
		Owner:      cfg.GitHub.Owner,
		Repo:       cfg.GitHub.Repo,
		BaseBranch: cfg.Publish.BaseBranch,
	})
}
