package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/everstacklabs/modelprice/internal/metadata"
)

// Config holds all configuration for modelprice.
type Config struct {
	LogLevel   string           `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	CacheDir   string           `mapstructure:"cache_dir"`
	CacheTTL   string           `mapstructure:"cache_ttl"`
	NoCache    bool             `mapstructure:"no_cache"`
	Providers  []string         `mapstructure:"providers" validate:"dive,required"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Server     ServerConfig     `mapstructure:"server"`
	Publish    PublishConfig    `mapstructure:"publish"`
	GitHub     GitHubConfig     `mapstructure:"github"`
}

// StorageConfig selects the database backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=json sqlite"`
	Path   string `mapstructure:"path" validate:"required"`
}

// MetadataConfig configures the enrichment tiers.
type MetadataConfig struct {
	StaticPath          string   `mapstructure:"static_path"`
	OverridesPath       string   `mapstructure:"overrides_path" validate:"required"`
	CatalogURL          string   `mapstructure:"catalog_url" validate:"omitempty,url"`
	CatalogTimeout      string   `mapstructure:"catalog_timeout"`
	Watch               bool     `mapstructure:"watch"`
	OpenSourcePatterns  []string `mapstructure:"open_source_patterns"`
	ProprietaryPatterns []string `mapstructure:"proprietary_patterns"`
	MinFuzzyScore       float64  `mapstructure:"min_fuzzy_score" validate:"gte=0"`
}

// HTTPConfig tunes the shared upstream HTTP client.
type HTTPConfig struct {
	Timeout   string  `mapstructure:"timeout"`
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	Retries   int     `mapstructure:"retries" validate:"gte=0,lte=10"`
	UserAgent string  `mapstructure:"user_agent"`
}

// FetchConfig tunes the fetch orchestrator.
type FetchConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"gte=0"`
	// TrackDisplayName reports display-name edits as updates.
	TrackDisplayName bool `mapstructure:"track_display_name"`
}

// OpenRouterConfig holds OpenRouter-specific settings. Empty URLs select
// the adapter's built-in default.
type OpenRouterConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	PricingURL string `mapstructure:"pricing_url" validate:"omitempty,url"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	PricingURL string `mapstructure:"pricing_url" validate:"omitempty,url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// PublishConfig configures committing refreshed data to a git repo.
type PublishConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	RepoPath   string `mapstructure:"repo_path" validate:"required_if=Enabled true"`
	BaseBranch string `mapstructure:"base_branch"`
}

// GitHubConfig holds GitHub-related settings.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
	Owner string `mapstructure:"owner" validate:"required_with=Token"`
	Repo  string `mapstructure:"repo" validate:"required_with=Token"`
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("no_cache", false)
	v.SetDefault("providers", []string{"openrouter", "openai", "google_gemini", "xai"})
	v.SetDefault("storage.driver", "json")
	v.SetDefault("storage.path", "data/models.json")
	v.SetDefault("metadata.static_path", "data/static_metadata.yaml")
	v.SetDefault("metadata.overrides_path", "data/overrides.json")
	v.SetDefault("metadata.catalog_url", metadata.DefaultCatalogURL)
	v.SetDefault("metadata.catalog_timeout", "30s")
	v.SetDefault("metadata.watch", false)
	v.SetDefault("metadata.min_fuzzy_score", 0)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.rate_limit", 2)
	v.SetDefault("http.retries", 2)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("fetch.concurrency", 0)
	v.SetDefault("fetch.track_display_name", false)
	v.SetDefault("openrouter.base_url", "")
	v.SetDefault("openai.pricing_url", "")
	v.SetDefault("gemini.pricing_url", "")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.repo_path", "")
	v.SetDefault("publish.base_branch", "main")
	v.SetDefault("github.token", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/modelprice")
	}

	// Environment variables
	v.SetEnvPrefix("MODELPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and duration strings.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for key, raw := range map[string]string{
		"cache_ttl":                c.CacheTTL,
		"metadata.catalog_timeout": c.Metadata.CatalogTimeout,
		"http.timeout":             c.HTTP.Timeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", key, err)
		}
	}
	return nil
}

// Rules returns the matching rules, with configured pattern lists and
// threshold replacing the built-in ones.
func (c *Config) Rules() metadata.Rules {
	r := metadata.Rules{
		OpenSourcePatterns:  c.Metadata.OpenSourcePatterns,
		ProprietaryPatterns: c.Metadata.ProprietaryPatterns,
		MinFuzzyScore:       c.Metadata.MinFuzzyScore,
	}
	return r.WithDefaults()
}

// Duration parses a duration string, returning fallback when it is empty
// or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "modelprice-cache")
	}
	return filepath.Join(home, ".cache", "modelprice")
}
