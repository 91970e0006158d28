// Package config loads pricecli settings from an optional pricecli.yaml,
// PRICECLI_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"github.com/tayloree/pricecli/internal/catalog"
)

// EnvPrefix is prepended to every environment override, e.g.
// PRICECLI_API_BASE_URL.
const EnvPrefix = "PRICECLI"

// Config holds all configuration for the CLI
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Log       LogConfig       `mapstructure:"log"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Search    SearchConfig    `mapstructure:"search"`
	Stores    []string        `mapstructure:"stores"`
	Cart      CartConfig      `mapstructure:"cart"`
}

// APIConfig points at the scraping backend
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DiscoveryConfig controls product URL discovery from store roots
type DiscoveryConfig struct {
	MaxURLs           int      `mapstructure:"max_urls"`
	MaxConcurrency    int      `mapstructure:"max_concurrency"`
	ParallelSources   int      `mapstructure:"parallel_sources"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	IncludePatterns   []string `mapstructure:"include_patterns"`
}

// ScrapeConfig holds scrape request settings
type ScrapeConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// SearchConfig holds search crawl settings
type SearchConfig struct {
	URLTemplate string  `mapstructure:"url_template"`
	MaxPages    int     `mapstructure:"max_pages"`
	MaxURLs     int     `mapstructure:"max_urls"`
	Temperature float64 `mapstructure:"temperature"`
}

// CartConfig holds cart synchronization settings
type CartConfig struct {
	RefreshAttempts uint `mapstructure:"refresh_attempts"`
}

// DefaultStores are scraped when no URL is given.
var DefaultStores = []string{
	"https://www.kabum.com.br/",
	"https://www.pichau.com.br/",
	"https://www.terabyteshop.com.br/",
	"https://lista.mercadolivre.com.br/pecas-de-computadores",
	"https://www.popshopinformatica.com.br/pecas-para-computador",
	"https://www.netalfa.com.br/hardware",
	"https://www.brazilpc.com.br/",
	"https://www.loja.gsiinformatica.com.br/pecas",
}

// New returns a viper instance with search paths, env binding and defaults
// set. Callers may bind flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("pricecli")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pricecli"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// Load reads the optional config file and decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "120s")

	v.SetDefault("log.level", "warn")

	v.SetDefault("discovery.max_urls", 500)
	v.SetDefault("discovery.max_concurrency", 10)
	v.SetDefault("discovery.parallel_sources", 4)
	v.SetDefault("discovery.requests_per_second", 2.0)
	v.SetDefault("discovery.include_patterns", []string{})

	v.SetDefault("scrape.max_concurrency", 20)

	v.SetDefault("search.url_template", "https://www.kabum.com.br/busca/{term}")
	v.SetDefault("search.max_pages", 3)
	v.SetDefault("search.max_urls", 40)
	v.SetDefault("search.temperature", 0.3)

	v.SetDefault("stores", DefaultStores)

	v.SetDefault("cart.refresh_attempts", 1)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return fmt.Errorf("api base URL is required (set %s_API_BASE_URL)", EnvPrefix)
	}
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got: %s", cfg.API.Timeout)
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log level %q is not one of debug, info, warn, error, fatal", cfg.Log.Level)
	}
	if cfg.Discovery.MaxURLs < 1 || cfg.Discovery.MaxConcurrency < 1 || cfg.Discovery.ParallelSources < 1 {
		return fmt.Errorf("discovery limits must be at least 1")
	}
	if cfg.Discovery.RequestsPerSecond < 0 {
		return fmt.Errorf("discovery requests_per_second must not be negative, got: %v", cfg.Discovery.RequestsPerSecond)
	}
	if cfg.Scrape.MaxConcurrency < 1 {
		return fmt.Errorf("scrape max_concurrency must be at least 1, got: %d", cfg.Scrape.MaxConcurrency)
	}
	if !strings.Contains(cfg.Search.URLTemplate, "{term}") {
		return fmt.Errorf("search url_template must contain {term}, got: %s", cfg.Search.URLTemplate)
	}
	if cfg.Search.MaxPages < 1 || cfg.Search.MaxURLs < 1 {
		return fmt.Errorf("search max_pages and max_urls must be at least 1")
	}
	if cfg.Search.Temperature < 0 || cfg.Search.Temperature > 1 {
		return fmt.Errorf("search temperature must be within [0, 1], got: %v", cfg.Search.Temperature)
	}
	if cfg.Cart.RefreshAttempts < 1 {
		return fmt.Errorf("cart refresh_attempts must be at least 1")
	}
	return nil
}

// Catalog converts the discovery, scrape and search sections for the
// catalog service.
func (c *Config) Catalog() catalog.Config {
	return catalog.Config{
		MaxURLs:           c.Discovery.MaxURLs,
		MaxConcurrency:    c.Discovery.MaxConcurrency,
		ParallelSources:   c.Discovery.ParallelSources,
		RequestsPerSecond: c.Discovery.RequestsPerSecond,
		IncludePatterns:   c.Discovery.IncludePatterns,
		ScrapeConcurrency: c.Scrape.MaxConcurrency,
		SearchURLTemplate: c.Search.URLTemplate,
		SearchMaxPages:    c.Search.MaxPages,
		SearchMaxURLs:     c.Search.MaxURLs,
		SearchTemperature: c.Search.Temperature,
	}
}

