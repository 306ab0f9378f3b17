// Package config loads the marketplace configuration: item catalog overrides,
// the shop registry, market tuning, and the seed portfolio.
// Secrets (API keys) come from the environment, never the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/llm"
	"github.com/talgya/electro-bazaar/internal/portfolio"
	"github.com/talgya/electro-bazaar/internal/shop"
)

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Market    MarketConfig    `yaml:"market"`
	LLM       LLMConfig       `yaml:"llm"`
	Catalog   []ItemConfig    `yaml:"catalog"`
	Shops     []ShopConfig    `yaml:"shops"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

// MarketConfig holds market model tuning.
type MarketConfig struct {
	UpdatePeriodSeconds int `yaml:"update_period_seconds"`
	TranscriptCap       int `yaml:"transcript_cap"`
}

// LLMConfig tunes the dialogue fallback. The API key itself stays in the
// environment.
type LLMConfig struct {
	MaxCallsPerMinute int `yaml:"max_calls_per_minute"`
}

// ItemConfig overrides one catalog item's economics. Names must match the
// fixed catalog; the item set itself is closed.
type ItemConfig struct {
	Name       string  `yaml:"name"`
	BasePrice  int     `yaml:"base_price"`
	Volatility float64 `yaml:"volatility"`
}

// ShopConfig defines one shop.
type ShopConfig struct {
	ID           int     `yaml:"id"`
	Name         string  `yaml:"name"`
	Specialty    string  `yaml:"specialty"`
	DiscountRate float64 `yaml:"discount_rate"`
}

// PortfolioConfig defines the seed state for new sessions.
type PortfolioConfig struct {
	Wallet   int             `yaml:"wallet"`
	Holdings []HoldingConfig `yaml:"holdings"`
}

// HoldingConfig seeds one item position.
type HoldingConfig struct {
	Item     string `yaml:"item"`
	Quantity int    `yaml:"quantity"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns the stock configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = "data/bazaar.db"
	}
	if c.Market.UpdatePeriodSeconds == 0 {
		c.Market.UpdatePeriodSeconds = 60
	}
	if c.Market.TranscriptCap == 0 {
		c.Market.TranscriptCap = 50
	}
	if c.LLM.MaxCallsPerMinute == 0 {
		c.LLM.MaxCallsPerMinute = llm.DefaultMaxPerMin
	}
	if c.Portfolio.Wallet == 0 {
		c.Portfolio.Wallet = 1000
	}
}

// Validate checks tuning ranges. Catalog/shop cross-checks happen in Build,
// where the closed item enum is available.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Market.UpdatePeriodSeconds < 1 {
		return fmt.Errorf("update period must be positive, got %d", c.Market.UpdatePeriodSeconds)
	}
	if c.Market.TranscriptCap < 1 {
		return fmt.Errorf("transcript cap must be positive, got %d", c.Market.TranscriptCap)
	}
	if c.LLM.MaxCallsPerMinute < 1 {
		return fmt.Errorf("llm call budget must be positive, got %d", c.LLM.MaxCallsPerMinute)
	}
	if c.Portfolio.Wallet < 0 {
		return fmt.Errorf("seed wallet must be non-negative, got %d", c.Portfolio.Wallet)
	}
	for _, h := range c.Portfolio.Holdings {
		if h.Quantity < 0 {
			return fmt.Errorf("seed holding %q: negative quantity %d", h.Item, h.Quantity)
		}
	}
	return nil
}

// UpdatePeriod returns the market refresh interval.
func (c *Config) UpdatePeriod() time.Duration {
	return time.Duration(c.Market.UpdatePeriodSeconds) * time.Second
}

// BuildCatalog merges config overrides onto the stock catalog. Unknown item
// names are an error; the catalog is a closed set.
func (c *Config) BuildCatalog() (*catalog.Catalog, error) {
	items := catalog.Default().Items()
	byType := make(map[catalog.ItemType]*catalog.Item, len(items))
	for i := range items {
		byType[items[i].Type] = &items[i]
	}

	base := catalog.Default()
	for _, override := range c.Catalog {
		t, ok := base.Lookup(override.Name)
		if !ok {
			return nil, fmt.Errorf("catalog override %q: not a known item", override.Name)
		}
		it := byType[t]
		if override.BasePrice != 0 {
			it.BasePrice = override.BasePrice
		}
		if override.Volatility != 0 {
			it.Volatility = override.Volatility
		}
	}

	return catalog.New(items)
}

// BuildShops resolves specialty item names against the catalog and returns
// the shop registry. An empty shop list yields the stock three shops.
func (c *Config) BuildShops(cat *catalog.Catalog) (*shop.Registry, error) {
	if len(c.Shops) == 0 {
		return shop.Default(), nil
	}

	shops := make([]shop.Shop, 0, len(c.Shops))
	for _, sc := range c.Shops {
		specialty, ok := cat.Lookup(sc.Specialty)
		if !ok {
			return nil, fmt.Errorf("shop %q: unknown specialty item %q", sc.Name, sc.Specialty)
		}
		shops = append(shops, shop.Shop{
			ID:           shop.ID(sc.ID),
			Name:         sc.Name,
			Specialty:    specialty,
			DiscountRate: sc.DiscountRate,
		})
	}
	return shop.New(shops)
}

// BuildSeed resolves the seed portfolio. An empty holdings list yields the
// stock five-lot kit; an explicit list replaces it entirely.
func (c *Config) BuildSeed(cat *catalog.Catalog) (portfolio.Seed, error) {
	seed := portfolio.DefaultSeed()
	seed.Wallet = c.Portfolio.Wallet

	if len(c.Portfolio.Holdings) == 0 {
		return seed, nil
	}

	seed.Holdings = [catalog.NumItems]portfolio.Holding{}
	for _, h := range c.Portfolio.Holdings {
		t, ok := cat.Lookup(h.Item)
		if !ok {
			return portfolio.Seed{}, fmt.Errorf("seed holding %q: not a known item", h.Item)
		}
		seed.Holdings[t] = portfolio.Holding{
			Quantity:    h.Quantity,
			AvgBuyPrice: float64(cat.Get(t).BasePrice),
		}
	}
	return seed, nil
}
