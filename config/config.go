// Package config loads runtime settings from a yaml file or CLI flags.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Defaults used when a setting is absent from both the config file and flags.
const (
	DefaultListenAddr      = ":8080"
	DefaultDataDir         = "./data"
	DefaultMarket          = "us"
	DefaultQuoteAPIURL     = "http://localhost:5000"
	DefaultRefreshInterval = 5 * time.Second
)

// Config is the resolved runtime configuration.
type Config struct {
	ListenAddr      string
	DataDir         string
	Market          string
	QuoteAPIURL     string
	FeedURL         string
	RefreshInterval time.Duration
	StartingBalance decimal.Decimal // zero means keep the built-in seed
}

type ConfigTmp struct {
	ListenAddr      string        `yaml:"listen_addr,omitempty"`
	DataDir         string        `yaml:"data_dir,omitempty"`
	Market          string        `yaml:"market,omitempty"`
	QuoteAPIURL     string        `yaml:"quote_api_url,omitempty"`
	FeedURL         string        `yaml:"feed_url,omitempty"`
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
	StartingBalance string        `yaml:"starting_balance,omitempty"`
}

var knownMarkets = map[string]bool{"us": true, "in": true, "uk": true, "jp": true}

// Get resolves the configuration. A --config flag pointing at a yaml file
// wins; otherwise individual flags with built-in defaults apply.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	listen := flag.String("listen", DefaultListenAddr, "http listen address")
	dataDir := flag.String("datadir", DefaultDataDir, "directory for persisted state")
	market := flag.String("market", DefaultMarket, "market schedule: us, in, uk or jp")
	quoteAPI := flag.String("quoteapi", DefaultQuoteAPIURL, "quote API base URL")
	feedURL := flag.String("feed", "", "websocket tick feed URL, empty disables streaming")
	refresh := flag.Duration("refresh", DefaultRefreshInterval, "quote refresh interval")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		ListenAddr:      *listen,
		DataDir:         *dataDir,
		Market:          *market,
		QuoteAPIURL:     *quoteAPI,
		FeedURL:         *feedURL,
		RefreshInterval: *refresh,
	}
	return cfg, cfg.validate()
}

// FromFile loads a yaml config directly, bypassing flag parsing. The setup
// wizard uses it for the file it just wrote.
func FromFile(path string) (Config, error) {
	return getYaml(path)
}

func getYaml(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(payload, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "parse config yaml")
	}

	cfg := Config{
		ListenAddr:      tmp.ListenAddr,
		DataDir:         tmp.DataDir,
		Market:          tmp.Market,
		QuoteAPIURL:     tmp.QuoteAPIURL,
		FeedURL:         tmp.FeedURL,
		RefreshInterval: tmp.RefreshInterval,
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.Market == "" {
		cfg.Market = DefaultMarket
	}
	if cfg.QuoteAPIURL == "" {
		cfg.QuoteAPIURL = DefaultQuoteAPIURL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	if tmp.StartingBalance != "" {
		balance, err := decimal.NewFromString(tmp.StartingBalance)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid starting_balance %q", tmp.StartingBalance)
		}
		if balance.IsNegative() {
			return Config{}, errors.Errorf("starting_balance %q must not be negative", tmp.StartingBalance)
		}
		cfg.StartingBalance = balance
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if !knownMarkets[c.Market] {
		return errors.Errorf("unknown market %q, expected one of us, in, uk, jp", c.Market)
	}
	if c.QuoteAPIURL == "" {
		return errors.New("quote API base URL is required")
	}
	if c.RefreshInterval <= 0 {
		return errors.Errorf("refresh interval %s must be positive", c.RefreshInterval)
	}
	return nil
}
