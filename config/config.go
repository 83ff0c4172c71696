package config

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Site struct {
		URL string `yaml:"url"`
	} `yaml:"site"`
	TradeSafe struct {
		APIURL       string `yaml:"api_url"`
		AuthURL      string `yaml:"auth_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Production   bool   `yaml:"production"`
	} `yaml:"tradesafe"`
	Gateway struct {
		Enabled             bool     `yaml:"enabled"`
		Currencies          []string `yaml:"currencies"`
		MarketplaceSplit    bool     `yaml:"marketplace_split"`
		Industry            string   `yaml:"industry"`
		FeeAllocation       string   `yaml:"fee_allocation"`
		DefaultPayoutMethod string   `yaml:"default_payout_method"`
	} `yaml:"gateway"`
	Nonce struct {
		Secret string `yaml:"secret"`
	} `yaml:"nonce"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Site.URL == "" {
		return nil, errors.New("site.url is required")
	}
	return &cfg, nil
}

// HasCredentials reports whether a client id/secret pair is configured.
// Missing credentials make the gateway unavailable rather than failing boot.
func (c *Config) HasCredentials() bool {
	return c.TradeSafe.ClientID != "" && c.TradeSafe.ClientSecret != ""
}

// CurrencySupported reports whether the storefront currency can be traded
// through the escrow service.
func (c *Config) CurrencySupported(currency string) bool {
	for _, cur := range c.Gateway.Currencies {
		if strings.EqualFold(cur, currency) {
			return true
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if len(cfg.Gateway.Currencies) == 0 {
		cfg.Gateway.Currencies = []string{"ZAR"}
	}
	if cfg.TradeSafe.APIURL == "" {
		cfg.TradeSafe.APIURL = "https://api.tradesafe.co.za"
	}
	if cfg.TradeSafe.AuthURL == "" {
		cfg.TradeSafe.AuthURL = "https://auth.tradesafe.co.za"
	}
	if cfg.Gateway.DefaultPayoutMethod == "" {
		cfg.Gateway.DefaultPayoutMethod = "WEEKLY"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("SITE_URL"); v != "" {
		cfg.Site.URL = v
	}
	if v := os.Getenv("TRADESAFE_API_URL"); v != "" {
		cfg.TradeSafe.APIURL = v
	}
	if v := os.Getenv("TRADESAFE_AUTH_URL"); v != "" {
		cfg.TradeSafe.AuthURL = v
	}
	if v := os.Getenv("TRADESAFE_CLIENT_ID"); v != "" {
		cfg.TradeSafe.ClientID = v
	}
	if v := os.Getenv("TRADESAFE_CLIENT_SECRET"); v != "" {
		cfg.TradeSafe.ClientSecret = v
	}
	if v := os.Getenv("TRADESAFE_PRODUCTION"); v != "" {
		cfg.TradeSafe.Production = boolOr(cfg.TradeSafe.Production, v)
	}
	if v := os.Getenv("GATEWAY_ENABLED"); v != "" {
		cfg.Gateway.Enabled = boolOr(cfg.Gateway.Enabled, v)
	}
	if v := os.Getenv("GATEWAY_CURRENCIES"); v != "" {
		cfg.Gateway.Currencies = splitCommaList(v)
	}
	if v := os.Getenv("GATEWAY_MARKETPLACE_SPLIT"); v != "" {
		cfg.Gateway.MarketplaceSplit = boolOr(cfg.Gateway.MarketplaceSplit, v)
	}
	if v := os.Getenv("GATEWAY_INDUSTRY"); v != "" {
		cfg.Gateway.Industry = v
	}
	if v := os.Getenv("GATEWAY_FEE_ALLOCATION"); v != "" {
		cfg.Gateway.FeeAllocation = v
	}
	if v := os.Getenv("NONCE_SECRET"); v != "" {
		cfg.Nonce.Secret = v
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func boolOr(fallback bool, v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
