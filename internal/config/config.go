package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		// Empty DSN runs the service on the in-memory store.
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Panel struct {
		BaseURL  string `yaml:"base_url"`
		APIToken string `yaml:"api_token"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		LoginURL string `yaml:"login_url"`
	} `yaml:"panel"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		Sandbox  struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"sandbox"`
	} `yaml:"smtp"`
	Deploy struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		// Wall-clock limit per file-transfer operation, in seconds.
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		SiteDir        string `yaml:"site_dir"`
	} `yaml:"deploy"`
	Orders struct {
		PaymentURLBase string `yaml:"payment_url_base"`
		Currency       string `yaml:"currency"`
		DataDir        string `yaml:"data_dir"`
	} `yaml:"orders"`
	Processors []string `yaml:"processors"`
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
	if cfg.Panel.BaseURL == "" {
		return nil, errors.New("panel.base_url is required")
	}
	if cfg.Panel.APIToken == "" && (cfg.Panel.Username == "" || cfg.Panel.Password == "") {
		return nil, errors.New("panel auth is incomplete: set api_token or username+password")
	}
	if cfg.Deploy.Enabled && cfg.Deploy.Host == "" {
		return nil, errors.New("deploy.host is required when deploy is enabled")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Deploy.Port == 0 {
		cfg.Deploy.Port = 22
	}
	if cfg.Deploy.TimeoutSeconds == 0 {
		cfg.Deploy.TimeoutSeconds = 30
	}
	if cfg.Orders.Currency == "" {
		cfg.Orders.Currency = "ARS"
	}
	if len(cfg.Processors) == 0 {
		cfg.Processors = []string{"mercadopago", "stripe"}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("PANEL_BASE_URL"); v != "" {
		cfg.Panel.BaseURL = v
	}
	if v := os.Getenv("PANEL_API_TOKEN"); v != "" {
		cfg.Panel.APIToken = v
	}
	if v := os.Getenv("PANEL_USERNAME"); v != "" {
		cfg.Panel.Username = v
	}
	if v := os.Getenv("PANEL_PASSWORD"); v != "" {
		cfg.Panel.Password = v
	}
	if v := os.Getenv("PANEL_LOGIN_URL"); v != "" {
		cfg.Panel.LoginURL = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		cfg.SMTP.Port = atoiOr(cfg.SMTP.Port, v)
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.SMTP.From = v
	}
	if v := os.Getenv("DEPLOY_ENABLED"); v != "" {
		cfg.Deploy.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("DEPLOY_HOST"); v != "" {
		cfg.Deploy.Host = v
	}
	if v := os.Getenv("DEPLOY_PORT"); v != "" {
		cfg.Deploy.Port = atoiOr(cfg.Deploy.Port, v)
	}
	if v := os.Getenv("DEPLOY_TIMEOUT_SECONDS"); v != "" {
		cfg.Deploy.TimeoutSeconds = atoiOr(cfg.Deploy.TimeoutSeconds, v)
	}
	if v := os.Getenv("DEPLOY_SITE_DIR"); v != "" {
		cfg.Deploy.SiteDir = v
	}
	if v := os.Getenv("PAYMENT_URL_BASE"); v != "" {
		cfg.Orders.PaymentURLBase = v
	}
	if v := os.Getenv("ORDER_CURRENCY"); v != "" {
		cfg.Orders.Currency = v
	}
	if v := os.Getenv("ORDER_DATA_DIR"); v != "" {
		cfg.Orders.DataDir = v
	}
	if v := os.Getenv("PROCESSORS"); v != "" {
		cfg.Processors = splitCommaList(v)
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

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
