package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SpotSentinel/internal/strategy"
)

// Config holds all application configuration. It is read once at startup
// and not modified afterwards.
type Config struct {
	Exchange struct {
		APIKey            string        `yaml:"api_key"`
		APISecret         string        `yaml:"api_secret"`
		BaseURL           string        `yaml:"base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		MaxAttempts       int           `yaml:"max_attempts"`
		BackoffMin        time.Duration `yaml:"backoff_min"`
		BackoffMax        time.Duration `yaml:"backoff_max"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
	} `yaml:"exchange"`
	Trading struct {
		Symbol            string  `yaml:"symbol"`
		BaseAsset         string  `yaml:"base_asset"`
		QuoteAsset        string  `yaml:"quote_asset"`
		KlineInterval     string  `yaml:"kline_interval"`
		KlineLimit        int     `yaml:"kline_limit"`
		EMAPeriod         int     `yaml:"ema_period"`
		RSIPeriod         int     `yaml:"rsi_period"`
		BuyThresholdRSI   float64 `yaml:"buy_threshold_rsi"`
		SellThresholdRSI  float64 `yaml:"sell_threshold_rsi"`
		ToleranceFactor   float64 `yaml:"tolerance_factor"`
		TradeAmount       float64 `yaml:"trade_amount"`
		ReferenceInterval string  `yaml:"reference_interval"`
		ReferenceField    string  `yaml:"reference_field"`
		MaxRiskPercent    float64 `yaml:"max_risk_percent"`
		DryRun            bool    `yaml:"dry_run"`
	} `yaml:"trading"`
	Schedule struct {
		CheckIntervalSeconds int    `yaml:"check_interval_seconds"`
		Cron                 string `yaml:"cron"`
	} `yaml:"schedule"`
	OrderLog struct {
		Path string `yaml:"path"`
	} `yaml:"order_log"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Notify struct {
		Email            string `yaml:"email"`
		SMTPHost         string `yaml:"smtp_host"`
		SMTPPort         int    `yaml:"smtp_port"`
		SMTPUser         string `yaml:"smtp_user"`
		SMTPPassword     string `yaml:"smtp_password"`
		TelegramBotToken string `yaml:"telegram_bot_token"`
		TelegramChatID   string `yaml:"telegram_chat_id"`
	} `yaml:"notify"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env (if present), then the YAML file, then applies
// environment variable overrides and defaults. A missing YAML file is not
// an error; variables already set in the environment win over .env.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	// Seeded before parsing because an explicit 0 is a valid tolerance.
	cfg.Trading.ToleranceFactor = 0.02

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"EXCHANGE_API_KEY":    &c.Exchange.APIKey,
		"EXCHANGE_API_SECRET": &c.Exchange.APISecret,
		"EXCHANGE_BASE_URL":   &c.Exchange.BaseURL,
		"TRADING_SYMBOL":      &c.Trading.Symbol,
		"NOTIFY_EMAIL":        &c.Notify.Email,
		"TELEGRAM_BOT_TOKEN":  &c.Notify.TelegramBotToken,
		"TELEGRAM_CHAT_ID":    &c.Notify.TelegramChatID,
		"SQLITE_PATH":         &c.Database.SQLitePath,
		"ORDER_LOG_PATH":      &c.OrderLog.Path,
		"LOG_LEVEL":           &c.Logging.Level,
		"HTTPS_PROXY":         &c.Proxy,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DRY_RUN: %w", err)
		}
		c.Trading.DryRun = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://api.bitflex.com"
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = 10 * time.Second
	}
	if c.Exchange.MaxAttempts == 0 {
		c.Exchange.MaxAttempts = 3
	}
	if c.Exchange.BackoffMin == 0 {
		c.Exchange.BackoffMin = 500 * time.Millisecond
	}
	if c.Exchange.BackoffMax == 0 {
		c.Exchange.BackoffMax = 5 * time.Second
	}
	if c.Exchange.RequestsPerSecond == 0 {
		c.Exchange.RequestsPerSecond = 5
	}

	t := &c.Trading
	if t.Symbol == "" {
		t.Symbol = "BTCUSDT"
	}
	if t.BaseAsset == "" && t.QuoteAsset == "" {
		t.BaseAsset, t.QuoteAsset = splitSymbol(t.Symbol)
	}
	if t.KlineInterval == "" {
		t.KlineInterval = "1m"
	}
	if t.EMAPeriod == 0 {
		t.EMAPeriod = 14
	}
	if t.RSIPeriod == 0 {
		t.RSIPeriod = 14
	}
	if t.KlineLimit == 0 {
		t.KlineLimit = 100
	}
	if t.BuyThresholdRSI == 0 {
		t.BuyThresholdRSI = 30
	}
	if t.SellThresholdRSI == 0 {
		t.SellThresholdRSI = 70
	}
	if t.TradeAmount == 0 {
		t.TradeAmount = 0.001
	}
	if t.ReferenceInterval == "" {
		t.ReferenceInterval = "1d"
	}
	if t.ReferenceField == "" {
		t.ReferenceField = "close"
	}

	if c.Schedule.CheckIntervalSeconds == 0 && c.Schedule.Cron == "" {
		c.Schedule.CheckIntervalSeconds = 60
	}
	if c.OrderLog.Path == "" {
		c.OrderLog.Path = "data/orders.csv"
	}
	if c.Notify.SMTPPort == 0 {
		c.Notify.SMTPPort = 587
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required fields are set and ranges hold.
func (c *Config) Validate() error {
	if c.Exchange.APIKey == "" {
		return fmt.Errorf("exchange.api_key is required")
	}
	if c.Exchange.APISecret == "" {
		return fmt.Errorf("exchange.api_secret is required")
	}

	t := c.Trading
	if t.EMAPeriod <= 0 || t.RSIPeriod <= 0 || t.KlineLimit <= 0 {
		return fmt.Errorf("trading.ema_period, rsi_period and kline_limit must be positive")
	}
	if need := max(t.EMAPeriod, t.RSIPeriod) + 1; t.KlineLimit < need {
		return fmt.Errorf("trading.kline_limit must be at least %d for the configured periods", need)
	}
	if !(0 < t.BuyThresholdRSI && t.BuyThresholdRSI < t.SellThresholdRSI && t.SellThresholdRSI < 100) {
		return fmt.Errorf("trading RSI thresholds must satisfy 0 < buy (%g) < sell (%g) < 100",
			t.BuyThresholdRSI, t.SellThresholdRSI)
	}
	if t.TradeAmount <= 0 {
		return fmt.Errorf("trading.trade_amount must be positive")
	}
	if t.ToleranceFactor < 0 {
		return fmt.Errorf("trading.tolerance_factor must not be negative")
	}
	if t.MaxRiskPercent < 0 || t.MaxRiskPercent > 100 {
		return fmt.Errorf("trading.max_risk_percent must be between 0 and 100")
	}
	if t.MaxRiskPercent > 0 && (t.BaseAsset == "" || t.QuoteAsset == "") {
		return fmt.Errorf("trading.base_asset and quote_asset are required when max_risk_percent is set")
	}
	switch t.ReferenceField {
	case "close", "open", "high", "low":
	default:
		return fmt.Errorf("trading.reference_field must be one of close, open, high, low")
	}

	if c.Schedule.Cron == "" && c.Schedule.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("schedule.check_interval_seconds must be positive")
	}
	if c.OrderLog.Path == "" {
		return fmt.Errorf("order_log.path is required")
	}
	return nil
}

// CheckInterval returns the poll interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Schedule.CheckIntervalSeconds) * time.Second
}

// StrategyParams returns the decision thresholds.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		BuyRSI:    c.Trading.BuyThresholdRSI,
		SellRSI:   c.Trading.SellThresholdRSI,
		Tolerance: c.Trading.ToleranceFactor,
	}
}

// splitSymbol guesses base and quote for common quote assets, e.g.
// BTCUSDT -> BTC, USDT.
func splitSymbol(symbol string) (base, quote string) {
	for _, q := range []string{"USDT", "USDC", "BUSD", "FDUSD", "BTC", "ETH"} {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q
		}
	}
	return "", ""
}
