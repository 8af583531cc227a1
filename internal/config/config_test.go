package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory so no stray .env is loaded,
// and clears every override variable.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range []string{
		"EXCHANGE_API_KEY", "EXCHANGE_API_SECRET", "EXCHANGE_BASE_URL", "TRADING_SYMBOL",
		"NOTIFY_EMAIL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "SQLITE_PATH",
		"ORDER_LOG_PATH", "LOG_LEVEL", "HTTPS_PROXY", "DRY_RUN",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

const sampleYAML = `
exchange:
  api_key: yaml-key
  api_secret: yaml-secret
  base_url: https://api.example.com
  timeout: 5s
  max_attempts: 4
trading:
  symbol: ETHUSDT
  ema_period: 20
  rsi_period: 14
  kline_limit: 60
  buy_threshold_rsi: 25
  sell_threshold_rsi: 75
  tolerance_factor: 0
  trade_amount: 0.05
  max_risk_percent: 10
schedule:
  check_interval_seconds: 30
notify:
  telegram_bot_token: tg
  telegram_chat_id: "123"
`

func TestLoadYAMLWithDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "yaml-key", cfg.Exchange.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Exchange.Timeout)
	assert.Equal(t, 4, cfg.Exchange.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Exchange.BackoffMin, "default")
	assert.Equal(t, "ETH", cfg.Trading.BaseAsset)
	assert.Equal(t, "USDT", cfg.Trading.QuoteAsset)
	assert.Equal(t, 0.0, cfg.Trading.ToleranceFactor, "explicit zero tolerance is kept")
	assert.Equal(t, "1m", cfg.Trading.KlineInterval)
	assert.Equal(t, "1d", cfg.Trading.ReferenceInterval)
	assert.Equal(t, "close", cfg.Trading.ReferenceField)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval())
	assert.Equal(t, "data/orders.csv", cfg.OrderLog.Path)

	p := cfg.StrategyParams()
	assert.Equal(t, 25.0, p.BuyRSI)
	assert.Equal(t, 75.0, p.SellRSI)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)
	cfg, err := Load(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.Equal(t, 14, cfg.Trading.EMAPeriod)
	assert.Equal(t, 14, cfg.Trading.RSIPeriod)
	assert.Equal(t, 0.02, cfg.Trading.ToleranceFactor)
	assert.Equal(t, 60, cfg.Schedule.CheckIntervalSeconds)

	err = cfg.Validate()
	require.Error(t, err, "credentials are required")
	assert.Contains(t, err.Error(), "api_key")
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, sampleYAML)
	t.Setenv("EXCHANGE_API_KEY", "env-key")
	t.Setenv("TRADING_SYMBOL", "SOLUSDT")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("ORDER_LOG_PATH", "/tmp/x.csv")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "yaml-secret", cfg.Exchange.APISecret)
	assert.Equal(t, "SOLUSDT", cfg.Trading.Symbol)
	assert.True(t, cfg.Trading.DryRun)
	assert.Equal(t, "/tmp/x.csv", cfg.OrderLog.Path)
}

func TestInvalidDryRunEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("DRY_RUN", "maybe")
	_, err := Load(filepath.Join(dir, "config.yaml"))
	assert.Error(t, err)
}

func TestDotEnvFillsCredentials(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "EXCHANGE_API_KEY=dot-key\nEXCHANGE_API_SECRET=dot-secret\n")
	t.Cleanup(func() {
		os.Unsetenv("EXCHANGE_API_KEY")
		os.Unsetenv("EXCHANGE_API_SECRET")
	})
	// godotenv never overrides variables that are already set, even empty.
	os.Unsetenv("EXCHANGE_API_KEY")
	os.Unsetenv("EXCHANGE_API_SECRET")

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dot-key", cfg.Exchange.APIKey)
	assert.Equal(t, "dot-secret", cfg.Exchange.APISecret)
	assert.NoError(t, cfg.Validate())
}

func TestParseErrorIsReported(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "exchange: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.Exchange.APIKey = "k"
		c.Exchange.APISecret = "s"
		c.applyDefaults()
		c.Trading.ToleranceFactor = 0.02
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.Exchange.APISecret = "" }, true},
		{"zero ema period", func(c *Config) { c.Trading.EMAPeriod = -1 }, true},
		{"window too short", func(c *Config) { c.Trading.KlineLimit = 14 }, true},
		{"window exactly long enough", func(c *Config) { c.Trading.KlineLimit = 15 }, false},
		{"buy above sell", func(c *Config) { c.Trading.BuyThresholdRSI = 80 }, true},
		{"buy equals sell", func(c *Config) { c.Trading.BuyThresholdRSI = 70 }, true},
		{"sell at 100", func(c *Config) { c.Trading.SellThresholdRSI = 100 }, true},
		{"zero trade amount", func(c *Config) { c.Trading.TradeAmount = -1 }, true},
		{"negative tolerance", func(c *Config) { c.Trading.ToleranceFactor = -0.1 }, true},
		{"risk over 100", func(c *Config) { c.Trading.MaxRiskPercent = 150 }, true},
		{"risk without assets", func(c *Config) {
			c.Trading.MaxRiskPercent = 5
			c.Trading.BaseAsset = ""
		}, true},
		{"bad reference field", func(c *Config) { c.Trading.ReferenceField = "vwap" }, true},
		{"no interval", func(c *Config) { c.Schedule.CheckIntervalSeconds = 0 }, true},
		{"cron instead of interval", func(c *Config) {
			c.Schedule.CheckIntervalSeconds = 0
			c.Schedule.Cron = "*/5 * * * *"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
