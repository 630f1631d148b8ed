package utilities

// --- Types (Alphabetized) ---

// AppConfig is the root configuration structure, holding all other config sections.
type AppConfig struct {
	AppName     string           `mapstructure:"app_name"`
	Binance     BinanceConfig    `mapstructure:"binance"`
	Coingecko   CoingeckoConfig  `mapstructure:"coingecko"`
	DB          DatabaseConfig   `mapstructure:"database"`
	Discord     DiscordConfig    `mapstructure:"discord"`
	Environment string           `mapstructure:"environment"`
	Indicators  IndicatorsConfig `mapstructure:"indicators"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Server      ServerConfig     `mapstructure:"server"`
	Trading     TradingConfig    `mapstructure:"trading"`
	Venue       VenueConfig      `mapstructure:"venue"`
	Version     string           `mapstructure:"version"`
}

// BinanceConfig holds settings for the candle/ticker data provider.
type BinanceConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RetryDelaySec     int     `mapstructure:"retry_delay_sec"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
}

// Candle represents a single Open, High, Low, Close, Volume data point.
// Sequences are ordered oldest-first per (symbol, timeframe).
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// CoingeckoConfig holds settings for the ranked-universe data provider.
type CoingeckoConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RetryDelaySec     int     `mapstructure:"retry_delay_sec"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
	CacheTTLMinutes   int     `mapstructure:"cache_ttl_minutes"`
	UniverseSize      int     `mapstructure:"universe_size"`
}

// DatabaseConfig holds settings for database connections.
type DatabaseConfig struct {
	DBPath string `mapstructure:"database_path"`
}

// DiscordConfig holds settings for sending trade notifications via Discord.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// IndicatorsConfig holds parameters for the technical indicators.
type IndicatorsConfig struct {
	EMAFastPeriod        int     `mapstructure:"ema_fast_period"`
	EMASlowPeriod        int     `mapstructure:"ema_slow_period"`
	MACDFastPeriod       int     `mapstructure:"macd_fast_period"`
	MACDSlowPeriod       int     `mapstructure:"macd_slow_period"`
	MACDSignalPeriod     int     `mapstructure:"macd_signal_period"`
	RSIPeriod            int     `mapstructure:"rsi_period"`
	ATRPeriod            int     `mapstructure:"atr_period"`
	VolumeSpikeFactor    float64 `mapstructure:"volume_spike_factor"`
	VolumeLookbackPeriod int     `mapstructure:"volume_lookback_period"`
}

// Defaults returns the fixed indicator parameters used when the config
// section is absent or partially filled.
func (c IndicatorsConfig) Defaults() IndicatorsConfig {
	out := c
	if out.EMAFastPeriod <= 0 {
		out.EMAFastPeriod = 8
	}
	if out.EMASlowPeriod <= 0 {
		out.EMASlowPeriod = 21
	}
	if out.MACDFastPeriod <= 0 {
		out.MACDFastPeriod = 12
	}
	if out.MACDSlowPeriod <= 0 {
		out.MACDSlowPeriod = 26
	}
	if out.MACDSignalPeriod <= 0 {
		out.MACDSignalPeriod = 9
	}
	if out.RSIPeriod <= 0 {
		out.RSIPeriod = 14
	}
	if out.ATRPeriod <= 0 {
		out.ATRPeriod = 14
	}
	if out.VolumeSpikeFactor <= 0 {
		out.VolumeSpikeFactor = 1.5
	}
	if out.VolumeLookbackPeriod <= 0 {
		out.VolumeLookbackPeriod = 20
	}
	return out
}

// LoggingConfig holds settings related to logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig holds settings for the JSON API server.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Settings is the mutable runtime state tunable through the settings API.
// It is loaded from the durable store at startup (overlaying the config
// defaults) and persisted after every mutation.
type Settings struct {
	AutoTradeEnabled  bool    `json:"autoTradeEnabled"`
	InvestPercent     float64 `json:"investPercent"`
	TakeProfitPercent float64 `json:"takeProfitPercent"`
	MaxOpenPositions  int     `json:"maxOpenPositions"`
	MinScore          int     `json:"minScore"`
	MaxScanResults    int     `json:"maxScanResults"`
	AutoSellDefault   bool    `json:"autoSellDefault"`
}

// TradingConfig holds general trading parameters and the Settings defaults.
type TradingConfig struct {
	QuoteCurrency       string   `mapstructure:"quote_currency"`
	Stablecoins         []string `mapstructure:"stablecoins"`
	FeePercent          float64  `mapstructure:"fee_percent"`
	SimStartingBalance  float64  `mapstructure:"sim_starting_balance"`
	AutoTradeEnabled    bool     `mapstructure:"auto_trade_enabled"`
	InvestPercent       float64  `mapstructure:"invest_percent"`
	TakeProfitPercent   float64  `mapstructure:"take_profit_percent"`
	MaxOpenPositions    int      `mapstructure:"max_open_positions"`
	MinScore            int      `mapstructure:"min_score"`
	MaxScanResults      int      `mapstructure:"max_scan_results"`
	AutoSellDefault     bool     `mapstructure:"auto_sell_default"`
	BuyIntervalSec      int      `mapstructure:"buy_interval_sec"`
	MonitorIntervalSec  int      `mapstructure:"monitor_interval_sec"`
	CandleHistory1h     int      `mapstructure:"candle_history_1h"`
	CandleHistory4h     int      `mapstructure:"candle_history_4h"`
	StopLossATRMultiple float64  `mapstructure:"stop_loss_atr_multiple"`
}

// DefaultSettings derives the initial Settings snapshot from the static config.
func (t TradingConfig) DefaultSettings() Settings {
	s := Settings{
		AutoTradeEnabled:  t.AutoTradeEnabled,
		InvestPercent:     t.InvestPercent,
		TakeProfitPercent: t.TakeProfitPercent,
		MaxOpenPositions:  t.MaxOpenPositions,
		MinScore:          t.MinScore,
		MaxScanResults:    t.MaxScanResults,
		AutoSellDefault:   t.AutoSellDefault,
	}
	if s.InvestPercent <= 0 {
		s.InvestPercent = 10
	}
	if s.TakeProfitPercent <= 0 {
		s.TakeProfitPercent = 2.5
	}
	if s.MaxOpenPositions <= 0 {
		s.MaxOpenPositions = 3
	}
	if s.MinScore <= 0 {
		s.MinScore = 6
	}
	if s.MaxScanResults <= 0 {
		s.MaxScanResults = 5
	}
	return s
}

// VenueConfig holds all settings for the trading venue integration.
type VenueConfig struct {
	APIKey            string `mapstructure:"api_key"`
	APISecret         string `mapstructure:"api_secret"`
	Passphrase        string `mapstructure:"passphrase"`
	BaseURL           string `mapstructure:"base_url"`
	DemoMode          bool   `mapstructure:"demo_mode"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryDelaySec     int    `mapstructure:"retry_delay_sec"`
}
