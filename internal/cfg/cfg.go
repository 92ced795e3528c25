package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joelsfoster/gizmo/internal/common"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	Exchange    string
	TestMode    bool
	DryRun      bool
	Key, Secret string
	BaseURL     string
	Category    string
	AccountType string
	RecvWindow  string
	TickerBase  string
	TickerQuote string
	MarginAsset string

	AuthID      string
	Port        int
	MetricsPort int
	RESTTimeout time.Duration
	TrailGrace  time.Duration
	QueueSize   int

	DataPath         string
	HistoryDSN       string
	TelegramToken    string
	TelegramChatID   int64
	PaperFreeBalance float64
	PaperPrice       float64
	PaperLeverage    float64

	// PaperFeed is the interval at which the paper price follows the
	// public ticker. Zero keeps PaperPrice fixed.
	PaperFeed time.Duration

	Sizing Sizing
}

// Sizing holds the empirically tuned margins applied when converting
// balances to order quantities.
type Sizing struct {
	EntryHaircut      float64 `yaml:"entryHaircut"`
	ExitOvershoot     float64 `yaml:"exitOvershoot"`
	ReversalOvershoot float64 `yaml:"reversalOvershoot"`
	QtyStep           float64 `yaml:"qtyStep"`
	FillRatio         float64 `yaml:"fillRatio"`
	PriceDecimals     int     `yaml:"priceDecimals"`
}

type ConfigFile struct {
	Exchange struct {
		Name        string `yaml:"name"`
		Key         string `yaml:"key"`
		Secret      string `yaml:"secret"`
		BaseURL     string `yaml:"baseURL"`
		Category    string `yaml:"category"`
		AccountType string `yaml:"accountType"`
		RecvWindow  string `yaml:"recvWindow"`
		TestMode    *bool  `yaml:"testMode"`
	} `yaml:"exchange"`

	Trading struct {
		TickerBase  string  `yaml:"tickerBase"`
		TickerQuote string  `yaml:"tickerQuote"`
		MarginAsset string  `yaml:"marginAsset"`
		DryRun      bool    `yaml:"dryRun"`
		TrailGrace  string  `yaml:"trailingStopGrace"`
		Sizing      Sizing  `yaml:"sizing"`
		PaperFree   float64 `yaml:"paperFreeBalance"`
		PaperPrice  float64 `yaml:"paperPrice"`
		PaperLev    float64 `yaml:"paperLeverage"`
		PaperFeed   string  `yaml:"paperPriceFeed"`
	} `yaml:"trading"`

	Webhook struct {
		AuthID    string `yaml:"authID"`
		Port      int    `yaml:"port"`
		QueueSize int    `yaml:"queueSize"`
	} `yaml:"webhook"`

	History struct {
		DataPath       string `yaml:"dataPath"`
		DSN            string `yaml:"dsn"`
		TelegramToken  string `yaml:"telegramToken"`
		TelegramChatID int64  `yaml:"telegramChatID"`
	} `yaml:"history"`

	System struct {
		MetricsPort int    `yaml:"metricsPort"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = 10 * time.Second
	}
	trailGrace, err := time.ParseDuration(config.Trading.TrailGrace)
	if err != nil {
		trailGrace = 2 * time.Second
	}

	paperFeed, err := time.ParseDuration(config.Trading.PaperFeed)
	if err != nil {
		paperFeed = 0
	}

	testMode := true
	if config.Exchange.TestMode != nil {
		testMode = *config.Exchange.TestMode
	}
	testMode = getBoolFromEnvOrConfig(common.EnvTestMode, testMode)

	key, secret := credentialsFor(testMode)
	if key == "" {
		key = config.Exchange.Key
	}
	if secret == "" {
		secret = config.Exchange.Secret
	}

	sz := config.Trading.Sizing
	settings := Settings{
		Exchange:         getEnvOrDefault(common.EnvExchange, stringOr(config.Exchange.Name, common.DefaultExchange)),
		TestMode:         testMode,
		DryRun:           getBoolFromEnvOrConfig(common.EnvDryRun, config.Trading.DryRun),
		Key:              key,
		Secret:           secret,
		BaseURL:          getEnvOrDefault(common.EnvBaseURL, stringOr(config.Exchange.BaseURL, defaultBaseURL(testMode))),
		Category:         getEnvOrDefault(common.EnvCategory, stringOr(config.Exchange.Category, common.DefaultCategory)),
		AccountType:      getEnvOrDefault(common.EnvAccountType, stringOr(config.Exchange.AccountType, common.DefaultAccountType)),
		RecvWindow:       getEnvOrDefault(common.EnvRecvWindow, stringOr(config.Exchange.RecvWindow, common.DefaultRecvWindow)),
		TickerBase:       getEnvOrDefault(common.EnvTickerBase, stringOr(config.Trading.TickerBase, common.DefaultTickerBase)),
		TickerQuote:      getEnvOrDefault(common.EnvTickerQuote, stringOr(config.Trading.TickerQuote, common.DefaultTickerQuote)),
		MarginAsset:      getEnvOrDefault(common.EnvMarginAsset, stringOr(config.Trading.MarginAsset, common.DefaultMarginAsset)),
		AuthID:           getEnvOrDefault(common.EnvAuthID, config.Webhook.AuthID),
		Port:             getIntFromEnvOrConfig(common.EnvPort, config.Webhook.Port, common.DefaultPort),
		MetricsPort:      getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		RESTTimeout:      getDurationOrDefault(common.EnvRESTTimeout, restTimeout),
		TrailGrace:       getDurationOrDefault(common.EnvTrailGrace, trailGrace),
		QueueSize:        getIntFromEnvOrConfig(common.EnvQueueSize, config.Webhook.QueueSize, common.DefaultQueueSize),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.History.DataPath),
		HistoryDSN:       getEnvOrDefault(common.EnvHistoryDSN, config.History.DSN),
		TelegramToken:    getEnvOrDefault(common.EnvTelegramTok, config.History.TelegramToken),
		TelegramChatID:   getInt64FromEnvOrConfig(common.EnvTelegramChat, config.History.TelegramChatID),
		PaperFreeBalance: getFloatFromEnvOrConfig(common.EnvPaperFree, config.Trading.PaperFree, common.DefaultPaperFree),
		PaperPrice:       getFloatFromEnvOrConfig(common.EnvPaperPrice, config.Trading.PaperPrice, common.DefaultPaperPrice),
		PaperLeverage:    getFloatFromEnvOrConfig(common.EnvPaperLeverage, config.Trading.PaperLev, common.DefaultPaperLeverage),
		PaperFeed:        getDurationOrDefault(common.EnvPaperFeed, paperFeed),
		Sizing: Sizing{
			EntryHaircut:      getFloatFromEnvOrConfig(common.EnvEntryHaircut, sz.EntryHaircut, common.DefaultEntryHaircut),
			ExitOvershoot:     getFloatFromEnvOrConfig(common.EnvExitOvershoot, sz.ExitOvershoot, common.DefaultExitOvershoot),
			ReversalOvershoot: getFloatFromEnvOrConfig(common.EnvReversalOvershoot, sz.ReversalOvershoot, common.DefaultReversalOvershoot),
			QtyStep:           getFloatFromEnvOrConfig(common.EnvQtyStep, sz.QtyStep, common.DefaultQtyStep),
			FillRatio:         getFloatFromEnvOrConfig(common.EnvFillRatio, sz.FillRatio, common.DefaultFillRatio),
			PriceDecimals:     getIntFromEnvOrConfig(common.EnvPriceDecimals, sz.PriceDecimals, common.DefaultPriceDecimals),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	testMode := getBoolOrDefault(common.EnvTestMode, true)
	key, secret := credentialsFor(testMode)

	settings := Settings{
		Exchange:         getEnvOrDefault(common.EnvExchange, common.DefaultExchange),
		TestMode:         testMode,
		DryRun:           getBoolOrDefault(common.EnvDryRun, false),
		Key:              key,
		Secret:           secret,
		BaseURL:          getEnvOrDefault(common.EnvBaseURL, defaultBaseURL(testMode)),
		Category:         getEnvOrDefault(common.EnvCategory, common.DefaultCategory),
		AccountType:      getEnvOrDefault(common.EnvAccountType, common.DefaultAccountType),
		RecvWindow:       getEnvOrDefault(common.EnvRecvWindow, common.DefaultRecvWindow),
		TickerBase:       getEnvOrDefault(common.EnvTickerBase, common.DefaultTickerBase),
		TickerQuote:      getEnvOrDefault(common.EnvTickerQuote, common.DefaultTickerQuote),
		MarginAsset:      getEnvOrDefault(common.EnvMarginAsset, common.DefaultMarginAsset),
		AuthID:           os.Getenv(common.EnvAuthID),
		Port:             getIntOrDefault(common.EnvPort, common.DefaultPort),
		MetricsPort:      getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		RESTTimeout:      getDurationOrDefault(common.EnvRESTTimeout, 10*time.Second),
		TrailGrace:       getDurationOrDefault(common.EnvTrailGrace, 2*time.Second),
		QueueSize:        getIntOrDefault(common.EnvQueueSize, common.DefaultQueueSize),
		DataPath:         os.Getenv(common.EnvDataPath), // optional
		HistoryDSN:       os.Getenv(common.EnvHistoryDSN),
		TelegramToken:    os.Getenv(common.EnvTelegramTok),
		TelegramChatID:   getInt64OrDefault(common.EnvTelegramChat, 0),
		PaperFreeBalance: getFloatOrDefault(common.EnvPaperFree, common.DefaultPaperFree),
		PaperPrice:       getFloatOrDefault(common.EnvPaperPrice, common.DefaultPaperPrice),
		PaperLeverage:    getFloatOrDefault(common.EnvPaperLeverage, common.DefaultPaperLeverage),
		PaperFeed:        getDurationOrDefault(common.EnvPaperFeed, 0),
		Sizing: Sizing{
			EntryHaircut:      getFloatOrDefault(common.EnvEntryHaircut, common.DefaultEntryHaircut),
			ExitOvershoot:     getFloatOrDefault(common.EnvExitOvershoot, common.DefaultExitOvershoot),
			ReversalOvershoot: getFloatOrDefault(common.EnvReversalOvershoot, common.DefaultReversalOvershoot),
			QtyStep:           getFloatOrDefault(common.EnvQtyStep, common.DefaultQtyStep),
			FillRatio:         getFloatOrDefault(common.EnvFillRatio, common.DefaultFillRatio),
			PriceDecimals:     getIntOrDefault(common.EnvPriceDecimals, common.DefaultPriceDecimals),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Symbol returns the exchange symbol, e.g. BTCUSD.
func (s *Settings) Symbol() string {
	return s.TickerBase + s.TickerQuote
}

// MarginCoin returns the coin the account margin is held in.
func (s *Settings) MarginCoin() string {
	if s.MarginAsset == "quote" {
		return s.TickerQuote
	}
	return s.TickerBase
}

// Paper reports whether orders should go to the in-memory exchange.
func (s *Settings) Paper() bool {
	return s.DryRun || s.Exchange == common.ExchangePaper
}

func credentialsFor(testMode bool) (string, string) {
	if testMode {
		return os.Getenv(common.EnvTestAPIKey), os.Getenv(common.EnvTestSecret)
	}
	return os.Getenv(common.EnvAPIKey), os.Getenv(common.EnvAPISecret)
}

func defaultBaseURL(testMode bool) string {
	if testMode {
		return common.DefaultTestnetURL
	}
	return common.DefaultBaseURL
}

func stringOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue int64) int64 {
	return getInt64OrDefault(key, configValue)
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	return getBoolOrDefault(key, configValue)
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	switch settings.Exchange {
	case common.ExchangeBybit, common.ExchangePaper:
	default:
		return fmt.Errorf("unsupported exchange %q", settings.Exchange)
	}

	if !settings.Paper() && (settings.Key == "" || settings.Secret == "") {
		return errors.New(common.ErrMsgAPIKeyRequired)
	}
	if settings.AuthID == "" {
		return errors.New(common.ErrMsgAuthIDRequired)
	}
	if settings.BaseURL == "" {
		return errors.New(common.ErrMsgBaseURLMissing)
	}
	if settings.TickerBase == "" || settings.TickerQuote == "" {
		return fmt.Errorf("ticker base and quote must be set")
	}
	if settings.MarginAsset != "base" && settings.MarginAsset != "quote" {
		return fmt.Errorf("margin asset must be base or quote, got %q", settings.MarginAsset)
	}
	if settings.Category != "inverse" && settings.Category != "linear" {
		return fmt.Errorf("category must be inverse or linear, got %q", settings.Category)
	}

	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}
	if settings.TrailGrace < 0 || settings.TrailGrace > time.Minute {
		return fmt.Errorf("trailing stop grace must be between 0 and 1m, got %v", settings.TrailGrace)
	}
	if settings.PaperFeed != 0 && settings.PaperFeed < time.Second {
		return fmt.Errorf("paper price feed interval must be 0 or at least 1s, got %v", settings.PaperFeed)
	}

	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("webhook port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.MetricsPort == settings.Port {
		return fmt.Errorf("metrics port and webhook port must differ, both are %d", settings.Port)
	}
	if settings.QueueSize <= 0 || settings.QueueSize > common.MaxQueueSize {
		return fmt.Errorf("queue size must be between 1 and %d, got %d", common.MaxQueueSize, settings.QueueSize)
	}
	if settings.TelegramToken != "" && settings.TelegramChatID == 0 {
		return fmt.Errorf("telegram chat id is required when a bot token is set")
	}

	return validateSizing(settings.Sizing)
}

func validateSizing(s Sizing) error {
	if s.EntryHaircut <= 0 || s.EntryHaircut > 1 {
		return fmt.Errorf("entry haircut must be in (0, 1], got %f", s.EntryHaircut)
	}
	if s.ExitOvershoot < 1 || s.ExitOvershoot > common.MaxOvershoot {
		return fmt.Errorf("exit overshoot must be between 1 and %.1f, got %f", common.MaxOvershoot, s.ExitOvershoot)
	}
	if s.ReversalOvershoot < 1 || s.ReversalOvershoot > common.MaxOvershoot {
		return fmt.Errorf("reversal overshoot must be between 1 and %.1f, got %f", common.MaxOvershoot, s.ReversalOvershoot)
	}
	if s.QtyStep <= 0 {
		return fmt.Errorf("quantity step must be positive, got %f", s.QtyStep)
	}
	if s.FillRatio <= 0 || s.FillRatio >= 1 {
		return fmt.Errorf("fill ratio must be in (0, 1), got %f", s.FillRatio)
	}
	if s.PriceDecimals < 0 || s.PriceDecimals > common.MaxPriceDecimals {
		return fmt.Errorf("price decimals must be between 0 and %d, got %d", common.MaxPriceDecimals, s.PriceDecimals)
	}
	return nil
}
