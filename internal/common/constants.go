package common

// Trade actions accepted on /placeTrade
const (
	ActionLongEntry          = "long_entry"
	ActionShortEntry         = "short_entry"
	ActionLongExit           = "long_exit"
	ActionShortExit          = "short_exit"
	ActionReverseShortToLong = "reverse_short_to_long"
	ActionReverseLongToShort = "reverse_long_to_short"
	ActionSetTrailingStop    = "set_trailing_stop"
)

// Band signals accepted on /bbSignal
const (
	BandBasisBreached = "basis_breached"
	BandLowerBreached = "lower_bound_breached"
	BandUpperBreached = "upper_bound_breached"
	BandActivate      = "activate"
)

// Exchange backends
const (
	ExchangeBybit = "bybit"
	ExchangePaper = "paper"
)

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvExchange     = "EXCHANGE"
	EnvTestMode     = "TEST_MODE"
	EnvAPIKey       = "API_KEY"
	EnvAPISecret    = "API_SECRET"
	EnvTestAPIKey   = "TESTNET_API_KEY"
	EnvTestSecret   = "TESTNET_API_SECRET"
	EnvBaseURL      = "BASE_URL"
	EnvCategory     = "CATEGORY"
	EnvAccountType  = "ACCOUNT_TYPE"
	EnvRecvWindow   = "RECV_WINDOW"
	EnvTickerBase   = "TICKER_BASE"
	EnvTickerQuote  = "TICKER_QUOTE"
	EnvMarginAsset  = "MARGIN_ASSET"
	EnvAuthID       = "AUTH_ID"
	EnvPort         = "PORT"
	EnvMetricsPort  = "METRICS_PORT"
	EnvRESTTimeout  = "REST_TIMEOUT"
	EnvTrailGrace   = "TRAILING_STOP_GRACE"
	EnvQueueSize    = "QUEUE_SIZE"
	EnvDryRun       = "DRY_RUN"
	EnvDataPath     = "DATA_PATH"
	EnvHistoryDSN   = "HISTORY_DSN"
	EnvTelegramTok  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChat = "TELEGRAM_CHAT_ID"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogPretty    = "LOG_PRETTY"
	EnvLogFile      = "LOG_FILE"

	EnvEntryHaircut      = "ENTRY_HAIRCUT"
	EnvExitOvershoot     = "EXIT_OVERSHOOT"
	EnvReversalOvershoot = "REVERSAL_OVERSHOOT"
	EnvQtyStep           = "QTY_STEP"
	EnvFillRatio         = "FILL_RATIO"
	EnvPriceDecimals     = "PRICE_DECIMALS"

	EnvPaperFree     = "PAPER_FREE_BALANCE"
	EnvPaperPrice    = "PAPER_PRICE"
	EnvPaperLeverage = "PAPER_LEVERAGE"
	EnvPaperFeed     = "PAPER_PRICE_FEED"
)

// Configuration defaults
const (
	DefaultExchange    = ExchangeBybit
	DefaultBaseURL     = "https://api.bybit.com"
	DefaultTestnetURL  = "https://api-testnet.bybit.com"
	DefaultCategory    = "inverse"
	DefaultAccountType = "CONTRACT"
	DefaultRecvWindow  = "5000"
	DefaultTickerBase  = "BTC"
	DefaultTickerQuote = "USD"
	DefaultMarginAsset = "base"
	DefaultPort        = 3000
	DefaultMetricsPort = 8080
	DefaultQueueSize   = 16
	DefaultLogLevel    = "info"

	// Sizing safety margins; empirically tuned, not derived.
	DefaultEntryHaircut      = 0.95
	DefaultExitOvershoot     = 1.05
	DefaultReversalOvershoot = 1.05
	DefaultQtyStep           = 1.0
	DefaultFillRatio         = 0.9
	DefaultPriceDecimals     = 2

	DefaultPaperFree     = 1.0
	DefaultPaperPrice    = 30000.0
	DefaultPaperLeverage = 1.0
)

// Validation limits
const (
	MinPort          = 1024
	MaxPort          = 65535
	MaxQueueSize     = 1024
	MaxOvershoot     = 2.0
	MaxPriceDecimals = 8
)

// Common error messages
const (
	ErrMsgAPIKeyRequired = "API key and secret are required"
	ErrMsgAuthIDRequired = "AUTH_ID is required"
	ErrMsgBaseURLMissing = "base URL cannot be empty"
)
