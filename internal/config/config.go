package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Listing is one entry of a configured symbol universe.
type Listing struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

type Config struct {
	DBPath         string    `yaml:"dbPath"`
	LogLevel       string    `yaml:"logLevel"`
	Workers        int       `yaml:"workers"`
	CommitEvery    int       `yaml:"commitEvery"`
	PauseMs        int       `yaml:"pauseMs"`
	LongPauseEvery int       `yaml:"longPauseEvery"`
	LongPauseMs    int       `yaml:"longPauseMs"`
	OpenRetries    int       `yaml:"openRetries"`
	RetryDelayMs   int       `yaml:"retryDelayMs"`
	Stocks         []Listing `yaml:"stocks"`
	Cryptos        []Listing `yaml:"cryptos"`
}

// Load builds the configuration in three layers: built-in defaults, an
// optional YAML file, then environment variables. A .env file in the working
// directory is loaded first so the environment layer can come from it.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBPath:         "prices.db",
		LogLevel:       "info",
		Workers:        5,
		CommitEvery:    10,
		PauseMs:        500,
		LongPauseEvery: 10,
		LongPauseMs:    2000,
		OpenRetries:    10,
		RetryDelayMs:   2000,
		Stocks:         defaultStocks(),
		Cryptos:        defaultCryptos(),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.DBPath = getEnv("OHLCV_DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("OHLCV_LOG_LEVEL", cfg.LogLevel)
	cfg.Workers = getEnvInt("OHLCV_WORKERS", cfg.Workers)
	cfg.CommitEvery = getEnvInt("OHLCV_COMMIT_EVERY", cfg.CommitEvery)
	cfg.PauseMs = getEnvInt("OHLCV_PAUSE_MS", cfg.PauseMs)
	cfg.LongPauseEvery = getEnvInt("OHLCV_LONG_PAUSE_EVERY", cfg.LongPauseEvery)
	cfg.LongPauseMs = getEnvInt("OHLCV_LONG_PAUSE_MS", cfg.LongPauseMs)
	cfg.OpenRetries = getEnvInt("OHLCV_OPEN_RETRIES", cfg.OpenRetries)
	cfg.RetryDelayMs = getEnvInt("OHLCV_RETRY_DELAY_MS", cfg.RetryDelayMs)

	return cfg, nil
}

func (c Config) Pause() time.Duration      { return time.Duration(c.PauseMs) * time.Millisecond }
func (c Config) LongPause() time.Duration  { return time.Duration(c.LongPauseMs) * time.Millisecond }
func (c Config) RetryDelay() time.Duration { return time.Duration(c.RetryDelayMs) * time.Millisecond }

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs a text handler on stderr as the default logger.
func SetupLogger(c Config) {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()})
	slog.SetDefault(slog.New(h))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func defaultStocks() []Listing {
	return []Listing{
		{Symbol: "AAPL", Name: "Apple Inc."},
		{Symbol: "MSFT", Name: "Microsoft Corporation"},
		{Symbol: "GOOGL", Name: "Alphabet Inc."},
		{Symbol: "AMZN", Name: "Amazon.com Inc."},
		{Symbol: "NVDA", Name: "NVIDIA Corporation"},
		{Symbol: "META", Name: "Meta Platforms Inc."},
		{Symbol: "TSLA", Name: "Tesla Inc."},
		{Symbol: "BRK-B", Name: "Berkshire Hathaway Inc."},
		{Symbol: "JPM", Name: "JPMorgan Chase & Co."},
		{Symbol: "V", Name: "Visa Inc."},
		{Symbol: "UNH", Name: "UnitedHealth Group Inc."},
		{Symbol: "JNJ", Name: "Johnson & Johnson"},
		{Symbol: "WMT", Name: "Walmart Inc."},
		{Symbol: "XOM", Name: "Exxon Mobil Corporation"},
		{Symbol: "PG", Name: "Procter & Gamble Co."},
	}
}

// defaultCryptos is the built-in catalog used when discovery is off or the
// screener is unreachable.
func defaultCryptos() []Listing {
	return []Listing{
		{Symbol: "BTC-USD", Name: "Bitcoin"},
		{Symbol: "ETH-USD", Name: "Ethereum"},
		{Symbol: "BNB-USD", Name: "BNB"},
		{Symbol: "XRP-USD", Name: "XRP"},
		{Symbol: "ADA-USD", Name: "Cardano"},
		{Symbol: "DOGE-USD", Name: "Dogecoin"},
		{Symbol: "SOL-USD", Name: "Solana"},
		{Symbol: "TRX-USD", Name: "TRON"},
		{Symbol: "MATIC-USD", Name: "Polygon"},
		{Symbol: "LTC-USD", Name: "Litecoin"},
		{Symbol: "AVAX-USD", Name: "Avalanche"},
		{Symbol: "SHIB-USD", Name: "Shiba Inu"},
		{Symbol: "DOT-USD", Name: "Polkadot"},
		{Symbol: "UNI-USD", Name: "Uniswap"},
		{Symbol: "ATOM-USD", Name: "Cosmos"},
		{Symbol: "LINK-USD", Name: "Chainlink"},
		{Symbol: "BCH-USD", Name: "Bitcoin Cash"},
		{Symbol: "ETC-USD", Name: "Ethereum Classic"},
		{Symbol: "XLM-USD", Name: "Stellar"},
		{Symbol: "ALGO-USD", Name: "Algorand"},
		{Symbol: "VET-USD", Name: "VeChain"},
		{Symbol: "FIL-USD", Name: "Filecoin"},
		{Symbol: "THETA-USD", Name: "Theta Network"},
		{Symbol: "EOS-USD", Name: "EOS"},
		{Symbol: "MANA-USD", Name: "Decentraland"},
	}
}
