package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	binanceKeyENV     = "BINANCE_API_KEY"
	binanceSecretENV  = "BINANCE_API_SECRET"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	Binance struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		TLD       string `yaml:"tld"` // com / us
	} `yaml:"binance"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Bridge currency every jump is routed through. Exactly one per instance.
	Bridge string `yaml:"bridge"`
	// Coins the bot is allowed to rotate between.
	SupportedCoins []string `yaml:"supported_coins"`
	// Starting coin; random among SupportedCoins when empty.
	CurrentCoin string `yaml:"current_coin"`

	// Scoring: margin mode when UseMargin, multiplier mode otherwise.
	UseMargin       bool    `yaml:"use_margin"`
	ScoutMultiplier float64 `yaml:"scout_multiplier"`
	ScoutMarginPct  float64 `yaml:"scout_margin_pct"`

	ScoutSleepTime       time.Duration `yaml:"scout_sleep_time"`
	ScoutHistoryPruneAge time.Duration `yaml:"scout_history_prune_age"`
	ValueHistoryPruneAge time.Duration `yaml:"value_history_prune_age"`

	// Bound on waiting for an order fill before treating it as failed.
	OrderTimeout time.Duration `yaml:"order_timeout"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		Bridge:               getenvDefault("BRIDGE_SYMBOL", "USDT"),
		ScoutMultiplier:      floatFromEnv("SCOUT_MULTIPLIER", 5),
		ScoutMarginPct:       floatFromEnv("SCOUT_MARGIN_PCT", 0.8),
		UseMargin:            boolFromEnv("USE_MARGIN", false),
		ScoutSleepTime:       durationFromEnv("SCOUT_SLEEP_TIME", "5s"),
		ScoutHistoryPruneAge: durationFromEnv("SCOUT_HISTORY_PRUNE_AGE", "1h"),
		ValueHistoryPruneAge: durationFromEnv("VALUE_HISTORY_PRUNE_AGE", "24h"),
		OrderTimeout:         durationFromEnv("ORDER_TIMEOUT", "90s"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}
	if v := os.Getenv(binanceKeyENV); v != "" {
		config.Binance.APIKey = v
	}
	if v := os.Getenv(binanceSecretENV); v != "" {
		config.Binance.APISecret = v
	}
	if config.Binance.TLD == "" {
		config.Binance.TLD = getenvDefault("BINANCE_TLD", "com")
	}

	if coins := os.Getenv("SUPPORTED_COIN_LIST"); coins != "" {
		config.SupportedCoins = strings.Fields(strings.ToUpper(coins))
	}
	if v := os.Getenv("CURRENT_COIN_SYMBOL"); v != "" {
		config.CurrentCoin = strings.ToUpper(v)
	}

	if len(config.SupportedCoins) == 0 {
		return nil, fmt.Errorf("supported_coins must not be empty")
	}
	for _, c := range config.SupportedCoins {
		if c == config.Bridge {
			return nil, fmt.Errorf("bridge %s cannot be in supported_coins", config.Bridge)
		}
	}

	return &config, nil
}

// Supported reports whether symbol is in the configured coin list.
func (c *Config) Supported(symbol string) bool {
	for _, s := range c.SupportedCoins {
		if s == symbol {
			return true
		}
	}
	return false
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" || v == "no" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
