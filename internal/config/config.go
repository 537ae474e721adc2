package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Logger   Logger   `mapstructure:"logger"`
	Store    Store    `mapstructure:"store"`
	Sheets   Sheets   `mapstructure:"sheets"`
	Database Database `mapstructure:"database"`
	Fees     Fees     `mapstructure:"fees"`
}

// Server holds the configuration for the web form.
type Server struct {
	Port  int    `mapstructure:"port"`
	Title string `mapstructure:"title"`
	Icon  string `mapstructure:"icon"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store selects the table backend and the write policy around it.
type Store struct {
	Backend            string        `mapstructure:"backend"` // "sheets" or "sqlite"
	Table              string        `mapstructure:"table"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxConflictRetries int           `mapstructure:"max_conflict_retries"`
}

// Sheets holds the connection settings for the remote sheet gateway.
type Sheets struct {
	BaseURL        string  `mapstructure:"base_url"`
	SpreadsheetID  string  `mapstructure:"spreadsheet_id"`
	ApiKey         string  `mapstructure:"api_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Database holds the configuration for the local SQLite table store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Fees holds the broker fee schedule.
type Fees struct {
	FeeRate    string `mapstructure:"fee_rate"`
	TaxRate    string `mapstructure:"tax_rate"`
	Discount   string `mapstructure:"discount"`
	MinimumFee int64  `mapstructure:"minimum_fee"`
	BoardLot   int64  `mapstructure:"board_lot"`
}

const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// LoadConfig reads configuration from file or environment variables.
// A .env file next to the config file is loaded first so credentials can
// stay out of config.yml.
func LoadConfig(path string) (config Config, err error) {
	if err = loadDotEnv(filepath.Join(path, ".env")); err != nil {
		return
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	}
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.title", "Trade Log")
	v.SetDefault("server.icon", "📝")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("store.backend", BackendSheets)
	v.SetDefault("store.table", "trade_log")
	v.SetDefault("store.timeout", 15*time.Second)
	v.SetDefault("store.max_conflict_retries", 3)

	v.SetDefault("sheets.rate_limit", 5) // requests per second
	v.SetDefault("sheets.rate_limit_burst", 2)

	v.SetDefault("database.dsn", "trade_log.db")

	v.SetDefault("fees.fee_rate", "0.001425")
	v.SetDefault("fees.tax_rate", "0.003")
	v.SetDefault("fees.discount", "0.6")
	v.SetDefault("fees.minimum_fee", 20)
	v.SetDefault("fees.board_lot", 1000)

	// Bind keys without defaults so AutomaticEnv picks them up on Unmarshal.
	for _, key := range []string{"sheets.base_url", "sheets.spreadsheet_id", "sheets.api_key"} {
		_ = v.BindEnv(key)
	}
}

func loadDotEnv(file string) error {
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(file)
}
