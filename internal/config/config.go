package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"meterbot/internal/billing"
	"meterbot/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Billing
	StartPeriod   string
	RatesFile     string
	BaselineWater string
	BaselineGas   string
	HistoryLimit  int

	// HTTP gateway
	RateLimitPerMinute int

	// Export worker
	ExportSchedule  string
	ExportBatchSize int

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/meterbot.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "meterbot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "calculations_confirmed"),

		StartPeriod:   getEnv("START_PERIOD", "2024-12"),
		RatesFile:     getEnv("RATES_FILE", ""),
		BaselineWater: getEnv("BASELINE_WATER", ""),
		BaselineGas:   getEnv("BASELINE_GAS", ""),
		HistoryLimit:  getEnvInt("HISTORY_LIMIT", 5),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		ExportSchedule:  getEnv("EXPORT_SCHEDULE", "@every 1m"),
		ExportBatchSize: getEnvInt("EXPORT_BATCH_SIZE", 50),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Calculations"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := core.ParsePeriod(c.StartPeriod); err != nil {
		errors = append(errors, fmt.Sprintf("invalid start period '%s': %v", c.StartPeriod, err))
	}

	if c.RatesFile != "" {
		if _, err := os.Stat(c.RatesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("rates file does not exist: %s", c.RatesFile))
		}
	}

	for name, value := range map[string]string{"BASELINE_WATER": c.BaselineWater, "BASELINE_GAS": c.BaselineGas} {
		if value == "" {
			continue
		}
		if d, err := decimal.NewFromString(value); err != nil || d.IsNegative() {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be a non-negative number", name, value))
		}
	}

	if c.HistoryLimit < 1 || c.HistoryLimit > billing.DefaultLedgerLimit {
		errors = append(errors, fmt.Sprintf("invalid history limit %d: must be between 1 and %d", c.HistoryLimit, billing.DefaultLedgerLimit))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if _, err := cron.ParseStandard(c.ExportSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid export schedule '%s': %v", c.ExportSchedule, err))
	}

	if c.ExportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at least 1", c.ExportBatchSize))
	} else if c.ExportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at most 1000", c.ExportBatchSize))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings only the export worker needs. Without
// AMQP_URL the worker relies on the schedule alone; without a spreadsheet it
// exports to memory.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.DataBackend != "sqlite" {
		errors = append(errors, "export worker requires the sqlite backend")
	}
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "GOOGLE_SHEET_NAME is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Start returns the configured first billing period
func (c *Config) Start() core.Period {
	p, err := core.ParsePeriod(c.StartPeriod)
	if err != nil {
		return core.Period{Year: 2024, Month: 12}
	}
	return p
}

// Tariff resolves the rate table and meter baselines: the rates file first,
// then BASELINE_* overrides.
func (c *Config) Tariff() (core.RateTable, core.Baselines, error) {
	rates := core.DefaultRates()
	baselines := core.DefaultBaselines()

	if c.RatesFile != "" {
		var err error
		rates, baselines, err = core.LoadTariff(c.RatesFile)
		if err != nil {
			return core.RateTable{}, nil, fmt.Errorf("load rates file: %w", err)
		}
	}

	for cat, value := range map[core.Category]string{core.Water: c.BaselineWater, core.Gas: c.BaselineGas} {
		if value == "" {
			continue
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return core.RateTable{}, nil, fmt.Errorf("parse %s baseline: %w", cat, err)
		}
		baselines[cat] = d
	}

	return rates, baselines, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
