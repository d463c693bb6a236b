package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type LedgerConfig struct {
	MaxDeposit      decimal.Decimal
	TransactRetries int
	QRCodeTTL       time.Duration
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		MaxDeposit:      getEnvAsDecimal("LEDGER_MAX_DEPOSIT", decimal.NewFromInt(1_000_000)),
		TransactRetries: getEnvAsInt("LEDGER_TRANSACT_RETRIES", 3),
		QRCodeTTL:       getEnvAsDuration("QR_CODE_TTL", 5*time.Minute),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return defaultVal
}
