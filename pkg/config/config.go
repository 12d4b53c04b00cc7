package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServerPort      string
	Environment     string
	LogLevel        string
	FirebaseProject string
	StorageDriver   string // firestore or memory
	AuditBucket     string

	ServiceAccountJSON string
	ServiceAccountPath string
	AllowedOrigins     []string

	FeeRate           decimal.Decimal
	PlatformAccountID string
	AutoConfirmWindow time.Duration
	SweepInterval     time.Duration
	SweepBatchSize    int
	StorageTimeout    time.Duration
	StorageRetries    int
	OperatorIDs       []string

	PurchaseRatePerMinute int
	PurchaseBurst         int

	PaymentGateway      string // midtrans or simulated
	MidtransServerKey   string
	MidtransEnvironment string
}

func Load() (*Config, error) {
	godotenv.Load()

	feeRate, err := decimal.NewFromString(getEnv("PLATFORM_FEE_RATE", "0.05"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_RATE: %w", err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PLATFORM_FEE_RATE must be in [0,1), got %s", feeRate)
	}

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", ""),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		StorageDriver:   getEnv("STORAGE_DRIVER", "firestore"),
		AuditBucket:     getEnv("AUDIT_BUCKET", ""),

		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		AllowedOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS"),

		FeeRate:           feeRate,
		PlatformAccountID: getEnv("PLATFORM_ACCOUNT_ID", "platform"),
		AutoConfirmWindow: getEnvAsDuration("ESCROW_AUTO_CONFIRM_WINDOW", 72*time.Hour),
		SweepInterval:     getEnvAsDuration("ESCROW_SWEEP_INTERVAL", 10*time.Minute),
		SweepBatchSize:    int(getEnvAsInt64("ESCROW_SWEEP_BATCH_SIZE", 100)),
		StorageTimeout:    getEnvAsDuration("STORAGE_TIMEOUT", 5*time.Second),
		StorageRetries:    int(getEnvAsInt64("STORAGE_RETRIES", 3)),
		OperatorIDs:       getEnvAsList("OPERATOR_IDS"),

		PurchaseRatePerMinute: int(getEnvAsInt64("PURCHASE_RATE_PER_MINUTE", 30)),
		PurchaseBurst:         int(getEnvAsInt64("PURCHASE_BURST", 5)),

		PaymentGateway:      getEnv("PAYMENT_GATEWAY", "simulated"),
		MidtransServerKey:   getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransEnvironment: getEnv("MIDTRANS_ENVIRONMENT", "sandbox"),
	}

	if config.StorageDriver != "firestore" && config.StorageDriver != "memory" {
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", config.StorageDriver)
	}
	if config.StorageDriver == "firestore" && config.FirebaseProject == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore driver")
	}

	if config.PaymentGateway != "midtrans" && config.PaymentGateway != "simulated" {
		return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", config.PaymentGateway)
	}
	if config.PaymentGateway == "midtrans" && config.MidtransServerKey == "" {
		return nil, fmt.Errorf("MIDTRANS_SERVER_KEY is required for the midtrans gateway")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
