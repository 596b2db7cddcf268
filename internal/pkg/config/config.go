package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingSecret is returned by Load when a required merchant secret is unset.
var ErrMissingSecret = errors.New("config: missing required secret")

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int
	GRPCPort int

	// Merchant credentials. Never logged.
	MerchantKey  string
	MerchantSalt string

	GatewayURL      string
	PublicBaseURL   string
	FrontendBaseURL string

	LedgerPath string

	// RedisAddr selects the shared cooldown cache; empty means in-process.
	RedisAddr        string
	CooldownWindow   time.Duration
	CooldownCapacity int

	OTelServiceName string
}

// Load reads the service configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("GRPC_PORT", 9090)
	v.SetDefault("GATEWAY_URL", "https://test.payu.in/_payment")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("FRONTEND_BASE_URL", "")
	v.SetDefault("LEDGER_PATH", "./data/ledger.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("COOLDOWN_WINDOW", "3s")
	v.SetDefault("COOLDOWN_CAPACITY", 10000)
	v.SetDefault("OTEL_SERVICE_NAME", "payment-service")

	cfg := Config{
		AppEnv:           v.GetString("APP_ENV"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		HTTPPort:         v.GetInt("HTTP_PORT"),
		GRPCPort:         v.GetInt("GRPC_PORT"),
		MerchantKey:      strings.TrimSpace(v.GetString("MERCHANT_KEY")),
		MerchantSalt:     strings.TrimSpace(v.GetString("MERCHANT_SALT")),
		GatewayURL:       v.GetString("GATEWAY_URL"),
		PublicBaseURL:    strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("FRONTEND_BASE_URL"), "/"),
		LedgerPath:       v.GetString("LEDGER_PATH"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		CooldownWindow:   v.GetDuration("COOLDOWN_WINDOW"),
		CooldownCapacity: v.GetInt("COOLDOWN_CAPACITY"),
		OTelServiceName:  v.GetString("OTEL_SERVICE_NAME"),
	}

	if cfg.MerchantKey == "" {
		return Config{}, fmt.Errorf("%w: MERCHANT_KEY", ErrMissingSecret)
	}
	if cfg.MerchantSalt == "" {
		return Config{}, fmt.Errorf("%w: MERCHANT_SALT", ErrMissingSecret)
	}
	if cfg.CooldownWindow <= 0 {
		return Config{}, fmt.Errorf("config: COOLDOWN_WINDOW must be positive, got %s", cfg.CooldownWindow)
	}
	if cfg.CooldownCapacity <= 0 {
		return Config{}, fmt.Errorf("config: COOLDOWN_CAPACITY must be positive, got %d", cfg.CooldownCapacity)
	}

	return cfg, nil
}

// SandboxConfig configures the local gateway stand-in.
type SandboxConfig struct {
	AppEnv   string
	LogLevel string
	Port     int

	MerchantKey  string
	MerchantSalt string

	// Outcome is the default result of a sandbox payment: success, failure or pending.
	Outcome string
}

// LoadSandbox reads the sandbox gateway configuration from the environment.
// It shares MERCHANT_KEY and MERCHANT_SALT with the payment service.
func LoadSandbox() (SandboxConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SANDBOX_PORT", 8090)
	v.SetDefault("SANDBOX_OUTCOME", "success")

	cfg := SandboxConfig{
		AppEnv:       v.GetString("APP_ENV"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		Port:         v.GetInt("SANDBOX_PORT"),
		MerchantKey:  strings.TrimSpace(v.GetString("MERCHANT_KEY")),
		MerchantSalt: strings.TrimSpace(v.GetString("MERCHANT_SALT")),
		Outcome:      strings.ToLower(v.GetString("SANDBOX_OUTCOME")),
	}
	if cfg.MerchantKey == "" {
		return SandboxConfig{}, fmt.Errorf("%w: MERCHANT_KEY", ErrMissingSecret)
	}
	if cfg.MerchantSalt == "" {
		return SandboxConfig{}, fmt.Errorf("%w: MERCHANT_SALT", ErrMissingSecret)
	}
	return cfg, nil
}
