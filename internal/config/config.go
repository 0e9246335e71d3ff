/**
 * @description
 * This package handles the configuration management for the portfolio-service. It
 * uses the Viper library to read configuration from environment variables or an
 * optional .env file.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultServerPort            = "8086"
	defaultRedisKeyPrefix        = "transfa:portfolio"
	defaultEventsExchange        = "transfa.events"
	defaultPlaidEnv              = "sandbox"
	defaultPlaidCountryCodes     = "US"
	defaultSyncMaxTransactions   = 5000
	defaultSyncPageSize          = 500
	defaultSyncPageTimeoutSec    = 15
	defaultLookupTimeoutSec      = 10
	defaultAccountTimeoutSec     = 60
	defaultMaxConcurrentAccounts = 8
	defaultInstitutionCacheTTLH  = 24
	defaultCacheCleanupSchedule  = "@hourly"
	defaultPortfolioRateLimit    = 60
	defaultCursorCheckpointTTLH  = 720
)

// Config holds all the configuration variables for the portfolio-service.
type Config struct {
	ServerPort                      string `mapstructure:"SERVER_PORT"`
	DatabaseURL                     string `mapstructure:"DATABASE_URL"`
	RedisURL                        string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix                  string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL                     string `mapstructure:"RABBITMQ_URL"`
	EventsExchange                  string `mapstructure:"EVENTS_EXCHANGE"`
	PlaidEnv                        string `mapstructure:"PLAID_ENV"`
	PlaidBaseURL                    string `mapstructure:"PLAID_BASE_URL"`
	PlaidClientID                   string `mapstructure:"PLAID_CLIENT_ID"`
	PlaidSecret                     string `mapstructure:"PLAID_SECRET"`
	PlaidCountryCodesRaw            string `mapstructure:"PLAID_COUNTRY_CODES"`
	JWTSecret                       string `mapstructure:"JWT_SECRET"`
	InternalAPIKey                  string `mapstructure:"INTERNAL_API_KEY"`
	CredentialEncryptionKey         string `mapstructure:"CREDENTIAL_ENCRYPTION_KEY"`
	SyncMaxTransactions             int    `mapstructure:"SYNC_MAX_TRANSACTIONS"`
	SyncPageSize                    int    `mapstructure:"SYNC_PAGE_SIZE"`
	SyncPageTimeoutSeconds          int    `mapstructure:"SYNC_PAGE_TIMEOUT_SECONDS"`
	LookupTimeoutSeconds            int    `mapstructure:"LOOKUP_TIMEOUT_SECONDS"`
	AccountTimeoutSeconds           int    `mapstructure:"ACCOUNT_TIMEOUT_SECONDS"`
	MaxConcurrentAccounts           int    `mapstructure:"MAX_CONCURRENT_ACCOUNTS"`
	InstitutionCacheTTLHours        int    `mapstructure:"INSTITUTION_CACHE_TTL_HOURS"`
	InstitutionCacheCleanupSchedule string `mapstructure:"INSTITUTION_CACHE_CLEANUP_SCHEDULE"`
	PortfolioRateLimitPerMinute     int    `mapstructure:"PORTFOLIO_RATE_LIMIT_PER_MINUTE"`
	CursorCheckpointTTLHours        int    `mapstructure:"CURSOR_CHECKPOINT_TTL_HOURS"`
}

// LoadConfig reads configuration from environment variables and an optional .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("REDIS_KEY_PREFIX", defaultRedisKeyPrefix)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("PLAID_ENV", defaultPlaidEnv)
	viper.SetDefault("PLAID_COUNTRY_CODES", defaultPlaidCountryCodes)
	viper.SetDefault("SYNC_MAX_TRANSACTIONS", defaultSyncMaxTransactions)
	viper.SetDefault("SYNC_PAGE_SIZE", defaultSyncPageSize)
	viper.SetDefault("SYNC_PAGE_TIMEOUT_SECONDS", defaultSyncPageTimeoutSec)
	viper.SetDefault("LOOKUP_TIMEOUT_SECONDS", defaultLookupTimeoutSec)
	viper.SetDefault("ACCOUNT_TIMEOUT_SECONDS", defaultAccountTimeoutSec)
	viper.SetDefault("MAX_CONCURRENT_ACCOUNTS", defaultMaxConcurrentAccounts)
	viper.SetDefault("INSTITUTION_CACHE_TTL_HOURS", defaultInstitutionCacheTTLH)
	viper.SetDefault("INSTITUTION_CACHE_CLEANUP_SCHEDULE", defaultCacheCleanupSchedule)
	viper.SetDefault("PORTFOLIO_RATE_LIMIT_PER_MINUTE", defaultPortfolioRateLimit)
	viper.SetDefault("CURSOR_CHECKPOINT_TTL_HOURS", defaultCursorCheckpointTTLH)

	// Bind environment variables explicitly so they appear in Unmarshal.
	for _, key := range []string{
		"SERVER_PORT", "PORT", "DATABASE_URL", "REDIS_URL", "REDIS_KEY_PREFIX",
		"RABBITMQ_URL", "EVENTS_EXCHANGE", "PLAID_ENV", "PLAID_BASE_URL", "PLAID_CLIENT_ID",
		"PLAID_SECRET", "PLAID_COUNTRY_CODES", "JWT_SECRET", "INTERNAL_API_KEY",
		"CREDENTIAL_ENCRYPTION_KEY", "SYNC_MAX_TRANSACTIONS", "SYNC_PAGE_SIZE",
		"SYNC_PAGE_TIMEOUT_SECONDS", "LOOKUP_TIMEOUT_SECONDS", "ACCOUNT_TIMEOUT_SECONDS",
		"MAX_CONCURRENT_ACCOUNTS", "INSTITUTION_CACHE_TTL_HOURS",
		"INSTITUTION_CACHE_CLEANUP_SCHEDULE", "PORTFOLIO_RATE_LIMIT_PER_MINUTE",
		"CURSOR_CHECKPOINT_TTL_HOURS",
	} {
		_ = viper.BindEnv(key)
	}

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file; using environment values", "component", "config", "error", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.PlaidEnv = strings.ToLower(strings.TrimSpace(config.PlaidEnv))
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisKeyPrefix), ":")
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = defaultRedisKeyPrefix
	}
	if strings.TrimSpace(config.InstitutionCacheCleanupSchedule) == "" {
		config.InstitutionCacheCleanupSchedule = defaultCacheCleanupSchedule
	}

	coercePositive(&config.SyncMaxTransactions, "SYNC_MAX_TRANSACTIONS", defaultSyncMaxTransactions)
	coercePositive(&config.SyncPageSize, "SYNC_PAGE_SIZE", defaultSyncPageSize)
	coercePositive(&config.SyncPageTimeoutSeconds, "SYNC_PAGE_TIMEOUT_SECONDS", defaultSyncPageTimeoutSec)
	coercePositive(&config.LookupTimeoutSeconds, "LOOKUP_TIMEOUT_SECONDS", defaultLookupTimeoutSec)
	coercePositive(&config.AccountTimeoutSeconds, "ACCOUNT_TIMEOUT_SECONDS", defaultAccountTimeoutSec)
	coercePositive(&config.MaxConcurrentAccounts, "MAX_CONCURRENT_ACCOUNTS", defaultMaxConcurrentAccounts)
	coercePositive(&config.InstitutionCacheTTLHours, "INSTITUTION_CACHE_TTL_HOURS", defaultInstitutionCacheTTLH)
	coercePositive(&config.PortfolioRateLimitPerMinute, "PORTFOLIO_RATE_LIMIT_PER_MINUTE", defaultPortfolioRateLimit)
	coercePositive(&config.CursorCheckpointTTLHours, "CURSOR_CHECKPOINT_TTL_HOURS", defaultCursorCheckpointTTLH)

	return
}

func coercePositive(value *int, key string, fallback int) {
	if *value > 0 {
		return
	}
	slog.Warn("non-positive value configured; using default", "component", "config", "key", key, "value", *value, "default", fallback)
	*value = fallback
}

// PlaidCountryCodes returns the configured country codes, upper-cased.
func (c Config) PlaidCountryCodes() []string {
	var codes []string
	for _, code := range strings.Split(c.PlaidCountryCodesRaw, ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return []string{defaultPlaidCountryCodes}
	}
	return codes
}

func (c Config) SyncPageTimeout() time.Duration {
	return time.Duration(c.SyncPageTimeoutSeconds) * time.Second
}

func (c Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

func (c Config) AccountTimeout() time.Duration {
	return time.Duration(c.AccountTimeoutSeconds) * time.Second
}

func (c Config) InstitutionCacheTTL() time.Duration {
	return time.Duration(c.InstitutionCacheTTLHours) * time.Hour
}

func (c Config) CursorCheckpointTTL() time.Duration {
	return time.Duration(c.CursorCheckpointTTLHours) * time.Hour
}
