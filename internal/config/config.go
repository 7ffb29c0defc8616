/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * Gateway credentials normally come from the admin_settings table; the
 * PAYSTACK_ and FLUTTERWAVE_ variables here are boot-time fallbacks for
 * environments where the admin panel has not been configured yet.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	WalletEventExchange      string `mapstructure:"WALLET_EVENT_EXCHANGE"`
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	InternalAPIKey           string `mapstructure:"INTERNAL_API_KEY"`
	PaystackBaseURL          string `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackSecretKey        string `mapstructure:"PAYSTACK_SECRET_KEY"`
	FlutterwaveBaseURL       string `mapstructure:"FLUTTERWAVE_BASE_URL"`
	FlutterwaveSecretKey     string `mapstructure:"FLUTTERWAVE_SECRET_KEY"`
	FlutterwaveWebhookHash   string `mapstructure:"FLUTTERWAVE_WEBHOOK_HASH"`
	VerifyTimeoutSeconds     int    `mapstructure:"VERIFY_TIMEOUT_SECONDS"`
	VerifyRateLimitPerMinute int    `mapstructure:"VERIFY_RATE_LIMIT_PER_MINUTE"`
	RunMigrations            bool   `mapstructure:"RUN_MIGRATIONS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WALLET_EVENT_EXCHANGE", "izyconnect.events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "izyconnect:rate_limit")
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com/v3")
	viper.SetDefault("VERIFY_TIMEOUT_SECONDS", 20)
	viper.SetDefault("VERIFY_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("RUN_MIGRATIONS", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WALLET_EVENT_EXCHANGE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("PAYSTACK_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("FLUTTERWAVE_BASE_URL")
	_ = viper.BindEnv("FLUTTERWAVE_SECRET_KEY")
	_ = viper.BindEnv("FLUTTERWAVE_WEBHOOK_HASH")
	_ = viper.BindEnv("VERIFY_TIMEOUT_SECONDS")
	_ = viper.BindEnv("VERIFY_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RUN_MIGRATIONS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "izyconnect:rate_limit"
	}

	if config.VerifyTimeoutSeconds <= 0 {
		config.VerifyTimeoutSeconds = 20
	}
	if config.VerifyRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative verify rate limit configured; coercing to zero\" limit=%d", config.VerifyRateLimitPerMinute)
		config.VerifyRateLimitPerMinute = 0
	}

	return
}
