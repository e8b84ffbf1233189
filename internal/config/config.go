/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisOTPPrefix             string `mapstructure:"REDIS_OTP_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	JWKSURL                    string `mapstructure:"JWKS_URL"`
	InternalAPIKey             string `mapstructure:"INTERNAL_API_KEY"`
	VTUAPIBaseURL              string `mapstructure:"VTU_API_BASE_URL"`
	VTUAPIKey                  string `mapstructure:"VTU_API_KEY"`
	PayoutAPIBaseURL           string `mapstructure:"PAYOUT_API_BASE_URL"`
	PayoutSecretKey            string `mapstructure:"PAYOUT_SECRET_KEY"`
	WebhookSecret              string `mapstructure:"WEBHOOK_SECRET"`
	WithdrawalFeeKobo          int64  `mapstructure:"WITHDRAWAL_FEE_KOBO"`
	OTPTTLSeconds              int    `mapstructure:"OTP_TTL_SECONDS"`
	OTPMaxAttempts             int    `mapstructure:"OTP_MAX_ATTEMPTS"`
	ReconcileSchedule          string `mapstructure:"RECONCILE_SCHEDULE"`
	ReconcileStaleAfterMinutes int    `mapstructure:"RECONCILE_STALE_AFTER_MINUTES"`
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
	viper.SetDefault("REDIS_OTP_PREFIX", "wallet:otp")
	viper.SetDefault("WITHDRAWAL_FEE_KOBO", 5000)
	viper.SetDefault("OTP_TTL_SECONDS", 600)
	viper.SetDefault("OTP_MAX_ATTEMPTS", 5)
	viper.SetDefault("RECONCILE_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("RECONCILE_STALE_AFTER_MINUTES", 15)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_OTP_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "WALLET_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("VTU_API_BASE_URL")
	_ = viper.BindEnv("VTU_API_KEY")
	_ = viper.BindEnv("PAYOUT_API_BASE_URL")
	_ = viper.BindEnv("PAYOUT_SECRET_KEY")
	_ = viper.BindEnv("WEBHOOK_SECRET")
	_ = viper.BindEnv("WITHDRAWAL_FEE_KOBO")
	_ = viper.BindEnv("WITHDRAWAL_FEE")
	_ = viper.BindEnv("WITHDRAWAL_FEE_NAIRA")
	_ = viper.BindEnv("OTP_TTL_SECONDS")
	_ = viper.BindEnv("OTP_MAX_ATTEMPTS")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")
	_ = viper.BindEnv("RECONCILE_STALE_AFTER_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
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
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("WALLET_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisOTPPrefix = strings.TrimSpace(config.RedisOTPPrefix)
	if config.RedisOTPPrefix == "" {
		config.RedisOTPPrefix = "wallet:otp"
	}

	// Allow specifying the fee in whole currency units via WITHDRAWAL_FEE or WITHDRAWAL_FEE_NAIRA.
	if viper.IsSet("WITHDRAWAL_FEE") {
		feeStr := strings.TrimSpace(viper.GetString("WITHDRAWAL_FEE"))
		if feeStr != "" {
			feeValue, parseErr := strconv.ParseFloat(feeStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid WITHDRAWAL_FEE\" value=%q err=%v", feeStr, parseErr)
			} else {
				config.WithdrawalFeeKobo = int64(math.Round(feeValue * 100))
			}
		}
	} else if viper.IsSet("WITHDRAWAL_FEE_NAIRA") {
		feeStr := strings.TrimSpace(viper.GetString("WITHDRAWAL_FEE_NAIRA"))
		if feeStr != "" {
			feeValue, parseErr := strconv.ParseFloat(feeStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid WITHDRAWAL_FEE_NAIRA\" value=%q err=%v", feeStr, parseErr)
			} else {
				config.WithdrawalFeeKobo = int64(math.Round(feeValue * 100))
			}
		}
	}

	if config.WithdrawalFeeKobo < 0 {
		log.Printf("level=warn component=config msg=\"negative withdrawal fee configured; coercing to zero\" fee_kobo=%d", config.WithdrawalFeeKobo)
		config.WithdrawalFeeKobo = 0
	}

	if config.OTPTTLSeconds <= 0 {
		config.OTPTTLSeconds = 600
	}
	if config.OTPMaxAttempts <= 0 {
		config.OTPMaxAttempts = 5
	}
	if strings.TrimSpace(config.ReconcileSchedule) == "" {
		config.ReconcileSchedule = "*/10 * * * *"
	}
	if config.ReconcileStaleAfterMinutes <= 0 {
		config.ReconcileStaleAfterMinutes = 15
	}

	return
}
