/**
 * @description
 * This package handles the configuration management for hb-server. It uses
 * the Viper library to read configuration from environment variables (with
 * an optional .env file), providing a centralized and straightforward way
 * to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for hb-server.
// These values are loaded from environment variables.
type Config struct {
	ListenAddr            string `mapstructure:"LISTEN_ADDR"`
	AdminAddr             string `mapstructure:"ADMIN_ADDR"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	InternalAPIKey        string `mapstructure:"INTERNAL_API_KEY"`
	BankCode              string `mapstructure:"BANK_CODE"`
	PINTryMax             int    `mapstructure:"PIN_TRY_MAX"`
	ErrorMax              int    `mapstructure:"ERROR_MAX"`
	SessionTimeoutSeconds int    `mapstructure:"SESSION_TIMEOUT_SECONDS"`
	MaxPayloadBytes       int    `mapstructure:"MAX_PAYLOAD_BYTES"`
	TLSCertFile           string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile            string `mapstructure:"TLS_KEY_FILE"`
	TLSClientCAFile       string `mapstructure:"TLS_CLIENT_CA_FILE"`
	PeerBankBaseURL       string `mapstructure:"PEER_BANK_BASE_URL"`
	PeerBankAPIKey        string `mapstructure:"PEER_BANK_API_KEY"`
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
	viper.SetDefault("LISTEN_ADDR", ":8420")
	viper.SetDefault("ADMIN_ADDR", ":8421")
	viper.SetDefault("BANK_CODE", "HERB")
	viper.SetDefault("PIN_TRY_MAX", 3)
	viper.SetDefault("ERROR_MAX", 10)
	viper.SetDefault("SESSION_TIMEOUT_SECONDS", 600)
	viper.SetDefault("MAX_PAYLOAD_BYTES", 65536)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("LISTEN_ADDR")
	_ = viper.BindEnv("ADMIN_ADDR")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "HB_SERVER_INTERNAL_API_KEY")
	_ = viper.BindEnv("BANK_CODE")
	_ = viper.BindEnv("PIN_TRY_MAX")
	_ = viper.BindEnv("ERROR_MAX")
	_ = viper.BindEnv("SESSION_TIMEOUT_SECONDS")
	_ = viper.BindEnv("MAX_PAYLOAD_BYTES")
	_ = viper.BindEnv("TLS_CERT_FILE")
	_ = viper.BindEnv("TLS_KEY_FILE")
	_ = viper.BindEnv("TLS_CLIENT_CA_FILE")
	_ = viper.BindEnv("PEER_BANK_BASE_URL")
	_ = viper.BindEnv("PEER_BANK_API_KEY")

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

	config.BankCode = strings.ToUpper(strings.TrimSpace(config.BankCode))
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)

	if config.PINTryMax <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive PIN_TRY_MAX; using default\" value=%d", config.PINTryMax)
		config.PINTryMax = 3
	}
	if config.PINTryMax > 255 {
		log.Printf("level=warn component=config msg=\"PIN_TRY_MAX exceeds counter width; capping\" value=%d", config.PINTryMax)
		config.PINTryMax = 255
	}
	if config.ErrorMax <= 0 {
		config.ErrorMax = 10
	}
	if config.SessionTimeoutSeconds <= 0 {
		config.SessionTimeoutSeconds = 600
	}
	if config.MaxPayloadBytes <= 0 {
		config.MaxPayloadBytes = 65536
	}

	return
}
