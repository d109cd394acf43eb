package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "MAKUDOKU"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "makudoku.db"
	defaultLogLevel     = "info"
	defaultTokenTTL     = 12 * time.Hour
	defaultClueTarget   = 30
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	AdminSecret     string
	SigningSecret   string
	TokenTTL        time.Duration
	ClueTarget      int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.shutdown_timeout", "10s")
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("admin.token_ttl", defaultTokenTTL.String())
	configViper.SetDefault("generator.clue_target", defaultClueTarget)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		AdminSecret:     configViper.GetString("admin.secret"),
		SigningSecret:   configViper.GetString("admin.signing_secret"),
		TokenTTL:        configViper.GetDuration("admin.token_ttl"),
		ClueTarget:      configViper.GetInt("generator.clue_target"),
		AllowedOrigins:  configViper.GetStringSlice("cors.allowed_origins"),
		ShutdownTimeout: configViper.GetDuration("http.shutdown_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AdminSecret) == "" {
		return fmt.Errorf("admin.secret is required")
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("admin.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.ClueTarget < 17 || c.ClueTarget > 81 {
		return fmt.Errorf("generator.clue_target must be between 17 and 81")
	}
	return nil
}
