package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Settlement SettlementConfig
	RateSource RateSourceConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DBName   string
	SSLMode  string
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// SettlementConfig holds the settlement engine configuration. BaseCurrency is
// the single currency all balances and debt relations are expressed in.
type SettlementConfig struct {
	BaseCurrency string
}

// RateSourceConfig holds the external exchange-rate source configuration.
type RateSourceConfig struct {
	URL          string
	Currencies   []string
	FetchTimeout time.Duration
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Username: getEnv("DB_USERNAME", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "tripsplit"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
		},
		Settlement: SettlementConfig{
			BaseCurrency: getEnv("BASE_CURRENCY", "KRW"),
		},
		RateSource: RateSourceConfig{
			URL:          getEnv("RATE_SOURCE_URL", ""),
			Currencies:   getEnvAsList("RATE_CURRENCIES", "USD,JPY,EUR"),
			FetchTimeout: time.Duration(getEnvAsInt("RATE_FETCH_TIMEOUT_SECONDS", 5)) * time.Second,
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
