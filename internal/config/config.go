package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"achgen"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"achgen"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	// Originator identifies the company this engine generates files for.
	// It is passed explicitly into the batch and file services; nothing
	// reads it ambiently.
	Originator struct {
		CompanyID          string `envconfig:"ORIGINATOR_COMPANY_ID"`
		CompanyName        string `envconfig:"ORIGINATOR_COMPANY_NAME"`
		OriginRouting      string `envconfig:"ORIGINATOR_ORIGIN_ROUTING"`
		OriginName         string `envconfig:"ORIGINATOR_ORIGIN_NAME"`
		DestinationRouting string `envconfig:"ORIGINATOR_DESTINATION_ROUTING"`
		DestinationName    string `envconfig:"ORIGINATOR_DESTINATION_NAME"`
		SettlementRouting  string `envconfig:"ORIGINATOR_SETTLEMENT_ROUTING"`
		SettlementAccount  string `envconfig:"ORIGINATOR_SETTLEMENT_ACCOUNT"`
	}

	Vault struct {
		// Hex-encoded 32-byte AES key for account number encryption.
		Key string `envconfig:"VAULT_KEY"`
	}

	Auth struct {
		// HMAC secret for API bearer tokens.
		JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
	}

	Webhook struct {
		URL string `envconfig:"WEBHOOK_URL"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
