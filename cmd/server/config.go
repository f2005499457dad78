package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries every tunable the server needs. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	ServerAddr  string `env:"SERVER_ADDR" envDefault:":8080"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"file:auth.db?cache=shared&mode=rwc"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	SigningKey      string   `env:"AUTH_SIGNING_KEY"`
	SigningMethod   string   `env:"AUTH_SIGNING_METHOD" envDefault:"HS256"`
	TokenExpiration int      `env:"AUTH_TOKEN_EXPIRATION" envDefault:"1"`
	Issuer          string   `env:"AUTH_ISSUER" envDefault:""`
	Audience        []string `env:"AUTH_AUDIENCE" envSeparator:","`
	ContextKey      string   `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	TokenLookup     string   `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization"`
	AuthScheme      string   `env:"AUTH_SCHEME" envDefault:"Bearer"`

	AuthorName  string `env:"AUTHOR_NAME" envDefault:""`
	AuthorEmail string `env:"AUTHOR_EMAIL" envDefault:""`
	AuthorURL   string `env:"AUTHOR_URL" envDefault:""`
}

// LoadConfig reads .env when present and parses the environment.
func LoadConfig() (*Config, error) {
	// Missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required")
	}

	if c.TokenExpiration <= 0 {
		return fmt.Errorf("AUTH_TOKEN_EXPIRATION must be a positive number of hours")
	}

	return nil
}

func (c *Config) GetSigningKey() string { return c.SigningKey }

func (c *Config) GetSigningMethod() string { return c.SigningMethod }

func (c *Config) GetContextKey() string { return c.ContextKey }

func (c *Config) GetTokenExpiration() int { return c.TokenExpiration }

func (c *Config) GetTokenLookup() string { return c.TokenLookup }

func (c *Config) GetAuthScheme() string { return c.AuthScheme }

func (c *Config) GetIssuer() string { return c.Issuer }

func (c *Config) GetAudience() []string { return c.Audience }

// AuthorInfo flattens the author section for the info endpoint.
func (c *Config) AuthorInfo() map[string]string {
	return map[string]string{
		"name":  c.AuthorName,
		"email": c.AuthorEmail,
		"url":   c.AuthorURL,
	}
}
