package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ServeEnv is the process environment read by pw serve.
type ServeEnv struct {
	JWTSecret string `env:"PAIRWISE_JWT_SECRET"`
	LogLevel  string `env:"PAIRWISE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PAIRWISE_LOG_FORMAT" envDefault:"json"`
	// DevLogin enables the token minting endpoint.
	DevLogin bool `env:"PAIRWISE_DEV_LOGIN" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServeEnv parses ServeEnv and checks required values.
func LoadServeEnv() (ServeEnv, error) {
	var e ServeEnv
	if err := ParseEnv(&e); err != nil {
		return e, err
	}
	if e.JWTSecret == "" {
		return e, fmt.Errorf("PAIRWISE_JWT_SECRET is required for bearer auth")
	}
	return e, nil
}
