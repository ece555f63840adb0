package kafka

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// LoadEnv читает KAFKA_* переменные окружения
func LoadEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse kafka env: %w", err)
	}
	return cfg, cfg.Validate()
}
