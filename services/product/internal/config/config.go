package config

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	platformconfig "github.com/shestoi/adminpanel/platform/config"
)

const (
	ServiceName = "product"
	httpPort    = 3002
)

// Storage backend каталога
type Storage string

const (
	StorageMongo  Storage = "mongo"
	StorageMemory Storage = "memory"
)

// Config содержит конфигурацию Product Service
type Config struct {
	platformconfig.Common

	Storage     Storage `env:"PRODUCT_STORAGE" envDefault:"mongo"`
	MongoURI    string  `env:"PRODUCT_MONGO_URI"`
	MongoDBName string  `env:"PRODUCT_MONGO_DB" envDefault:"products"`
}

// Load загружает конфигурацию из переменных окружения
// Читает APP_ENV и устанавливает дефолты в зависимости от окружения
func Load() (Config, error) {
	var cfg Config
	if err := platformconfig.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults(ServiceName, httpPort)

	if cfg.MongoURI == "" {
		cfg.MongoURI = cfg.AppEnv.Pick("mongodb://localhost:27017", "mongodb://product-mongo:27017")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Common.Validate(); err != nil {
		return err
	}
	switch c.Storage {
	case StorageMongo:
		if c.MongoURI == "" {
			return errors.New("PRODUCT_MONGO_URI is required")
		}
		if c.MongoDBName == "" {
			return errors.New("PRODUCT_MONGO_DB is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid PRODUCT_STORAGE: %s (must be 'mongo' or 'memory')", c.Storage)
	}
	return nil
}

// Fields для лога старта, без секретов
func (c Config) Fields() []zap.Field {
	return append(c.Common.Fields(),
		zap.String("storage", string(c.Storage)),
		zap.String("mongo_uri", platformconfig.MaskDSN(c.MongoURI)),
		zap.String("mongo_db", c.MongoDBName),
	)
}
