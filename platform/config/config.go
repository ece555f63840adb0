// Package config - общие для всех сервисов настройки окружения.
// Сервисные config-пакеты встраивают Common и добавляют свои поля.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"

	"github.com/shestoi/adminpanel/platform/kafka"
	"github.com/shestoi/adminpanel/platform/observability"
)

// Env окружение приложения
type Env string

const (
	// EnvLocal - запуск на хосте, зависимости на localhost
	EnvLocal Env = "local"
	// EnvDocker - запуск в compose, зависимости по именам сервисов
	EnvDocker Env = "docker"
)

// Pick выбирает дефолт в зависимости от окружения
func (e Env) Pick(local, docker string) string {
	if e == EnvDocker {
		return docker
	}
	return local
}

// Common поля, которые есть у каждого сервиса
type Common struct {
	AppEnv          Env           `env:"APP_ENV" envDefault:"local"`
	HTTPAddr        string        `env:"HTTP_ADDR"`
	HealthGRPCAddr  string        `env:"HEALTH_GRPC_ADDR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"3s"`
	JWTSecret       string        `env:"JWT_SECRET"`

	Otel  observability.Config
	Kafka kafka.Config
}

// Parse разбирает переменные окружения в dst (структура сервиса со встроенным Common)
func Parse(dst any) error {
	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyDefaults заполняет незаданные поля дефолтами окружения.
// port - порт HTTP сервиса из общей схемы (3001..3005).
func (c *Common) ApplyDefaults(serviceName string, port int) {
	if c.HTTPAddr == "" {
		c.HTTPAddr = c.AppEnv.Pick(fmt.Sprintf("127.0.0.1:%d", port), fmt.Sprintf("0.0.0.0:%d", port))
	}
	if c.JWTSecret == "" && c.AppEnv == EnvLocal {
		c.JWTSecret = "local-dev-secret"
	}
	c.Otel.ServiceName = serviceName
	c.Otel.DeploymentEnvironment = string(c.AppEnv)
}

// Validate проверяет общие поля
func (c Common) Validate() error {
	if c.AppEnv != EnvLocal && c.AppEnv != EnvDocker {
		return fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", c.AppEnv)
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be positive")
	}
	if c.Otel.SamplingRatio < 0 || c.Otel.SamplingRatio > 1 {
		return errors.New("OTEL_SAMPLING_RATIO must be in [0, 1]")
	}
	return c.Kafka.Validate()
}

// Fields возвращает общие поля для лога старта
func (c Common) Fields() []zap.Field {
	return []zap.Field{
		zap.String("app_env", string(c.AppEnv)),
		zap.String("http_addr", c.HTTPAddr),
		zap.String("health_grpc_addr", c.HealthGRPCAddr),
		zap.Duration("shutdown_timeout", c.ShutdownTimeout),
		zap.Duration("upstream_timeout", c.UpstreamTimeout),
		zap.Bool("otel_enabled", c.Otel.Enabled),
		zap.Bool("kafka_enabled", c.Kafka.Enabled),
		zap.Strings("kafka_brokers", c.Kafka.Brokers),
	}
}

// RequireURL проверяет, что значение - абсолютный http(s) URL
func RequireURL(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, value)
	}
	return nil
}

// MaskDSN прячет пароль в DSN/URI для логов
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}
