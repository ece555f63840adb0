package config

import (
	"go.uber.org/zap"

	platformconfig "github.com/shestoi/adminpanel/platform/config"
)

const (
	ServiceName = "reporting"
	httpPort    = 3005
)

// Config содержит конфигурацию Reporting Service. Своего хранилища нет.
type Config struct {
	platformconfig.Common

	UserServiceURL    string `env:"USER_SERVICE_URL"`
	ProductServiceURL string `env:"PRODUCT_SERVICE_URL"`
	OrderServiceURL   string `env:"ORDER_SERVICE_URL"`
	PaymentServiceURL string `env:"PAYMENT_SERVICE_URL"`
}

// Load читает env и подставляет дефолты окружения для незаданных переменных
func Load() (Config, error) {
	var cfg Config
	if err := platformconfig.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults(ServiceName, httpPort)

	defaults := []struct {
		dst           *string
		local, docker string
	}{
		{&cfg.UserServiceURL, "http://localhost:3001", "http://user:3001"},
		{&cfg.ProductServiceURL, "http://localhost:3002", "http://product:3002"},
		{&cfg.OrderServiceURL, "http://localhost:3003", "http://order:3003"},
		{&cfg.PaymentServiceURL, "http://localhost:3004", "http://payment:3004"},
	}
	for _, d := range defaults {
		if *d.dst == "" {
			*d.dst = cfg.AppEnv.Pick(d.local, d.docker)
		}
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
	urls := []struct{ name, value string }{
		{"USER_SERVICE_URL", c.UserServiceURL},
		{"PRODUCT_SERVICE_URL", c.ProductServiceURL},
		{"ORDER_SERVICE_URL", c.OrderServiceURL},
		{"PAYMENT_SERVICE_URL", c.PaymentServiceURL},
	}
	for _, u := range urls {
		if err := platformconfig.RequireURL(u.name, u.value); err != nil {
			return err
		}
	}
	return nil
}

// Fields для лога старта
func (c Config) Fields() []zap.Field {
	return append(c.Common.Fields(),
		zap.String("user_service_url", c.UserServiceURL),
		zap.String("product_service_url", c.ProductServiceURL),
		zap.String("order_service_url", c.OrderServiceURL),
		zap.String("payment_service_url", c.PaymentServiceURL),
	)
}
