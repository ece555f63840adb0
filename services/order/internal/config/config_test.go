package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_LocalDefaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:3003" {
		t.Errorf("Expected HTTPAddr=127.0.0.1:3003, got %s", cfg.HTTPAddr)
	}
	if cfg.ProductServiceURL != "http://localhost:3002" {
		t.Errorf("Expected ProductServiceURL=http://localhost:3002, got %s", cfg.ProductServiceURL)
	}
	if cfg.PaymentServiceURL != "http://localhost:3004" {
		t.Errorf("Expected PaymentServiceURL=http://localhost:3004, got %s", cfg.PaymentServiceURL)
	}
	if cfg.FailureMode != "open" {
		t.Errorf("Expected FailureMode=open, got %s", cfg.FailureMode)
	}
	if cfg.Saga.ReconcileInterval != 30*time.Second || cfg.Saga.StallAfter != time.Minute || cfg.Saga.MaxAttempts != 5 {
		t.Errorf("Unexpected saga defaults: %+v", cfg.Saga)
	}
	if !strings.Contains(cfg.PostgresDSN, "localhost") {
		t.Errorf("Expected local PostgresDSN, got %s", cfg.PostgresDSN)
	}
}

func TestLoad_DockerDefaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "docker")
	os.Setenv("JWT_SECRET", "s3cret")
	os.Setenv("PAYMENT_SERVICE_URL", "http://payments.internal:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HTTPAddr != "0.0.0.0:3003" {
		t.Errorf("Expected HTTPAddr=0.0.0.0:3003, got %s", cfg.HTTPAddr)
	}
	if cfg.ProductServiceURL != "http://product:3002" {
		t.Errorf("Expected ProductServiceURL=http://product:3002, got %s", cfg.ProductServiceURL)
	}
	// явно заданная переменная не перетирается дефолтом
	if cfg.PaymentServiceURL != "http://payments.internal:9000" {
		t.Errorf("Expected PaymentServiceURL from env, got %s", cfg.PaymentServiceURL)
	}
	if !strings.Contains(cfg.PostgresDSN, "order-postgres") {
		t.Errorf("Expected docker PostgresDSN, got %s", cfg.PostgresDSN)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad failure mode", map[string]string{"ORDER_FAILURE_MODE": "maybe"}},
		{"bad storage", map[string]string{"ORDER_STORAGE": "sqlite"}},
		{"zero attempts", map[string]string{"SAGA_MAX_ATTEMPTS": "0"}},
		{"bad product url", map[string]string{"PRODUCT_SERVICE_URL": "product:3002"}},
		{"docker without secret", map[string]string{"APP_ENV": "docker"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %v", tt.env)
			}
		})
	}
}
