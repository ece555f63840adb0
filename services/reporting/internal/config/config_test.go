package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_LocalDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:3005", cfg.HTTPAddr)
	require.Equal(t, "http://localhost:3001", cfg.UserServiceURL)
	require.Equal(t, "http://localhost:3002", cfg.ProductServiceURL)
	require.Equal(t, "http://localhost:3003", cfg.OrderServiceURL)
	require.Equal(t, "http://localhost:3004", cfg.PaymentServiceURL)
}

func TestLoad_DockerDefaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "docker")
	os.Setenv("JWT_SECRET", "s3cret")
	os.Setenv("PAYMENT_SERVICE_URL", "http://payments.internal:8080")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:3005", cfg.HTTPAddr)
	require.Equal(t, "http://user:3001", cfg.UserServiceURL)
	require.Equal(t, "http://order:3003", cfg.OrderServiceURL)
	require.Equal(t, "http://payments.internal:8080", cfg.PaymentServiceURL)
}

func TestLoad_InvalidURL(t *testing.T) {
	os.Clearenv()
	os.Setenv("PRODUCT_SERVICE_URL", "product:3002")

	_, err := Load()
	require.ErrorContains(t, err, "PRODUCT_SERVICE_URL")
}
