package observability

// Config настройки OpenTelemetry. Теги env читаются через caarlos0/env в config каждого сервиса.
type Config struct {
	Enabled       bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SamplingRatio float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"1.0"`

	// заполняются сервисом, не из окружения
	ServiceName           string `env:"-"`
	DeploymentEnvironment string `env:"-"`
	ServiceVersion        string `env:"SERVICE_VERSION"`
}
