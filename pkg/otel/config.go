package otel

import (
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects the exporter by EndpointURL scheme: grpc:// uses OTLP/gRPC, http(s):// uses OTLP/HTTP.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	EndpointURL    string
	Enabled        bool
	SampleRatio    float64
	Insecure       bool
	Attributes     map[string]string
}

func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		SampleRatio: 1.0,
		Insecure:    true,
	}
}

func (c Config) resourceAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(c.ServiceName)}
	if c.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(c.ServiceVersion))
	}
	if c.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(c.Environment))
	}
	for k, v := range c.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
