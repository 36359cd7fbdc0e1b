package telemetry

import (
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Service identifies the running binary on every span and metric.
type Service struct {
	Name    string
	Version string
	Env     string
}

func (s Service) resource() *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(s.Name),
		semconv.ServiceVersion(s.Version),
		semconv.DeploymentEnvironment(s.Env),
	)
}
