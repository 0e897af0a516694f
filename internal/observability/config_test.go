package observability

import (
	"testing"

	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDisablesExportWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_ENABLED", "")

	cfg := LoadConfig(config.Config{AppName: "kitstock", Environment: "production"})
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "kitstock", cfg.ServiceName)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnablesExportWithEndpoint(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConfig(config.Config{OTLPEndpoint: "collector:4317", OTLPProtocol: "grpc"})
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.True(t, cfg.Debug())
}
