package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

func TestNewResource_CarriesBuildInfo(t *testing.T) {
	res := newResource("defi-yields-mcp", "0.1.0", "abc1234")

	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "defi-yields-mcp", got[semconv.ServiceNameKey])
	assert.Equal(t, "0.1.0", got[semconv.ServiceVersionKey])
	assert.Equal(t, "abc1234", got["service.commit"])
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown := Init("", "defi-yields-mcp", "0.1.0", "dev")
	assert.NotPanics(t, shutdown)
	assert.NotPanics(t, func() {
		RecordError(context.Background(), errors.New("boom"))
	})
}
