package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/orders/:id/approve"),
		attribute.String("customer.document", "123"),
		attribute.String("auth_token", "x"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsPrefixOnly(t *testing.T) {
	err := SafeError(fmt.Errorf("load order: %w", errors.New("connection refused to 10.0.0.1")))
	assert.EqualError(t, err, "load order")
	assert.Nil(t, SafeError(nil))
}
