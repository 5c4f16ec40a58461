package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersInstallsPropagators(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "pollsd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	fields := otel.GetTextMapPropagator().Fields()
	require.Contains(t, fields, "traceparent")
	require.Contains(t, fields, "baggage")
}

func TestBuildResourceCarriesNetwork(t *testing.T) {
	res, err := buildResource(Config{ServiceName: "pollsd", Environment: "dev", NetworkName: "unit-local"})
	require.NoError(t, err)
	var network string
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "pollchain.network" {
			network = kv.Value.AsString()
		}
	}
	require.Equal(t, "unit-local", network)
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =skip,tenant=polls ")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "polls"}, headers)
	require.Empty(t, ParseHeaders(""))
}
