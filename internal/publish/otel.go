package publish

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/lobbyhost/internal/publish"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
