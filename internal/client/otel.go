package client

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/robocup-autoref/autoref/internal/client"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
