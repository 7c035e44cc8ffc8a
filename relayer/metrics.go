package relayer

import (
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/armon/go-metrics/prometheus"
)

// MetricsSubsystem is the first element of every metric key emitted by the
// relay engine.
const MetricsSubsystem = "relayer"

// SetupMetrics installs a global in-memory metrics sink mirrored to a
// prometheus sink, so the HTTP server can expose the engine's metrics on its
// scrape endpoint.
func SetupMetrics(serviceName string) (*metrics.Metrics, error) {
	promSink, err := prometheus.NewPrometheusSink()
	if err != nil {
		return nil, err
	}

	sink := metrics.FanoutSink{metrics.NewInmemSink(10*time.Second, time.Minute), promSink}
	return metrics.NewGlobal(metrics.DefaultConfig(serviceName), sink)
}

func kindLabel(kind RelayKind) []metrics.Label {
	return []metrics.Label{{Name: "kind", Value: string(kind)}}
}

func incrWorkCounter(name string, kind RelayKind) {
	metrics.IncrCounterWithLabels([]string{MetricsSubsystem, "work", name}, 1, kindLabel(kind))
}

func setPendingGauge(n int) {
	metrics.SetGauge([]string{MetricsSubsystem, "work", "pending"}, float32(n))
}

func measureProcessTime(start time.Time, kind RelayKind) {
	metrics.MeasureSinceWithLabels([]string{MetricsSubsystem, "process", "latency"}, start, kindLabel(kind))
}
