package observability

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var once sync.Once

// InitRuntimeStats registers observable runtime gauges on the global
// meter provider and starts the otel runtime instrumentation. Call it
// after an exporter is installed; repeated calls are no-ops.
func InitRuntimeStats(name string) {
	once.Do(func() {
		scope := "xtree/app/default"
		if n := strings.TrimSpace(name); n != "" {
			scope = "xtree/app/" + n
		}
		meter := otel.Meter(scope, metric.WithInstrumentationVersion(otelruntime.Version()))
		lo.Must(meter.Int64ObservableUpDownCounter(
			"app.core.goroutines",
			metric.WithDescription("Live goroutine count."),
			metric.WithInt64Callback(func(_ context.Context, ob metric.Int64Observer) error {
				ob.Observe(int64(runtime.NumGoroutine()))
				return nil
			}),
		))
		lo.Must(meter.Int64ObservableUpDownCounter(
			"app.core.gomaxprocs",
			metric.WithDescription("Effective GOMAXPROCS."),
			metric.WithInt64Callback(func(_ context.Context, ob metric.Int64Observer) error {
				ob.Observe(int64(runtime.GOMAXPROCS(0)))
				return nil
			}),
		))
		_ = otelruntime.Start()
	})
}
