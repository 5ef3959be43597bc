// Package telemetry wires one OpenCensus trace/metrics exporter, selected
// by config.Config.Telemetry.Exporter, behind a single Setup entrypoint —
// the domain-stack counterpart of the teacher's five-exporter go.mod
// require block, none of which the retrieved source actually wired into
// a running process.
package telemetry

import (
	"fmt"
	"net/http"

	"contrib.go.opencensus.io/exporter/aws"
	"contrib.go.opencensus.io/exporter/jaeger"
	"contrib.go.opencensus.io/exporter/prometheus"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"contrib.go.opencensus.io/exporter/zipkin"
	ddtrace "github.com/DataDog/opencensus-go-exporter-datadog"
	openzipkin "github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"

	"github.com/isg-automation/scheduler/config"
)

// Handle is the live telemetry wiring for one process lifetime: an
// optional /metrics handler (only the prometheus exporter serves one) and
// a Shutdown to flush/detach the exporter on graceful shutdown.
type Handle struct {
	MetricsHandler http.Handler
	Shutdown       func()
}

// Setup registers the exporter named by cfg.Exporter and returns the
// Handle the HTTP server and main's shutdown path need. An empty or
// "none" Exporter name disables telemetry entirely (Handle's Shutdown is
// a no-op, MetricsHandler nil); an unrecognized name returns an error.
func Setup(cfg config.TelemetryConfig) (*Handle, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "automation-scheduler"
	}

	switch cfg.Exporter {
	case "", "none":
		return &Handle{Shutdown: func() {}}, nil

	case "prometheus":
		pe, err := prometheus.NewExporter(prometheus.Options{Namespace: serviceName})
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating prometheus exporter: %w", err)
		}
		view.RegisterExporter(pe)
		return &Handle{MetricsHandler: pe, Shutdown: func() { view.UnregisterExporter(pe) }}, nil

	case "jaeger":
		je, err := jaeger.NewExporter(jaeger.Options{
			CollectorEndpoint: cfg.JaegerEndpoint,
			ServiceName:       serviceName,
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating jaeger exporter: %w", err)
		}
		trace.RegisterExporter(je)
		return &Handle{Shutdown: func() { trace.UnregisterExporter(je); je.Flush() }}, nil

	case "zipkin":
		if cfg.ZipkinEndpoint == "" {
			return nil, fmt.Errorf("telemetry: zipkin exporter requires ZipkinEndpoint")
		}
		localEndpoint, err := openzipkin.NewEndpoint(serviceName, "")
		if err != nil {
			return nil, fmt.Errorf("telemetry: building zipkin local endpoint: %w", err)
		}
		reporter := zipkinhttp.NewReporter(cfg.ZipkinEndpoint)
		ze := zipkin.NewExporter(reporter, localEndpoint)
		trace.RegisterExporter(ze)
		return &Handle{Shutdown: func() { trace.UnregisterExporter(ze); reporter.Close() }}, nil

	case "stackdriver":
		sd, err := stackdriver.NewExporter(stackdriver.Options{ProjectID: cfg.GCPProjectID})
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating stackdriver exporter: %w", err)
		}
		trace.RegisterExporter(sd)
		view.RegisterExporter(sd)
		return &Handle{Shutdown: func() {
			trace.UnregisterExporter(sd)
			view.UnregisterExporter(sd)
			sd.Flush()
		}}, nil

	case "xray":
		xe, err := aws.NewExporter(aws.WithVersion("latest"))
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating X-Ray exporter: %w", err)
		}
		trace.RegisterExporter(xe)
		return &Handle{Shutdown: func() { trace.UnregisterExporter(xe); xe.Flush() }}, nil

	case "datadog":
		dd, err := ddtrace.NewExporter(ddtrace.Options{
			Service:   serviceName,
			TraceAddr: cfg.DatadogAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating datadog exporter: %w", err)
		}
		trace.RegisterExporter(dd)
		return &Handle{Shutdown: func() { trace.UnregisterExporter(dd); dd.Stop() }}, nil

	default:
		return nil, fmt.Errorf("telemetry: unrecognized exporter %q", cfg.Exporter)
	}
}
