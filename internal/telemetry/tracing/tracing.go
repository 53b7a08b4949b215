package tracing

import (
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var GlobalTracer = otel.Tracer("bodymake-backend")

// EndSpanWithErrCheck ends the span, marking it as failed if err is set.
func EndSpanWithErrCheck(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}

// HoneycombSetup configures the OpenTelemetry SDK via the honeycomb distro.
// Returns a shutdown func which is a no-op when tracing is disabled.
func HoneycombSetup(tracingEnabled bool, serviceName string) (shutdown func(), err error) {
	if !tracingEnabled {
		log.Debugln("honeycomb tracing disabled, otel setup skipped")
		return func() {}, nil
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
	)
	if err != nil {
		return nil, err
	}

	log.Debugln("honeycomb otel setup done")
	return otelShutdown, nil
}
