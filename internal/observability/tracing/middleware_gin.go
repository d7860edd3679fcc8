package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/payrelay/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Payment outcome values as set by the verify handler.
const (
	outcomeSoftFail = "test_mode_soft_fail"
	outcomeHardFail = "hard_fail"
)

// GinMiddleware instruments inbound HTTP requests.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("payrelay/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("tenant_id", obscontext.TenantIDFromContext(c.Request.Context())),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)

		recordPaymentOutcome(c, span)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

// recordPaymentOutcome tags the span with what the handler decided. A hard
// fail marks the span as an error even though the response is a 400.
func recordPaymentOutcome(c *gin.Context, span trace.Span) {
	if status := c.GetString(obscontext.GinKeyWebhookStatus); status != "" {
		span.SetAttributes(attribute.String("payment.webhook_status", status))
	}
	if resolution := c.GetString(obscontext.GinKeyTenantResolution); resolution != "" {
		span.SetAttributes(attribute.String("tenant.resolution", resolution))
	}

	outcome := c.GetString(obscontext.GinKeyPaymentOutcome)
	if outcome == "" {
		return
	}
	span.SetAttributes(attribute.String("payment.outcome", outcome))
	switch outcome {
	case outcomeSoftFail:
		span.AddEvent("payment.test_mode_soft_fail")
	case outcomeHardFail:
		span.SetStatus(codes.Error, "payment signature rejected")
	}
}
