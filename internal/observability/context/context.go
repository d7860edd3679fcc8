package context

import (
	"context"
	"strings"
)

type ctxKey string

// Keys handlers set on the gin context for the logging and tracing middlewares.
const (
	GinKeyPaymentOutcome   = "payment_outcome"
	GinKeyWebhookStatus    = "webhook_status"
	GinKeyTenantResolution = "tenant_resolution"
)

const (
	requestIDKey ctxKey = "request_id"
	tenantIDKey  ctxKey = "tenant_id"
)

// WithRequestID stores the request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

// RequestIDFromContext returns the request id or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithTenantID stores the resolved tenant id on the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, strings.TrimSpace(tenantID))
}

// TenantIDFromContext returns the tenant id or an empty string.
func TenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(tenantIDKey).(string)
	return value
}
