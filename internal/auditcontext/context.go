package auditcontext

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type ipAddressKey struct{}
type userAgentKey struct{}

// Metadata describes the request that caused an audited change.
type Metadata struct {
	RequestID string
	IPAddress string
	UserAgent string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey{}, strings.TrimSpace(ip))
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, strings.TrimSpace(userAgent))
}

func FromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return Metadata{}
	}
	meta := Metadata{}
	meta.RequestID, _ = ctx.Value(requestIDKey{}).(string)
	meta.IPAddress, _ = ctx.Value(ipAddressKey{}).(string)
	meta.UserAgent, _ = ctx.Value(userAgentKey{}).(string)
	return meta
}
