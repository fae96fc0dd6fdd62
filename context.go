package teamauth

import "context"

// requestMeta is what the transport knows about the caller. The engine reads it for
// per-IP throttles and audit records.
type requestMeta struct {
	ip        string
	userAgent string
}

type requestMetaKey struct{}

func metaFrom(ctx context.Context) requestMeta {
	if ctx == nil {
		return requestMeta{}
	}
	m, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return m
}

// WithClientIP records the caller's IP address on ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	m := metaFrom(ctx)
	m.ip = ip
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// WithUserAgent records the caller's User-Agent on ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	m := metaFrom(ctx)
	m.userAgent = userAgent
	return context.WithValue(ctx, requestMetaKey{}, m)
}

func clientIPFromContext(ctx context.Context) string  { return metaFrom(ctx).ip }
func userAgentFromContext(ctx context.Context) string { return metaFrom(ctx).userAgent }
