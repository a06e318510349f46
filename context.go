package oidcsession

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Manager uses it
// for audit event metadata only; it never influences validation decisions.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
