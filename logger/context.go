package logger

import "context"

// IntoContext stores l in ctx so that WithContext(ctx) returns it later.
// Request scoped fields (request_id, command) are typically attached first via WithFields.
func IntoContext(ctx context.Context, l Logger) context.Context {
	zl, ok := l.(*ZeroLogger)
	if !ok || zl == nil {
		return ctx
	}
	return zl.zlog.WithContext(ctx)
}
