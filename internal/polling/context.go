package polling

import (
	"context"

	"rainout-go/internal/domain"
)

type runContextKey struct{}

// WithRunContext attaches rc to ctx.
func WithRunContext(ctx context.Context, rc domain.RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFrom returns the run context attached by the executor, if any.
func RunContextFrom(ctx context.Context) (domain.RunContext, bool) {
	rc, ok := ctx.Value(runContextKey{}).(domain.RunContext)
	return rc, ok
}
