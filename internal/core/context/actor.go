package context

import "context"

type actorKey struct{}

// WithActor records who triggered the current operation (cashier, stock clerk,
// order workflow). Authentication happens upstream; the value is taken as given.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns the actor or empty string.
func GetActor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
