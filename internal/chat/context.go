package chat

import "context"

type updateKey struct{}

// WithUpdate stores the update being processed in ctx.
func WithUpdate(ctx context.Context, u *Update) context.Context {
	return context.WithValue(ctx, updateKey{}, u)
}

// UpdateFromContext returns the update stored by WithUpdate, or nil.
func UpdateFromContext(ctx context.Context) *Update {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Value(updateKey{}).(*Update)
	return u
}
