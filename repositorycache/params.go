package repositorycache

import (
	"context"
	"net/url"
)

type listParamsContextKey struct{}

// WithListParams attaches the query parameters that produced a listing to
// the context. CachedRepository only caches List and Count calls that carry
// them, since criteria functions cannot be turned into a key.
func WithListParams(ctx context.Context, params url.Values) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if params == nil {
		params = url.Values{}
	}
	return context.WithValue(ctx, listParamsContextKey{}, params)
}

func listParamsFromContext(ctx context.Context) (url.Values, bool) {
	if ctx == nil {
		return nil, false
	}
	params, ok := ctx.Value(listParamsContextKey{}).(url.Values)
	return params, ok
}
