package logging

import (
	"context"

	"github.com/google/uuid"
)

// GetRequestIDFromCtx returns the request id stored in ctx or "" when the
// call did not originate from an HTTP request.
func GetRequestIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(reqKey).(string); ok {
		return v
	}
	return ""
}

func MakeContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, reqKey, requestID)
}

func MakeContextWithNewRequestID(ctx context.Context) context.Context {
	return MakeContextWithRequestID(ctx, uuid.NewString())
}
