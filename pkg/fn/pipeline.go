package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Stage transforms In to Out within a context.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then composes two stages, short-circuiting on error.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, a A) Result[C] {
		r := first(ctx, a)
		if r.IsErr() {
			_, err := r.Unwrap()
			return Err[C](err)
		}
		v, _ := r.Unwrap()
		return second(ctx, v)
	}
}

// TracedStage wraps a stage with an OTel span, recording errors.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := otel.Tracer("pkg/fn").Start(ctx, name)
		defer span.End()
		result := stage(ctx, in)
		if result.IsErr() {
			_, err := result.Unwrap()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result
	}
}
