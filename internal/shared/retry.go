package shared

import "context"

// WithConflictRetry runs fn, retrying on ConcurrencyConflictError up to
// attempts times. fn must re-read fresh state on every invocation; there is
// no merging of stale state. The last conflict is surfaced when the bound
// is exhausted.
func WithConflictRetry(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn(ctx)
		if err == nil || !IsConflict(err) {
			return err
		}
	}
	return err
}
