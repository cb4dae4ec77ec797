package obs

import (
	"context"
	"time"

	"trip-assignment-service/internal/platform/logger"
)

// Time logs the duration of an operation. Use as:
//
//	defer obs.Time(ctx, "op.name")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)
		l := logger.WithContext(ctx)

		if errp != nil && *errp != nil {
			l.Warn().Str("op", name).Int64("dur_ms", dur.Milliseconds()).Err(*errp).Msg("op failed")
			return
		}
		l.Debug().Str("op", name).Int64("dur_ms", dur.Milliseconds()).Msg("op done")
	}
}
