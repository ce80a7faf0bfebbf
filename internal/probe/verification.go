package probe

import (
	"context"
	"fmt"
	"reflect"

	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
)

// verifyResults checks that every accepted score is on the leaderboard with
// its latest fields.
func verifyResults(ctx context.Context, submitted []Submitted, entries []model.KeyedEntry, stats *Stats) error {
	board := make(map[model.Key]model.ScoreEntry, len(entries))
	for _, e := range entries {
		board[e.Key] = e.Entry
	}

	for _, want := range submitted {
		got, ok := board[want.Key]
		if !ok {
			stats.Missing++
			logger.Get().Warn(ctx, "score missing from leaderboard", logger.String("key", string(want.Key)))
			continue
		}
		for field, value := range want.Entry {
			if !reflect.DeepEqual(got[field], value) {
				stats.Missing++
				logger.Get().Warn(ctx, "score not up to date",
					logger.String("key", string(want.Key)),
					logger.String("field", field),
					logger.Any("want", value),
					logger.Any("got", got[field]),
				)
				break
			}
		}
	}

	if stats.Missing > 0 {
		return fmt.Errorf("%w: %d of %d scores missing or stale", ErrVerification, stats.Missing, len(submitted))
	}
	return nil
}
