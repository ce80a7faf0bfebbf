// Package probe drives a running scorebridge through its websocket protocol
// and checks the resulting leaderboard.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scorebridge/pkg/logger"
)

// ErrVerification is returned when submitted scores are missing from the
// leaderboard.
var ErrVerification = errors.New("leaderboard verification failed")

// Run executes the complete probe and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	applyDefaults(cfg)
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("probe")

	log.Info(ctx, "starting scorebridge probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("scores", cfg.Scores),
		logger.Duration("timeout", cfg.Timeout),
	)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, cfg); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Play all sessions concurrently
	submitted, err := runSessions(ctx, cfg, stats)
	if err != nil {
		return stats, err
	}

	// Step 3: Let background writes land
	log.Info(ctx, "waiting for writes to settle", logger.Duration("settle", cfg.Settle))
	select {
	case <-ctx.Done():
		return stats, ctx.Err()
	case <-time.After(cfg.Settle):
	}

	// Step 4: Verify the leaderboard
	entries, err := getLeaderboard(ctx, cfg)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	verifyErr := verifyResults(ctx, submitted, entries, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return stats, verifyErr
	}
	log.Info(ctx, "probe completed successfully")
	return stats, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Sessions <= 0 {
		cfg.Sessions = DefaultSessions
	}
	if cfg.Scores < 0 {
		cfg.Scores = DefaultScores
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Settle < 0 {
		cfg.Settle = DefaultSettle
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	resp, err := newHTTPClient(cfg.Timeout).Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Any 200 is healthy; the body is the metrics scrape.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

func runSessions(ctx context.Context, cfg *Config, stats *Stats) ([]Submitted, error) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		submitted []Submitted
		errs      []error
	)
	for i := 0; i < cfg.Sessions; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s, err := dialSession(ctx, cfg, id)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			defer s.close()

			got, err := s.play(ctx)

			mu.Lock()
			defer mu.Unlock()
			stats.SessionsOpened++
			stats.ScoresSubmitted += s.stats.ScoresSubmitted
			stats.ScoresAccepted += s.stats.ScoresAccepted
			stats.ScoresUpdated += s.stats.ScoresUpdated
			stats.ScoresRejected += s.stats.ScoresRejected
			stats.LeaderboardUpdates += s.stats.LeaderboardUpdates
			submitted = append(submitted, got...)
			if err != nil {
				errs = append(errs, fmt.Errorf("session %d: %w", id, err))
			}
		}(i)
	}
	wg.Wait()
	return submitted, errors.Join(errs...)
}

// displayFinalStats logs the final probe statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.ScoresSubmitted+stats.ScoresUpdated) / stats.Duration.Seconds()
	}
	logger.Get().Named("probe").Info(ctx, "final statistics",
		logger.Int("sessionsOpened", stats.SessionsOpened),
		logger.Int("scoresSubmitted", stats.ScoresSubmitted),
		logger.Int("scoresAccepted", stats.ScoresAccepted),
		logger.Int("scoresUpdated", stats.ScoresUpdated),
		logger.Int("scoresRejected", stats.ScoresRejected),
		logger.Int("leaderboardUpdates", stats.LeaderboardUpdates),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("missing", stats.Missing),
		logger.Duration("duration", stats.Duration),
		logger.Float64("writesPerSecond", perSecond),
	)
}
