package probe

import (
	"time"

	"github.com/okian/scorebridge/internal/domain/model"
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL  string        // Base URL of the service, http or https
	Sessions int           // Number of concurrent game sessions
	Scores   int           // New scores submitted per session
	Timeout  time.Duration // Per-step timeout for HTTP calls and acknowledgements
	Settle   time.Duration // Wait for background writes before verifying
	LogFile  string        // Log file for probe output
	Verbose  bool          // Log every message
}

// Submitted is one score the probe expects to find on the leaderboard.
type Submitted struct {
	Key   model.Key
	Entry model.ScoreEntry
}

// Stats holds probe statistics.
type Stats struct {
	SessionsOpened     int
	ScoresSubmitted    int
	ScoresAccepted     int
	ScoresUpdated      int
	ScoresRejected     int
	LeaderboardUpdates int
	LeaderboardEntries int
	Missing            int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
