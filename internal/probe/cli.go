package probe

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/scorebridge/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging logs to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		logFile = "probe_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file), "text"); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file, nil
}

// ShowHelp prints usage information for the probe.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Scorebridge Probe
=================

Opens concurrent game sessions against a running scorebridge, submits and
updates scores over the websocket protocol and checks that every score lands
on the shared leaderboard.

Usage:
  go run ./cmd/probe [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -sessions int
        Number of concurrent sessions (default 4)
  -scores int
        New scores submitted per session (default 25)
  -timeout duration
        Per-step timeout (default 10s)
  -settle duration
        Wait for background writes before verifying (default 2s)
  -log string
        Log file for probe output (default: probe_log_TIMESTAMP.log)
  -verbose
        Log every message
  -help
        Show this help message

Examples:
  go run ./cmd/probe -sessions 16 -scores 100
  go run ./cmd/probe -url http://localhost:8080 -verbose

The service must run with the subscribe read policy.
`)
}
