package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/scorebridge/internal/probe"
)

const defaultProbeTimeout = 10 * time.Minute

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		sessions = flag.Int("sessions", probe.DefaultSessions, "Number of concurrent sessions")
		scores   = flag.Int("scores", probe.DefaultScores, "New scores submitted per session")
		timeout  = flag.Duration("timeout", probe.DefaultTimeout, "Per-step timeout")
		settle   = flag.Duration("settle", probe.DefaultSettle, "Wait for background writes before verifying")
		logFile  = flag.String("log", "", "Log file for probe output (default: probe_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Log every message")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp()
		return
	}

	closer, err := probe.SetupLogging(*logFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
	defer cancel()

	cfg := &probe.Config{
		BaseURL:  *baseURL,
		Sessions: *sessions,
		Scores:   *scores,
		Timeout:  *timeout,
		Settle:   *settle,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}
	if _, err := probe.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Probe failed: " + err.Error() + "\n")
		_ = closer.Close()
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: resources released above
	}
}
