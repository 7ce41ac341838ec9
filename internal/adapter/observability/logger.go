package observability

import (
	"log/slog"
	"os"

	"github.com/fairyhunter13/bucketscan/internal/config"
)

// SetupLogger builds the process-wide JSON logger. Dev environments log
// at debug, the test harness keeps noise down at warn, everything else
// runs at info. Service and env fields ride on every line so the server
// and worker fleets stay distinguishable in aggregated output.
func SetupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cfg.IsDev():
		level = slog.LevelDebug
	case cfg.IsTest():
		level = slog.LevelWarn
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}
