package ports

import (
	"context"

	"viewerswarm/internal/core/domain"
)

type CapacityService interface {
	EstimateBudget(downloadKbps float64, streamBitrateKbps int, safetyMargin float64) int
}

// SessionLauncher owns the lifecycle of one session up to the point where it
// is handed to the fleet. On Success the returned BrowserSession is live and
// instrumented; on failure it is nil and already torn down.
type SessionLauncher interface {
	Launch(ctx context.Context, index int, targetURL string) (BrowserSession, *domain.LaunchResult)
}

type FleetService interface {
	// LaunchAll launches sessions 1..budget strictly sequentially with the
	// configured stagger delay. A cancelled context aborts the remaining,
	// unlaunched indices; already-launched sessions are not retracted.
	LaunchAll(ctx context.Context, budget int, targetURL string)

	// Monitor runs the periodic health-sampling loop until the context is
	// cancelled or shutdown begins.
	Monitor(ctx context.Context)

	// Shutdown is idempotent; the first call stops monitoring, tears down
	// every tracked session best-effort, and produces the final report.
	// Subsequent calls return the same report.
	Shutdown(ctx context.Context) *domain.FinalReport

	Stats() domain.FleetStats
	State() domain.FleetState
}

// ReportSink consumes progress and periodic-stats events for live rendering.
type ReportSink interface {
	LaunchProgress(p domain.LaunchProgress)
	FleetStats(s domain.FleetStats)
	FinalReport(r domain.FinalReport)
}
