package domain

import "time"

// FleetStats are recomputed in full on every polling tick from the current
// snapshot of every live session, never maintained incrementally. Launched
// counts successful launch attempts for the run.
type FleetStats struct {
	Launched  int
	Healthy   int
	Buffering int
	Errors    int
	Timestamp time.Time
}

// FleetState is the orchestrator lifecycle for one run.
type FleetState string

const (
	FleetIdle         FleetState = "idle"
	FleetLaunching    FleetState = "launching"
	FleetMonitoring   FleetState = "monitoring"
	FleetShuttingDown FleetState = "shutting-down"
	FleetStopped      FleetState = "stopped"
)

// FinalReport summarizes a run after the teardown sweep.
type FinalReport struct {
	Closed      int
	Total       int
	PeakHealthy int
	LastStats   FleetStats
	Duration    time.Duration
}
