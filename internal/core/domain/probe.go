package domain

// ProbeSnapshot is the playback state reported by the in-session probe.
// Only the two most recent one-second playback-time samples are retained;
// each read replaces the previous snapshot for its session.
type ProbeSnapshot struct {
	IsPlaying      bool     `json:"isPlaying"`
	CurrentTime    float64  `json:"currentTime"`
	PreviousTime   float64  `json:"previousTime"`
	StalledCount   int      `json:"stalledCount"`
	BufferingCount int      `json:"bufferingCount"`
	Errors         []string `json:"errors"`
	ReadyState     int      `json:"readyState"`
}

// ProbeUnreadable is recorded when a session's probe cannot be read, either
// because it was never installed or because the execution context is gone.
const ProbeUnreadable = "Monitor not initialized"

type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthBuffering Health = "buffering"
	HealthErrored   Health = "errored"
)

// Classify maps a snapshot to its health class. A session is healthy only if
// playback time strictly advanced between the two most recent samples; a
// session frozen at the same timestamp is never healthy even when it claims
// IsPlaying. Any recorded error makes the session errored regardless of
// playback advancement.
func (s *ProbeSnapshot) Classify() Health {
	if s == nil {
		return HealthErrored
	}
	if len(s.Errors) > 0 {
		return HealthErrored
	}
	if s.IsPlaying && s.CurrentTime > s.PreviousTime {
		return HealthHealthy
	}
	return HealthBuffering
}

// UnreadableSnapshot builds the snapshot reported for a session whose probe
// could not be read this tick. The session stays tracked and is re-sampled on
// the next tick.
func UnreadableSnapshot(reason string) *ProbeSnapshot {
	if reason == "" {
		reason = ProbeUnreadable
	}
	return &ProbeSnapshot{Errors: []string{reason}}
}
