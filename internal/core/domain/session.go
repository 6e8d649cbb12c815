package domain

import "time"

type SessionID string

type SessionState string

const (
	SessionLaunching SessionState = "launching"
	SessionPlaying   SessionState = "playing"
	SessionClosed    SessionState = "closed"
)

// Session is one browser-driven viewer. Index is 1-based and stable for the
// run; a failed session is never relaunched under the same index.
type Session struct {
	ID         SessionID
	Index      int
	State      SessionState
	LaunchErr  string
	LastHealth *ProbeSnapshot
	LaunchedAt time.Time
}

// LaunchResult is the outcome of a single launch attempt. Success means the
// session is alive and instrumented, not that playback was confirmed; an
// unconfirmed launch carries the advisory text in Err.
type LaunchResult struct {
	Index   int
	Success bool
	Err     string
}

// AdvisoryNotPlaying is the non-fatal Err value set on a launch whose probe
// never confirmed advancing playback within the video-start timeout.
const AdvisoryNotPlaying = "Video not playing yet"

// LaunchProgress is pushed to the report sink after every launch attempt.
type LaunchProgress struct {
	Index   int
	Total   int
	Success bool
	Err     string
	Stats   FleetStats
}
