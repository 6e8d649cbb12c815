package ports

import (
	"context"
	"time"

	"viewerswarm/internal/core/domain"
)

// SessionOptions configure one isolated browser session.
type SessionOptions struct {
	Headless           bool
	ViewportWidth      int
	ViewportHeight     int
	BufferingThreshold time.Duration
}

// BrowserSession is one isolated browser instance under exclusive control of
// its session controller. The controller only ever reads probe state; all
// writes happen inside the session.
type BrowserSession interface {
	ID() domain.SessionID
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	InstallProbe(ctx context.Context) error
	StartPlayback(ctx context.Context) error
	ReadProbe(ctx context.Context) (*domain.ProbeSnapshot, error)
	Close(ctx context.Context) error
}

// BrowserRuntime acquires isolated sessions.
type BrowserRuntime interface {
	NewSession(ctx context.Context, opts SessionOptions) (BrowserSession, error)
}

// BandwidthMeter measures the link's download rate. Implementations must fail
// with an error rather than blocking indefinitely; callers recover via manual
// entry.
type BandwidthMeter interface {
	Measure(ctx context.Context) (*domain.CapacityEstimate, error)
}
