package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"viewerswarm/internal/core/domain"
	"viewerswarm/internal/core/ports"
	"viewerswarm/pkg/utils"
)

type trackedSession struct {
	session *domain.Session
	handle  ports.BrowserSession
}

type fleetService struct {
	launcher     ports.SessionLauncher
	sink         ports.ReportSink
	staggerDelay time.Duration
	pollInterval time.Duration
	logger       *zap.Logger

	mu          sync.RWMutex
	state       domain.FleetState
	sessions    []*trackedSession
	stats       domain.FleetStats
	peakHealthy int
	startedAt   time.Time

	monitorCancel context.CancelFunc

	shutdownOnce sync.Once
	finalReport  *domain.FinalReport
}

func NewFleetService(launcher ports.SessionLauncher, sink ports.ReportSink, staggerDelay, pollInterval time.Duration, logger *zap.Logger) ports.FleetService {
	return &fleetService{
		launcher:     launcher,
		sink:         sink,
		staggerDelay: staggerDelay,
		pollInterval: pollInterval,
		logger:       logger,
		state:        domain.FleetIdle,
		startedAt:    time.Now(),
	}
}

// LaunchAll issues launches for indices 1..budget strictly sequentially. The
// stagger delay between consecutive launches is enforced by a rate limiter;
// the first launch goes immediately and no delay trails the last one. A
// shutdown observed between launches aborts the remaining indices without
// retracting sessions already launched.
func (f *fleetService) LaunchAll(ctx context.Context, budget int, targetURL string) {
	f.setState(domain.FleetLaunching)
	f.logger.Info("launching fleet",
		zap.Int("budget", budget),
		zap.String("url", targetURL),
		zap.Duration("stagger", f.staggerDelay),
	)

	limiter := rate.NewLimiter(rate.Every(f.staggerDelay), 1)
	for index := 1; index <= budget; index++ {
		if err := limiter.Wait(ctx); err != nil {
			f.logger.Info("launch sequence aborted", zap.Int("next_index", index))
			return
		}
		if f.State() == domain.FleetShuttingDown || f.State() == domain.FleetStopped {
			f.logger.Info("launch sequence aborted", zap.Int("next_index", index))
			return
		}

		handle, result := f.launcher.Launch(ctx, index, targetURL)
		if result.Success {
			f.track(index, handle, result)
		} else {
			f.logger.Warn("session launch failed",
				zap.Int("session", index),
				zap.String("reason", result.Err),
			)
		}

		f.sink.LaunchProgress(domain.LaunchProgress{
			Index:   index,
			Total:   budget,
			Success: result.Success,
			Err:     result.Err,
			Stats:   f.Stats(),
		})
	}
}

func (f *fleetService) track(index int, handle ports.BrowserSession, result *domain.LaunchResult) {
	state := domain.SessionPlaying
	if result.Err != "" {
		state = domain.SessionLaunching
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, &trackedSession{
		session: &domain.Session{
			ID:         handle.ID(),
			Index:      index,
			State:      state,
			LaunchErr:  result.Err,
			LaunchedAt: time.Now(),
		},
		handle: handle,
	})
	f.stats.Launched = len(f.sessions)
}

// Monitor pulls a fresh snapshot of every tracked session on a fixed
// interval, reclassifies the whole fleet and replaces the statistics
// wholesale. One slow or broken session delays only its own tick's
// aggregation; it never stops monitoring of the rest.
func (f *fleetService) Monitor(ctx context.Context) {
	mctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.mu.Lock()
	if f.state == domain.FleetShuttingDown || f.state == domain.FleetStopped {
		f.mu.Unlock()
		return
	}
	f.state = domain.FleetMonitoring
	f.monitorCancel = cancel
	f.mu.Unlock()

	f.logger.Info("monitoring fleet", zap.Duration("poll_interval", f.pollInterval))

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mctx.Done():
			return
		case <-ticker.C:
			stats := f.sampleOnce(mctx)
			f.sink.FleetStats(stats)
			f.logger.Debug("fleet sampled",
				zap.Int("launched", stats.Launched),
				zap.Int("healthy", stats.Healthy),
				zap.Int("buffering", stats.Buffering),
				zap.Int("errors", stats.Errors),
			)
		}
	}
}

// sampleOnce performs one wait-for-all sweep: probe reads issue concurrently
// per session, the aggregation step waits for all of them, then the fleet
// statistics are replaced in a single assignment so a reader never observes a
// mix of old and new counts. An unreadable probe counts as an error for this
// tick only; the session stays tracked and is re-sampled next tick.
func (f *fleetService) sampleOnce(ctx context.Context) domain.FleetStats {
	f.mu.RLock()
	tracked := make([]*trackedSession, len(f.sessions))
	copy(tracked, f.sessions)
	f.mu.RUnlock()

	healths := make([]domain.Health, len(tracked))
	var wg sync.WaitGroup
	for i, ts := range tracked {
		wg.Add(1)
		go func(i int, ts *trackedSession) {
			defer wg.Done()
			snap, err := ts.handle.ReadProbe(ctx)
			if err != nil {
				snap = domain.UnreadableSnapshot(err.Error())
			}
			ts.session.LastHealth = snap
			healths[i] = snap.Classify()
			// An advisory launch stays in the launching state until a sweep
			// observes it healthy for the first time.
			if healths[i] == domain.HealthHealthy {
				ts.session.State = domain.SessionPlaying
			}
		}(i, ts)
	}
	wg.Wait()

	stats := domain.FleetStats{Launched: len(tracked), Timestamp: time.Now()}
	for _, h := range healths {
		switch h {
		case domain.HealthHealthy:
			stats.Healthy++
		case domain.HealthBuffering:
			stats.Buffering++
		default:
			stats.Errors++
		}
	}

	f.mu.Lock()
	f.stats = stats
	if stats.Healthy > f.peakHealthy {
		f.peakHealthy = stats.Healthy
	}
	f.mu.Unlock()
	return stats
}

// Shutdown stops the monitoring loop first, then tears down every tracked
// session best-effort, never aborting the sweep on an individual teardown
// failure. Idempotent: a second call while or after shutdown returns the
// report produced by the first.
func (f *fleetService) Shutdown(ctx context.Context) *domain.FinalReport {
	f.shutdownOnce.Do(func() {
		f.mu.Lock()
		f.state = domain.FleetShuttingDown
		cancel := f.monitorCancel
		tracked := make([]*trackedSession, len(f.sessions))
		copy(tracked, f.sessions)
		f.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		f.logger.Info("tearing down fleet", zap.Int("sessions", len(tracked)))
		closed := 0
		for _, ts := range tracked {
			if err := ts.handle.Close(ctx); err != nil {
				f.logger.Warn("session teardown failed",
					zap.Int("session", ts.session.Index),
					zap.Error(err),
				)
				continue
			}
			ts.session.State = domain.SessionClosed
			closed++
		}

		f.mu.Lock()
		f.state = domain.FleetStopped
		report := &domain.FinalReport{
			Closed:      closed,
			Total:       len(tracked),
			PeakHealthy: f.peakHealthy,
			LastStats:   f.stats,
			Duration:    time.Since(f.startedAt),
		}
		f.finalReport = report
		f.mu.Unlock()

		f.logger.Info("fleet stopped",
			zap.Int("closed", closed),
			zap.Int("total", len(tracked)),
			zap.String("duration", utils.FormatDuration(report.Duration)),
		)
		f.sink.FinalReport(*report)
	})

	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.finalReport
}

func (f *fleetService) Stats() domain.FleetStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stats
}

func (f *fleetService) State() domain.FleetState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func (f *fleetService) setState(state domain.FleetState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}
