package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"viewerswarm/internal/core/domain"
	"viewerswarm/internal/core/ports"
	"viewerswarm/pkg/logger"
)

// minReadyState is the HTMLMediaElement readyState at which enough data is
// buffered for sustained playback (HAVE_FUTURE_DATA).
const minReadyState = 3

type sessionService struct {
	runtime           ports.BrowserRuntime
	opts              ports.SessionOptions
	pageLoadTimeout   time.Duration
	videoStartTimeout time.Duration
	probePollEvery    time.Duration
	logger            *zap.Logger
}

func NewSessionService(runtime ports.BrowserRuntime, opts ports.SessionOptions, pageLoadTimeout, videoStartTimeout time.Duration, logger *zap.Logger) ports.SessionLauncher {
	return &sessionService{
		runtime:           runtime,
		opts:              opts,
		pageLoadTimeout:   pageLoadTimeout,
		videoStartTimeout: videoStartTimeout,
		probePollEvery:    500 * time.Millisecond,
		logger:            logger,
	}
}

// Launch brings one session online: acquire an isolated browser, navigate to
// the target, install the probe, start muted playback, then wait for the
// probe to confirm advancing playback. A session that loads and installs its
// probe but never confirms playback within the timeout is still a success
// with an advisory error; only failures before probe installation are fatal
// to the attempt.
func (s *sessionService) Launch(ctx context.Context, index int, targetURL string) (ports.BrowserSession, *domain.LaunchResult) {
	log := logger.WithSession(s.logger, index)

	sess, err := s.runtime.NewSession(ctx, s.opts)
	if err != nil {
		log.Warn("browser launch failed", zap.Error(err))
		return nil, &domain.LaunchResult{Index: index, Err: err.Error()}
	}

	if err := sess.Navigate(ctx, targetURL, s.pageLoadTimeout); err != nil {
		log.Warn("navigation failed", zap.Error(err))
		_ = sess.Close(ctx)
		return nil, &domain.LaunchResult{Index: index, Err: err.Error()}
	}

	if err := sess.InstallProbe(ctx); err != nil {
		log.Warn("probe install failed", zap.Error(err))
		_ = sess.Close(ctx)
		return nil, &domain.LaunchResult{Index: index, Err: err.Error()}
	}

	// Autoplay policies can reject play() even with audio muted; the rejection
	// means "not yet playing", not a failed launch.
	if err := sess.StartPlayback(ctx); err != nil {
		log.Debug("play attempt rejected", zap.Error(err))
	}

	if !s.waitForPlayback(ctx, sess) {
		log.Info("session launched without playback confirmation")
		return sess, &domain.LaunchResult{Index: index, Success: true, Err: domain.AdvisoryNotPlaying}
	}

	log.Info("session playing")
	return sess, &domain.LaunchResult{Index: index, Success: true}
}

// waitForPlayback polls the probe until it reports advancing, sufficiently
// buffered playback, up to the video-start timeout.
func (s *sessionService) waitForPlayback(ctx context.Context, sess ports.BrowserSession) bool {
	deadline := time.Now().Add(s.videoStartTimeout)
	ticker := time.NewTicker(s.probePollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false
			}
			snap, err := sess.ReadProbe(ctx)
			if err != nil {
				continue
			}
			if snap.IsPlaying && snap.CurrentTime > 0 && snap.ReadyState >= minReadyState {
				return true
			}
		}
	}
}
