package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"viewerswarm/internal/core/domain"
	"viewerswarm/internal/core/ports"
	"viewerswarm/pkg/utils"
)

// Runtime implements ports.BrowserRuntime on chromedp. Every session gets its
// own Chrome process and profile so sessions cannot share a media cache or
// interfere with each other's playback.
type Runtime struct {
	logger *zap.Logger
	// baseCtx parents every session's allocator. Sessions must outlive the
	// run context: an interrupt cancels the run, and the teardown sweep still
	// has to close each browser afterwards.
	baseCtx context.Context
}

func NewRuntime(logger *zap.Logger) *Runtime {
	return &Runtime{logger: logger, baseCtx: context.Background()}
}

func (r *Runtime) NewSession(ctx context.Context, opts ports.SessionOptions) (ports.BrowserSession, error) {
	// The caller context gates only the acquisition itself; the session's own
	// lifetime is not tied to it.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := domain.SessionID(utils.GenerateSessionID())
	taskCtx, cancel := r.newSessionContext(opts)

	// Start the browser process now so launch failures surface here rather
	// than on first navigation.
	if err := chromedp.Run(taskCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	r.logger.Debug("browser session started", zap.String("session_id", string(id)))
	return &session{
		id:                 id,
		ctx:                taskCtx,
		cancel:             cancel,
		bufferingThreshold: opts.BufferingThreshold,
	}, nil
}

// newSessionContext builds the session's context chain off the runtime's base
// context, never off a caller context.
func (r *Runtime) newSessionContext(opts ports.SessionOptions) (context.Context, context.CancelFunc) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
		// Embedded players need autoplay and cross-origin manifest fetches to
		// work without any manual interaction.
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("mute-audio", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(r.baseCtx, allocOpts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	return taskCtx, func() { taskCancel(); allocCancel() }
}

type session struct {
	id                 domain.SessionID
	ctx                context.Context
	cancel             context.CancelFunc
	bufferingThreshold time.Duration
}

func (s *session) ID() domain.SessionID {
	return s.id
}

func (s *session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *session) InstallProbe(ctx context.Context) error {
	script := fmt.Sprintf(probeScript, s.bufferingThreshold.Milliseconds())
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("install probe: %w", err)
	}
	return nil
}

func (s *session) StartPlayback(ctx context.Context) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(startPlaybackScript, nil))
}

func (s *session) ReadProbe(ctx context.Context) (*domain.ProbeSnapshot, error) {
	var snap domain.ProbeSnapshot
	readCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(readCtx, chromedp.Evaluate(readProbeScript, &snap)); err != nil {
		if strings.Contains(err.Error(), domain.ProbeUnreadable) {
			return nil, domain.ErrProbeNotInstalled
		}
		return nil, err
	}
	return &snap, nil
}

func (s *session) Close(ctx context.Context) error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	return nil
}
