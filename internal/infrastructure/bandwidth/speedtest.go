package bandwidth

import (
	"context"
	"fmt"

	"github.com/showwin/speedtest-go/speedtest"
	"go.uber.org/zap"

	"viewerswarm/internal/core/domain"
	"viewerswarm/pkg/retry"
)

// Meter implements ports.BandwidthMeter against speedtest.net servers.
// Measurement failures are never fatal; callers fall back to manual entry.
type Meter struct {
	client   *speedtest.Speedtest
	retryCfg retry.Config
	logger   *zap.Logger
}

func NewMeter(logger *zap.Logger) *Meter {
	return &Meter{
		client:   speedtest.New(),
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}
}

func (m *Meter) Measure(ctx context.Context) (*domain.CapacityEstimate, error) {
	return retry.RetryWithResult(ctx, m.retryCfg, func() (*domain.CapacityEstimate, error) {
		return m.measureOnce(ctx)
	})
}

func (m *Meter) measureOnce(ctx context.Context) (*domain.CapacityEstimate, error) {
	m.logger.Info("measuring link bandwidth")

	servers, err := m.client.FetchServerListContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch speedtest servers: %w", err)
	}
	targets, err := servers.FindServer(nil)
	if err != nil {
		return nil, fmt.Errorf("select speedtest server: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no speedtest server available")
	}

	srv := targets[0]
	if err := srv.PingTestContext(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping test: %w", err)
	}
	if err := srv.DownloadTestContext(ctx); err != nil {
		return nil, fmt.Errorf("download test: %w", err)
	}
	if err := srv.UploadTestContext(ctx); err != nil {
		return nil, fmt.Errorf("upload test: %w", err)
	}

	est := &domain.CapacityEstimate{
		DownloadKbps: srv.DLSpeed.Mbps() * 1000,
		UploadKbps:   srv.ULSpeed.Mbps() * 1000,
		Ping:         srv.Latency,
	}
	if est.DownloadKbps <= 0 {
		return nil, fmt.Errorf("measurement returned non-positive download rate")
	}

	m.logger.Info("bandwidth measured",
		zap.Float64("download_kbps", est.DownloadKbps),
		zap.Float64("upload_kbps", est.UploadKbps),
		zap.Duration("ping", est.Ping),
	)
	return est, nil
}
