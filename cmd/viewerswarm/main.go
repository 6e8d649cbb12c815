package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"viewerswarm/internal/core/domain"
	"viewerswarm/internal/core/ports"
	"viewerswarm/internal/core/services"
	"viewerswarm/internal/infrastructure/bandwidth"
	"viewerswarm/internal/infrastructure/browser"
	"viewerswarm/internal/infrastructure/report"
	"viewerswarm/pkg/config"
	apperrors "viewerswarm/pkg/errors"
	"viewerswarm/pkg/logger"
	"viewerswarm/pkg/validation"
)

var (
	flagURL      string
	flagMax      int
	flagHeadless bool
	flagYes      bool
	flagConfig   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "viewerswarm",
		Short: "Estimate link capacity and stress an HLS stream with browser viewers",
		Long: "viewerswarm estimates how many concurrent HLS playback sessions the\n" +
			"local link can sustain, launches that many browser viewers against a\n" +
			"target stream with a staggered ramp-up, and reports per-session\n" +
			"playback health until interrupted.",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVar(&flagURL, "url", "", "HLS stream URL to open in every session")
	rootCmd.Flags().IntVar(&flagMax, "max", 0, "launch exactly this many sessions, skipping the bandwidth test")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "run browsers headless")
	rootCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip the launch confirmation prompt")
	rootCmd.Flags().StringVar(&flagConfig, "config", config.DefaultPath, "path to the settings file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfig, "failed to load configuration")
	}
	if flagURL != "" {
		cfg.Stream.URL = flagURL
	}
	if cmd.Flags().Changed("max") {
		cfg.Launch.MaxSessions = flagMax
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to build logger")
	}
	defer log.Sync()

	if err := validation.ValidateStreamURL(cfg.Stream.URL); err != nil {
		return apperrors.Wrap(domain.ErrNoStreamURL, apperrors.ErrCodeConfig, err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	budget := resolveBudget(ctx, cfg, log)

	if !flagYes && !confirm(budget, cfg.Stream.URL) {
		fmt.Println("Cancelled.")
		return nil
	}

	runtime := browser.NewRuntime(log)
	launcher := services.NewSessionService(runtime, ports.SessionOptions{
		Headless:           cfg.Browser.Headless,
		ViewportWidth:      cfg.Browser.ViewportWidth,
		ViewportHeight:     cfg.Browser.ViewportHeight,
		BufferingThreshold: cfg.Monitor.BufferingThreshold,
	}, cfg.Browser.PageLoadTimeout, cfg.Browser.VideoStartTimeout, log)

	sink := report.NewConsole(os.Stdout)
	fleet := services.NewFleetService(launcher, sink, cfg.Launch.StaggerDelay, cfg.Monitor.PollInterval, log)

	// First interrupt triggers shutdown; further interrupts while the
	// teardown sweep runs are ignored, not queued.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("interrupt received, shutting down")
		cancel()
		for range sigCh {
		}
	}()

	fleet.LaunchAll(ctx, budget, cfg.Stream.URL)
	fleet.Monitor(ctx)
	fleet.Shutdown(context.Background())
	return nil
}

// resolveBudget applies the manual override when set; otherwise it measures
// the link (manual entry on failure) and sizes the fleet from the result.
func resolveBudget(ctx context.Context, cfg *config.Config, log *zap.Logger) int {
	if cfg.Launch.MaxSessions > 0 {
		log.Info("using manual session budget", zap.Int("budget", cfg.Launch.MaxSessions))
		return cfg.Launch.MaxSessions
	}

	meter := bandwidth.NewMeter(log)
	est, err := meter.Measure(ctx)
	if err != nil {
		log.Warn("bandwidth measurement failed, falling back to manual entry", zap.Error(err))
		est = bandwidth.ManualEntry(os.Stdin, os.Stdout)
	}

	capSvc := services.NewCapacityService(log)
	budget := capSvc.EstimateBudget(est.DownloadKbps, cfg.Stream.BitrateKbps, cfg.Bandwidth.SafetyMargin)
	log.Info("session budget resolved",
		zap.Float64("download_kbps", est.DownloadKbps),
		zap.Int("stream_bitrate_kbps", cfg.Stream.BitrateKbps),
		zap.Float64("safety_margin", cfg.Bandwidth.SafetyMargin),
		zap.Int("budget", budget),
	)
	return budget
}

func confirm(budget int, url string) bool {
	fmt.Printf("About to launch %d browser sessions against %s. Continue? [y/N]: ", budget, url)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
