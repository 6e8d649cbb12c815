package services

import (
	"math"

	"go.uber.org/zap"

	"viewerswarm/internal/core/ports"
)

type capacityService struct {
	logger *zap.Logger
}

func NewCapacityService(logger *zap.Logger) ports.CapacityService {
	return &capacityService{logger: logger}
}

// EstimateBudget converts a download rate into a session budget:
// floor(downloadKbps * safetyMargin / streamBitrateKbps), floored to a
// minimum of 1. The minimum intentionally oversubscribes a link too slow for
// even one stream so the run still makes forward progress; that is a policy
// choice, not a bug.
func (c *capacityService) EstimateBudget(downloadKbps float64, streamBitrateKbps int, safetyMargin float64) int {
	usable := downloadKbps * safetyMargin
	budget := int(math.Floor(usable / float64(streamBitrateKbps)))
	if budget < 1 {
		budget = 1
	}
	c.logger.Debug("session budget estimated",
		zap.Float64("download_kbps", downloadKbps),
		zap.Float64("usable_kbps", usable),
		zap.Int("stream_bitrate_kbps", streamBitrateKbps),
		zap.Int("budget", budget),
	)
	return budget
}
