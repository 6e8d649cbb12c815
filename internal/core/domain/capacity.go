package domain

import "time"

// CapacityEstimate is produced once per run, either by the bandwidth meter or
// from manual entry. Immutable after creation. DownloadKbps must be > 0.
type CapacityEstimate struct {
	DownloadKbps float64
	UploadKbps   float64
	Ping         time.Duration
}
