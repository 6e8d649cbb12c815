package bandwidth

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"viewerswarm/internal/core/domain"
)

const (
	fallbackDownloadKbps = 50000
	fallbackUploadKbps   = 25000
	fallbackPing         = 20 * time.Millisecond
)

// ManualEntry prompts for a download rate in Mbps on r and derives an
// estimate from it: upload is half of download, ping is the fallback value.
// Non-numeric or non-positive input yields the documented fallback estimate.
func ManualEntry(r io.Reader, w io.Writer) *domain.CapacityEstimate {
	fmt.Fprint(w, "Bandwidth test failed. Enter your download speed in Mbps: ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return FallbackEstimate()
	}

	mbps, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
	if err != nil || mbps <= 0 {
		fmt.Fprintf(w, "Invalid entry, assuming %d Mbps\n", fallbackDownloadKbps/1000)
		return FallbackEstimate()
	}

	return &domain.CapacityEstimate{
		DownloadKbps: mbps * 1000,
		UploadKbps:   mbps * 500,
		Ping:         fallbackPing,
	}
}

// FallbackEstimate is used when no usable manual entry is available.
func FallbackEstimate() *domain.CapacityEstimate {
	return &domain.CapacityEstimate{
		DownloadKbps: fallbackDownloadKbps,
		UploadKbps:   fallbackUploadKbps,
		Ping:         fallbackPing,
	}
}
