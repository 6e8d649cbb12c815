package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateStreamURL checks that the target is an absolute http(s) URL.
func ValidateStreamURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("stream URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("stream URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("stream URL has no host")
	}
	return nil
}

// ValidateSafetyMargin checks the usable-bandwidth fraction.
func ValidateSafetyMargin(margin float64) error {
	if margin <= 0 || margin > 1 {
		return fmt.Errorf("safety margin must be in (0,1], got %v", margin)
	}
	return nil
}

// ValidateBitrate checks a stream bitrate in Kbps.
func ValidateBitrate(kbps int) error {
	if kbps <= 0 {
		return fmt.Errorf("stream bitrate must be > 0 Kbps, got %d", kbps)
	}
	return nil
}
