package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a unique identifier for one run.
func GenerateRunID() string {
	return fmt.Sprintf("run_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

// GenerateSessionID generates a unique session identifier.
func GenerateSessionID() string {
	return uuid.NewString()
}
