package domain

import "errors"

var (
	ErrNoStreamURL = errors.New("no stream URL configured")

	// ErrProbeNotInstalled is what a browser adapter returns when the page's
	// monitor object is missing, typically after a crash or an in-page
	// navigation wiped the execution context.
	ErrProbeNotInstalled = errors.New(ProbeUnreadable)
)
