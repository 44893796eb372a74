package model

import (
	"fmt"
	"time"
)

// PlatformError is a classifiable failure returned by a platform client.
// StatusCode carries the upstream HTTP status when known; Code the provider's
// own error code; RetryAfter the provider-signalled wait, if any.
type PlatformError struct {
	Platform   Platform
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *PlatformError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s, http %d)", e.Platform, e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Platform, e.Message, e.StatusCode)
}
