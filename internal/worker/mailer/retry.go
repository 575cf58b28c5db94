package mailer

import (
	"time"

	"github.com/buildwise/backend/internal/model"
)

const (
	initialBackoff = 30 * time.Second
	maxBackoff     = 30 * time.Minute
)

// CalculateBackoff returns the wait after the given number of consecutive
// failed attempts: 30s doubling per failure, capped at 30m.
func CalculateBackoff(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	delay := initialBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// IsDue reports whether n may be attempted at now.
// A notification that never failed is always due.
func IsDue(n *model.EmailNotification, now time.Time) bool {
	if n.RetryCount <= 0 {
		return true
	}
	return !now.Before(n.UpdatedAt.Add(CalculateBackoff(n.RetryCount)))
}
