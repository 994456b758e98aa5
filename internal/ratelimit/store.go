package ratelimit

import (
	"context"
	"time"
)

// Store counts requests per key in fixed windows.
type Store interface {
	// Record counts a request against key and returns the number of requests
	// in the key's current window, this one included. A window opens with the
	// first request after the previous one closed and lasts for window.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
