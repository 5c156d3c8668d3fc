package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartSessionSweeper periodically aborts upload sessions whose client
// disappeared without calling complete or abort. Without it, every dropped
// browser tab leaks an open multipart upload on the store forever.
func StartSessionSweeper(interval, ttl time.Duration, r *Registry) {
	ticker := time.NewTicker(interval)

	zap.L().Debug("Session sweeper attached",
		zap.Duration("tick_every", interval),
		zap.Duration("session_ttl", ttl))

	go func() {
		for range ticker.C {
			r.SweepStale(context.Background(), ttl)
		}
	}()
}
