package executor

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/teranos/nanoprobe/errors"
)

// Spawner throttles process starts across all commands that share it.
// Wait is called on the command's own goroutine, never on the reactor loop.
type Spawner struct {
	limiter *rate.Limiter
}

// NewSpawner allows perSecond starts with the given burst. perSecond <= 0 means unlimited.
func NewSpawner(perSecond float64, burst int) *Spawner {
	if perSecond <= 0 {
		return &Spawner{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Spawner{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a start is allowed or ctx ends
func (s *Spawner) Wait(ctx context.Context) error {
	if s == nil || s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "spawn rate limit")
	}
	return nil
}
