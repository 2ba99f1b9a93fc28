package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically flushes attempts whose active-set deadline has passed.
// It is the safety net for sessions that were abandoned without an explicit
// completion call.
type Sweeper struct {
	cache    *ConversationCache
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper builds a sweeper over cache ticking at interval.
func NewSweeper(cache *ConversationCache, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{cache: cache, interval: interval, log: log}
}

// Run blocks until ctx is canceled, sweeping once per interval. Errors on
// individual attempts are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now())
		}
	}
}

// SweepOnce flushes every attempt expired as of now and returns how many were
// flushed. Attempts locked by a concurrent flush are skipped silently.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) int {
	ids, err := s.cache.Expired(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep: listing expired attempts failed")
		return 0
	}

	flushed := 0
	for _, id := range ids {
		if err := s.cache.Flush(ctx, id); err != nil {
			if errors.Is(err, ErrFlushLocked) {
				continue
			}
			s.log.Error().Err(err).Str("candidate_id", id).Msg("sweep: flush failed")
			continue
		}
		flushed++
	}
	if flushed > 0 {
		s.log.Info().Int("flushed", flushed).Msg("sweep: flushed expired sessions")
	}
	return flushed
}
