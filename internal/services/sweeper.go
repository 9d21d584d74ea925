package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

// ExpirySweeper periodically force-terminates stale sessions. It runs
// independently of inbound traffic; the per-user locks inside the
// verification service keep a sweep from racing a concurrent event for
// the same user.
type ExpirySweeper struct {
	sessions     domain.SessionStore
	verification *VerificationService
	interval     time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewExpirySweeper creates a sweeper over the given store.
func NewExpirySweeper(sessions domain.SessionStore, verification *VerificationService, interval time.Duration, log zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		sessions:     sessions,
		verification: verification,
		interval:     interval,
		log:          log.With().Str("component", "sweeper").Logger(),
		now:          time.Now,
	}
}

// Run loops until ctx is canceled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.log.Info().Int("terminated", n).Msg("sweep pass")
			}
		}
	}
}

// Sweep runs one pass and returns the number of sessions terminated.
// A pass with no stale sessions is a no-op.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	now := s.now()
	terminated := 0
	for _, session := range s.sessions.List() {
		expired, err := s.verification.OnTimeoutCheck(ctx, session.UserID, now)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", session.UserID).Msg("timeout check failed")
			continue
		}
		if expired {
			terminated++
		}
	}
	return terminated
}
