// Package jobs holds the background maintenance loops.
package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/loqui/chat-server-go/internal/store"
)

const sweepTimeout = 30 * time.Second

// Sweeper periodically deletes expired sessions (with their tokens),
// orphaned expired tokens, stale application invitations and resolved or
// expired channel invitations. Each family is swept in its own unit of
// work so one failure does not hold back the rest.
type Sweeper struct {
	mgr      *store.Manager
	interval time.Duration
	done     chan struct{}
	now      func() time.Time
}

func NewSweeper(mgr *store.Manager, interval time.Duration) *Sweeper {
	return &Sweeper{
		mgr:      mgr,
		interval: interval,
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

func (s *Sweeper) Start() {
	go s.run()
	log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
}

func (s *Sweeper) Stop() {
	close(s.done)
	log.Info().Msg("expiry sweeper stopped")
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass over every family. Errors are logged, not retried;
// the next tick gets another chance.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := s.now()

	s.sweepFamily(ctx, "sessions", func(ctx context.Context, b *store.Bundle) (int64, error) {
		return b.Sessions.DeleteExpired(ctx, now)
	})
	s.sweepFamily(ctx, "access tokens", func(ctx context.Context, b *store.Bundle) (int64, error) {
		return b.AccessTokens.DeleteExpired(ctx, now)
	})
	s.sweepFamily(ctx, "application invitations", func(ctx context.Context, b *store.Bundle) (int64, error) {
		return b.ImInvitations.DeleteExpired(ctx, now)
	})
	s.sweepFamily(ctx, "channel invitations", func(ctx context.Context, b *store.Bundle) (int64, error) {
		return b.ChannelInvitations.DeleteResolvedOrExpired(ctx, now)
	})
}

func (s *Sweeper) sweepFamily(ctx context.Context, name string, fn func(context.Context, *store.Bundle) (int64, error)) {
	var count int64
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		var err error
		count, err = fn(ctx, b)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msgf("failed to sweep %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("swept %s", name)
	}
}
