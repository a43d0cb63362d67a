package jobs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/store"
	"github.com/loqui/chat-server-go/internal/store/memory"
)

func seed(t *testing.T, mgr *store.Manager, fn func(ctx context.Context, b *store.Bundle) error) {
	t.Helper()
	require.NoError(t, mgr.Run(context.Background(), sql.LevelReadCommitted, fn))
}

func TestSweeper(t *testing.T) {
	t.Run("removes only expired rows", func(t *testing.T) {
		mgr := store.NewManager(memory.New())
		now := time.Now()
		past := now.Add(-time.Hour)
		future := now.Add(time.Hour)

		userID := uuid.New()
		liveSession := uuid.New()
		deadSession := uuid.New()

		seed(t, mgr, func(ctx context.Context, b *store.Bundle) error {
			if err := b.Users.Save(ctx, &model.User{
				ID: userID, Name: "alice", Email: "alice@example.com",
				PasswordHash: "x", CreatedAt: past,
			}); err != nil {
				return err
			}
			for _, s := range []*model.Session{
				{ID: liveSession, UserID: userID, CreatedAt: past, ExpiresAt: future},
				{ID: deadSession, UserID: userID, CreatedAt: past, ExpiresAt: past},
			} {
				if err := b.Sessions.Save(ctx, s); err != nil {
					return err
				}
			}
			// One live token on the live session, one expired.
			if err := b.AccessTokens.Save(ctx, &model.AccessToken{
				TokenHash: "live", SessionID: liveSession, ExpiresAt: future,
			}); err != nil {
				return err
			}
			if err := b.AccessTokens.Save(ctx, &model.AccessToken{
				TokenHash: "stale", SessionID: liveSession, ExpiresAt: past,
			}); err != nil {
				return err
			}
			// Tokens on the dead session go with it.
			if err := b.AccessTokens.Save(ctx, &model.AccessToken{
				TokenHash: "doomed", SessionID: deadSession, ExpiresAt: future,
			}); err != nil {
				return err
			}

			if err := b.ImInvitations.Save(ctx, &model.ImInvitation{
				Token: uuid.New(), Status: model.ImInvitationPending,
				ExpiresAt: past, CreatedAt: past,
			}); err != nil {
				return err
			}
			if err := b.ImInvitations.Save(ctx, &model.ImInvitation{
				Token: uuid.New(), Status: model.ImInvitationPending,
				ExpiresAt: future, CreatedAt: past,
			}); err != nil {
				return err
			}

			for _, inv := range []*model.ChannelInvitation{
				{ID: uuid.New(), ChannelID: uuid.New(), InviterID: userID, InviteeID: userID,
					Status: model.InvitationAccepted, Role: model.RoleMember, ExpiresAt: future, CreatedAt: past},
				{ID: uuid.New(), ChannelID: uuid.New(), InviterID: userID, InviteeID: userID,
					Status: model.InvitationPending, Role: model.RoleMember, ExpiresAt: past, CreatedAt: past},
				{ID: uuid.New(), ChannelID: uuid.New(), InviterID: userID, InviteeID: userID,
					Status: model.InvitationPending, Role: model.RoleMember, ExpiresAt: future, CreatedAt: past},
			} {
				if err := b.ChannelInvitations.Save(ctx, inv); err != nil {
					return err
				}
			}
			return nil
		})

		sweeper := NewSweeper(mgr, time.Hour)
		sweeper.now = func() time.Time { return now }
		sweeper.Sweep()

		seed(t, mgr, func(ctx context.Context, b *store.Bundle) error {
			sessions, err := b.Sessions.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			assert.Equal(t, liveSession, sessions[0].ID)

			tokens, err := b.AccessTokens.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, tokens, 1)
			assert.Equal(t, "live", tokens[0].TokenHash)

			ims, err := b.ImInvitations.FindAll(ctx)
			require.NoError(t, err)
			assert.Len(t, ims, 1)

			invs, err := b.ChannelInvitations.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, invs, 1)
			assert.Equal(t, model.InvitationPending, invs[0].Status)
			return nil
		})
	})

	t.Run("starts and stops cleanly", func(t *testing.T) {
		sweeper := NewSweeper(store.NewManager(memory.New()), 50*time.Millisecond)
		sweeper.Start()
		time.Sleep(20 * time.Millisecond)
		sweeper.Stop()
	})
}
