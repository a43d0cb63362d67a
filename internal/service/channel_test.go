package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
	"github.com/loqui/chat-server-go/internal/store"
	"github.com/loqui/chat-server-go/internal/store/memory"
)

type fixture struct {
	auth     *AuthService
	ims      *ImInvitationService
	channels *ChannelService
	invites  *ChannelInvitationService
	messages *MessageService
	mgr      *store.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := store.NewManager(memory.New())
	return &fixture{
		auth:     NewAuthService(mgr, testConfig()),
		ims:      NewImInvitationService(mgr),
		channels: NewChannelService(mgr),
		invites:  NewChannelInvitationService(mgr),
		messages: NewMessageService(mgr, nil),
		mgr:      mgr,
	}
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	return registerUser(t, f.auth, f.ims, name, name+"@example.com")
}

func (f *fixture) channel(t *testing.T, owner *model.User, name string, public bool) *model.Channel {
	t.Helper()
	ch, err := f.channels.Create(context.Background(), model.CreateChannelParams{
		Name:        name,
		OwnerID:     owner.ID,
		DefaultRole: model.RoleMember,
		IsPublic:    public,
	})
	require.NoError(t, err)
	return ch
}

func TestChannelCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creator becomes owner member", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		ch := f.channel(t, alice, "general", false)

		members, err := f.channels.Members(ctx, ch.ID, alice.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, model.RoleOwner, members[0].Role)
		assert.Equal(t, alice.ID, members[0].UserID)
	})

	t.Run("rejects unknown owner", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.channels.Create(ctx, model.CreateChannelParams{
			Name: "general", OwnerID: uuid.New(), DefaultRole: model.RoleMember,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("rejects bad name and role together", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		_, err := f.channels.Create(ctx, model.CreateChannelParams{
			Name: "ab", OwnerID: alice.ID, DefaultRole: "admin",
		})
		require.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
		appErr, _ := apperrors.AsAppError(err)
		var v model.ValidationErrors
		require.ErrorAs(t, appErr, &v)
		assert.Len(t, v, 2)
	})
}

func TestChannelJoinLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("join public channel under default role", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "lobby", true)

		member, err := f.channels.Join(ctx, ch.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RoleMember, member.Role)

		_, err = f.channels.Join(ctx, ch.ID, bob.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyMember))
	})

	t.Run("join private channel is forbidden", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "secret", false)

		_, err := f.channels.Join(ctx, ch.ID, bob.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	})

	t.Run("leave removes membership, owner cannot leave", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "lobby", true)
		_, err := f.channels.Join(ctx, ch.ID, bob.ID)
		require.NoError(t, err)

		require.NoError(t, f.channels.Leave(ctx, ch.ID, bob.ID))
		err = f.channels.Leave(ctx, ch.ID, bob.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotMember))

		err = f.channels.Leave(ctx, ch.ID, alice.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	})
}

func TestChannelAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("rename is owner-only", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "general", true)
		_, err := f.channels.Join(ctx, ch.ID, bob.ID)
		require.NoError(t, err)

		_, err = f.channels.Rename(ctx, ch.ID, bob.ID, "hijacked")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

		renamed, err := f.channels.Rename(ctx, ch.ID, alice.ID, "renamed")
		require.NoError(t, err)
		assert.Equal(t, "renamed", renamed.Name)
	})

	t.Run("delete cascades and is owner-only", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "general", true)
		_, err := f.channels.Join(ctx, ch.ID, bob.ID)
		require.NoError(t, err)
		_, err = f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: bob.ID, Content: "hello",
		})
		require.NoError(t, err)

		err = f.channels.Delete(ctx, ch.ID, bob.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

		require.NoError(t, f.channels.Delete(ctx, ch.ID, alice.ID))
		_, err = f.channels.Get(ctx, ch.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("list pages channels", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		for _, name := range []string{"alpha", "beta", "gamma"} {
			f.channel(t, alice, name, true)
		}

		page, err := f.channels.List(ctx, pagination.Request{Limit: 2, WithCount: true},
			pagination.Sort{Field: "name"})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "alpha", page.Items[0].Name)
		assert.True(t, page.HasNext)
		require.NotNil(t, page.Total)
		assert.EqualValues(t, 3, *page.Total)

		_, err = f.channels.List(ctx, pagination.Request{}, pagination.Sort{Field: "ownerId"})
		assert.ErrorIs(t, err, pagination.ErrUnsupportedSort)
	})
}
