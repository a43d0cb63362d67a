package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

func TestMessageSend(t *testing.T) {
	ctx := context.Background()

	t.Run("member posts a message", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		ch := f.channel(t, alice, "general", false)

		msg, err := f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: alice.ID, Content: "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", msg.Content)
		assert.Nil(t, msg.EditedAt)
	})

	t.Run("non-member cannot post", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "general", false)

		_, err := f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: bob.ID, Content: "hello",
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotMember))
	})

	t.Run("guest cannot post", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "general", false)
		inv, err := f.invites.Create(ctx, model.CreateChannelInvitationParams{
			ChannelID: ch.ID, InviterID: alice.ID, InviteeID: bob.ID,
			Role: model.RoleGuest, ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		_, err = f.invites.Accept(ctx, inv.ID, bob.ID)
		require.NoError(t, err)

		_, err = f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: bob.ID, Content: "hello",
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

		// Guests still read.
		_, err = f.messages.ListByChannel(ctx, ch.ID, bob.ID, pagination.Request{}, pagination.Sort{})
		assert.NoError(t, err)
	})

	t.Run("rejects blank and oversized content", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		ch := f.channel(t, alice, "general", false)

		_, err := f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: alice.ID, Content: "   ",
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

		_, err = f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: alice.ID, Content: strings.Repeat("x", 301),
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	})
}

func TestMessageEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("author edits and gets an edit stamp", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		ch := f.channel(t, alice, "general", false)
		msg, err := f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: alice.ID, Content: "hello",
		})
		require.NoError(t, err)

		edited, err := f.messages.Edit(ctx, msg.ID, alice.ID, "hello again")
		require.NoError(t, err)
		assert.Equal(t, "hello again", edited.Content)
		require.NotNil(t, edited.EditedAt)
	})

	t.Run("only the author may edit", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "lobby", true)
		_, err := f.channels.Join(ctx, ch.ID, bob.ID)
		require.NoError(t, err)
		msg, err := f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: alice.ID, Content: "hello",
		})
		require.NoError(t, err)

		_, err = f.messages.Edit(ctx, msg.ID, bob.ID, "hijacked")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	})
}

func TestMessageDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("author and channel owner may delete, others not", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		carol := f.user(t, "carol")
		ch := f.channel(t, alice, "lobby", true)
		for _, u := range []*model.User{bob, carol} {
			_, err := f.channels.Join(ctx, ch.ID, u.ID)
			require.NoError(t, err)
		}

		msg, err := f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: bob.ID, Content: "first",
		})
		require.NoError(t, err)

		err = f.messages.Delete(ctx, msg.ID, carol.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

		require.NoError(t, f.messages.Delete(ctx, msg.ID, bob.ID))
		err = f.messages.Delete(ctx, msg.ID, bob.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

		msg2, err := f.messages.Send(ctx, model.CreateMessageParams{
			ChannelID: ch.ID, UserID: bob.ID, Content: "second",
		})
		require.NoError(t, err)
		require.NoError(t, f.messages.Delete(ctx, msg2.ID, alice.ID))
	})
}

func TestMessageListing(t *testing.T) {
	ctx := context.Background()

	t.Run("pages through a channel in both directions", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		ch := f.channel(t, alice, "general", false)

		base := time.Now()
		for i := 0; i < 5; i++ {
			offset := time.Duration(i) * time.Second
			f.messages.now = func() time.Time { return base.Add(offset) }
			_, err := f.messages.Send(ctx, model.CreateMessageParams{
				ChannelID: ch.ID, UserID: alice.ID, Content: fmt.Sprintf("msg-%d", i),
			})
			require.NoError(t, err)
		}

		var got []string
		cursor := ""
		for {
			page, err := f.messages.ListByChannel(ctx, ch.ID, alice.ID,
				pagination.Request{Limit: 2, After: cursor}, pagination.Sort{})
			require.NoError(t, err)
			for _, m := range page.Items {
				got = append(got, m.Content)
			}
			if !page.HasNext {
				break
			}
			cursor = page.NextCursor
		}
		assert.Equal(t, []string{"msg-0", "msg-1", "msg-2", "msg-3", "msg-4"}, got)

		desc, err := f.messages.ListByChannel(ctx, ch.ID, alice.ID,
			pagination.Request{Limit: 2}, pagination.Sort{Direction: pagination.Desc})
		require.NoError(t, err)
		require.Len(t, desc.Items, 2)
		assert.Equal(t, "msg-4", desc.Items[0].Content)
	})

	t.Run("non-member cannot list", func(t *testing.T) {
		f := newFixture(t)
		alice := f.user(t, "alice")
		bob := f.user(t, "bob")
		ch := f.channel(t, alice, "general", false)

		_, err := f.messages.ListByChannel(ctx, ch.ID, bob.ID, pagination.Request{}, pagination.Sort{})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotMember))
	})
}
