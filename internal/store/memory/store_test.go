package memory

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
	"github.com/loqui/chat-server-go/internal/store"
)

func newUser(name string) *model.User {
	return &model.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     name + "@example.com",
		CreatedAt: time.Now(),
	}
}

// commitUser writes a user in its own committed unit of work.
func commitUser(t *testing.T, s *Store, u *model.User) {
	t.Helper()
	tx, err := s.Begin(context.Background(), sql.LevelSerializable)
	require.NoError(t, err)
	require.NoError(t, tx.Repos().Users.Save(context.Background(), u))
	require.NoError(t, tx.Commit())
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	s := New()

	t.Run("writes are invisible before commit", func(t *testing.T) {
		u := newUser("alice")
		tx, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)
		require.NoError(t, tx.Repos().Users.Save(ctx, u))

		other, err := s.Begin(ctx, sql.LevelReadCommitted)
		require.NoError(t, err)
		got, err := other.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, other.Rollback())

		require.NoError(t, tx.Commit())

		after, err := s.Begin(ctx, sql.LevelReadCommitted)
		require.NoError(t, err)
		got, err = after.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alice", got.Name)
		require.NoError(t, after.Rollback())
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		u := newUser("bob")
		tx, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)
		require.NoError(t, tx.Repos().Users.Save(ctx, u))
		require.NoError(t, tx.Rollback())

		check, err := s.Begin(ctx, sql.LevelReadCommitted)
		require.NoError(t, err)
		got, err := check.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, check.Rollback())
	})

	t.Run("a transaction reads its own writes", func(t *testing.T) {
		u := newUser("carol")
		tx, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)
		require.NoError(t, tx.Repos().Users.Save(ctx, u))
		got, err := tx.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NoError(t, tx.Rollback())
	})

	t.Run("finished transactions refuse further commits", func(t *testing.T) {
		tx, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Error(t, tx.Commit())
		assert.Error(t, tx.Rollback())
	})
}

func TestSerializableConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("second writer of the same row fails at commit", func(t *testing.T) {
		s := New()
		u := newUser("dave")
		commitUser(t, s, u)

		tx1, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)
		tx2, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)

		got1, err := tx1.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		got2, err := tx2.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)

		got1.Name = "dave-one"
		require.NoError(t, tx1.Repos().Users.Save(ctx, got1))
		got2.Name = "dave-two"
		require.NoError(t, tx2.Repos().Users.Save(ctx, got2))

		require.NoError(t, tx1.Commit())
		err = tx2.Commit()
		assert.ErrorIs(t, err, store.ErrSerialization)
	})

	t.Run("scan conflicts with a concurrent insert", func(t *testing.T) {
		s := New()

		tx1, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)
		_, err = tx1.Repos().Users.FindAll(ctx)
		require.NoError(t, err)

		commitUser(t, s, newUser("phantom"))

		require.NoError(t, tx1.Repos().Users.Save(ctx, newUser("late")))
		assert.ErrorIs(t, tx1.Commit(), store.ErrSerialization)
	})

	t.Run("read-committed does not validate", func(t *testing.T) {
		s := New()
		u := newUser("erin")
		commitUser(t, s, u)

		tx1, err := s.Begin(ctx, sql.LevelReadCommitted)
		require.NoError(t, err)
		got, err := tx1.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)

		u.Name = "erin-committed"
		commitUser(t, s, u)

		got.Name = "erin-stale"
		require.NoError(t, tx1.Repos().Users.Save(ctx, got))
		assert.NoError(t, tx1.Commit())
	})

	t.Run("read of an absent row conflicts with its creation", func(t *testing.T) {
		s := New()
		u := newUser("frank")

		tx1, err := s.Begin(ctx, sql.LevelSerializable)
		require.NoError(t, err)
		got, err := tx1.Repos().Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.Nil(t, got)

		commitUser(t, s, u)

		require.NoError(t, tx1.Repos().Users.Save(ctx, newUser("bystander")))
		assert.ErrorIs(t, tx1.Commit(), store.ErrSerialization)
	})
}

func TestCascades(t *testing.T) {
	ctx := context.Background()
	mgr := store.NewManager(New())

	user := newUser("owner")
	other := newUser("member")
	session := &model.Session{ID: uuid.New(), UserID: user.ID, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	channel := &model.Channel{ID: uuid.New(), Name: "general", OwnerID: user.ID, DefaultRole: model.RoleMember, CreatedAt: time.Now()}

	require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		require.NoError(t, b.Users.Save(ctx, user))
		require.NoError(t, b.Users.Save(ctx, other))
		require.NoError(t, b.Sessions.Save(ctx, session))
		require.NoError(t, b.AccessTokens.Save(ctx, &model.AccessToken{TokenHash: "at1", SessionID: session.ID, ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, b.RefreshTokens.Save(ctx, &model.RefreshToken{TokenHash: "rt1", SessionID: session.ID, ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, b.Channels.Save(ctx, channel))
		require.NoError(t, b.Members.Put(ctx, &model.ChannelMember{ChannelID: channel.ID, UserID: user.ID, Role: model.RoleOwner, JoinedAt: time.Now()}))
		require.NoError(t, b.Members.Put(ctx, &model.ChannelMember{ChannelID: channel.ID, UserID: other.ID, Role: model.RoleMember, JoinedAt: time.Now()}))
		require.NoError(t, b.Messages.Save(ctx, &model.Message{ID: uuid.New(), ChannelID: channel.ID, UserID: other.ID, Content: "hi", CreatedAt: time.Now()}))
		return nil
	}))

	t.Run("session delete removes its tokens", func(t *testing.T) {
		require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
			return b.Sessions.DeleteByID(ctx, session.ID)
		}))
		require.NoError(t, mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
			at, err := b.AccessTokens.FindByID(ctx, "at1")
			require.NoError(t, err)
			assert.Nil(t, at)
			rt, err := b.RefreshTokens.FindByID(ctx, "rt1")
			require.NoError(t, err)
			assert.Nil(t, rt)
			return nil
		}))
	})

	t.Run("channel delete removes members and messages, keeps users", func(t *testing.T) {
		require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
			return b.Channels.DeleteByID(ctx, channel.ID)
		}))
		require.NoError(t, mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
			n, err := b.Members.CountByChannel(ctx, channel.ID)
			require.NoError(t, err)
			assert.Zero(t, n)
			msgs, err := b.Messages.FindByChannel(ctx, channel.ID, pagination.Request{}, pagination.Sort{})
			require.NoError(t, err)
			assert.Empty(t, msgs.Items)
			u, err := b.Users.FindByID(ctx, other.ID)
			require.NoError(t, err)
			assert.NotNil(t, u)
			return nil
		}))
	})

	t.Run("user delete removes sessions and memberships", func(t *testing.T) {
		s2 := &model.Session{ID: uuid.New(), UserID: other.ID, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
			require.NoError(t, b.Sessions.Save(ctx, s2))
			require.NoError(t, b.AccessTokens.Save(ctx, &model.AccessToken{TokenHash: "at2", SessionID: s2.ID, ExpiresAt: time.Now().Add(time.Hour)}))
			return nil
		}))
		require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
			return b.Users.DeleteByID(ctx, other.ID)
		}))
		require.NoError(t, mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
			got, err := b.Sessions.FindByID(ctx, s2.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
			at, err := b.AccessTokens.FindByID(ctx, "at2")
			require.NoError(t, err)
			assert.Nil(t, at)
			return nil
		}))
	})
}

func TestSweepQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	mgr := store.NewManager(s)
	now := time.Now()

	require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		u := newUser("sweep")
		require.NoError(t, b.Users.Save(ctx, u))
		require.NoError(t, b.Sessions.Save(ctx, &model.Session{ID: uuid.New(), UserID: u.ID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
		require.NoError(t, b.Sessions.Save(ctx, &model.Session{ID: uuid.New(), UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
		require.NoError(t, b.ChannelInvitations.Save(ctx, &model.ChannelInvitation{ID: uuid.New(), Status: model.InvitationAccepted, ExpiresAt: now.Add(time.Hour), CreatedAt: now}))
		require.NoError(t, b.ChannelInvitations.Save(ctx, &model.ChannelInvitation{ID: uuid.New(), Status: model.InvitationPending, ExpiresAt: now.Add(-time.Minute), CreatedAt: now}))
		require.NoError(t, b.ChannelInvitations.Save(ctx, &model.ChannelInvitation{ID: uuid.New(), Status: model.InvitationPending, ExpiresAt: now.Add(time.Hour), CreatedAt: now}))
		require.NoError(t, b.ImInvitations.Save(ctx, &model.ImInvitation{Token: uuid.New(), Status: model.ImInvitationPending, ExpiresAt: now.Add(-time.Minute), CreatedAt: now}))
		return nil
	}))

	require.NoError(t, mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		n, err := b.Sessions.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = b.ChannelInvitations.DeleteResolvedOrExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = b.ImInvitations.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	}))

	require.NoError(t, mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		sessions, err := b.Sessions.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), sessions)
		invites, err := b.ChannelInvitations.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), invites)
		return nil
	}))
}

func TestPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	mgr := store.NewManager(s)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var users []*model.User
	for i := 0; i < 12; i++ {
		u := newUser(fmt.Sprintf("user-%02d", i))
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		users = append(users, u)
	}
	require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		return b.Users.SaveAll(ctx, users)
	}))

	find := func(t *testing.T, req pagination.Request, sort pagination.Sort) *pagination.Page[*model.User] {
		t.Helper()
		var page *pagination.Page[*model.User]
		require.NoError(t, mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
			var err error
			page, err = b.Users.Find(ctx, req, sort)
			return err
		}))
		return page
	}

	t.Run("offset paging with count", func(t *testing.T) {
		page := find(t, pagination.Request{Offset: 10, Limit: 5, WithCount: true}, pagination.Sort{Field: "name"})
		require.NotNil(t, page.Total)
		assert.Equal(t, int64(12), *page.Total)
		assert.Len(t, page.Items, 2)
		assert.False(t, page.HasNext)
	})

	t.Run("probe answers has-next without a count", func(t *testing.T) {
		page := find(t, pagination.Request{Limit: 5}, pagination.Sort{Field: "name"})
		assert.Nil(t, page.Total)
		assert.Len(t, page.Items, 5)
		assert.True(t, page.HasNext)
		assert.NotEmpty(t, page.NextCursor)
	})

	t.Run("exactly limit remaining means no next page", func(t *testing.T) {
		page := find(t, pagination.Request{Offset: 7, Limit: 5}, pagination.Sort{Field: "name"})
		assert.Len(t, page.Items, 5)
		assert.False(t, page.HasNext)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("cursor walk covers everything exactly once", func(t *testing.T) {
		var seen []string
		req := pagination.Request{Limit: 5}
		for {
			page := find(t, req, pagination.Sort{Field: "name"})
			for _, u := range page.Items {
				seen = append(seen, u.Name)
			}
			if !page.HasNext {
				break
			}
			req = pagination.Request{Limit: 5, After: page.NextCursor}
		}
		require.Len(t, seen, 12)
		for i, name := range seen {
			assert.Equal(t, fmt.Sprintf("user-%02d", i), name)
		}
	})

	t.Run("descending sort flips the walk", func(t *testing.T) {
		page := find(t, pagination.Request{Limit: 3}, pagination.Sort{Field: "createdAt", Direction: pagination.Desc})
		require.Len(t, page.Items, 3)
		assert.Equal(t, "user-11", page.Items[0].Name)
		assert.Equal(t, "user-09", page.Items[2].Name)
	})

	t.Run("unrelated inserts between pages cause no duplicates", func(t *testing.T) {
		first := find(t, pagination.Request{Limit: 5}, pagination.Sort{Field: "createdAt"})
		require.True(t, first.HasNext)

		extra := newUser("zz-late")
		extra.CreatedAt = base.Add(30 * time.Minute)
		require.NoError(t, mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
			return b.Users.Save(ctx, extra)
		}))

		rest := find(t, pagination.Request{Limit: 100, After: first.NextCursor}, pagination.Sort{Field: "createdAt"})
		names := map[string]bool{}
		for _, u := range first.Items {
			names[u.Name] = true
		}
		for _, u := range rest.Items {
			assert.False(t, names[u.Name], "duplicate %s", u.Name)
			names[u.Name] = true
		}
		assert.Len(t, names, 13)
	})

	t.Run("invalid cursor is rejected", func(t *testing.T) {
		err := mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
			_, err := b.Users.Find(ctx, pagination.Request{Limit: 5, After: "???"}, pagination.Sort{})
			return err
		})
		assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
	})

	t.Run("unsupported sort field is rejected", func(t *testing.T) {
		err := mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
			_, err := b.Users.Find(ctx, pagination.Request{Limit: 5}, pagination.Sort{Field: "passwordHash"})
			return err
		})
		assert.ErrorIs(t, err, pagination.ErrUnsupportedSort)
	})
}
