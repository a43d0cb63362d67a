package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqui/chat-server-go/internal/config"
	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/store"
	"github.com/loqui/chat-server-go/internal/store/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxSessionsPerUser: 3,
		AccessTokenTTLMins: 120,
		SessionTTLHours:    720,
		RateLimitPerSecond: 5,
		SweepIntervalHours: 168,
	}
}

func newAuthFixture(t *testing.T) (*AuthService, *ImInvitationService, *store.Manager) {
	t.Helper()
	mgr := store.NewManager(memory.New())
	return NewAuthService(mgr, testConfig()), NewImInvitationService(mgr), mgr
}

func registerUser(t *testing.T, auth *AuthService, ims *ImInvitationService, name, email string) *model.User {
	t.Helper()
	inv, err := ims.Create(context.Background(), time.Hour)
	require.NoError(t, err)
	user, err := auth.Register(context.Background(), RegisterParams{
		Name:            name,
		Email:           email,
		Password:        "swordfish-42",
		InvitationToken: inv.Token,
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user and consumes invitation", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		inv, err := ims.Create(ctx, time.Hour)
		require.NoError(t, err)

		user, err := auth.Register(ctx, RegisterParams{
			Name:            "alice",
			Email:           "alice@example.com",
			Password:        "swordfish-42",
			InvitationToken: inv.Token,
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Name)
		assert.NotEqual(t, "swordfish-42", user.PasswordHash)

		used, err := ims.Get(ctx, inv.Token)
		require.NoError(t, err)
		assert.Equal(t, model.ImInvitationUsed, used.Status)
	})

	t.Run("rejects used invitation", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		inv, err := ims.Create(ctx, time.Hour)
		require.NoError(t, err)

		_, err = auth.Register(ctx, RegisterParams{
			Name: "alice", Email: "alice@example.com", Password: "swordfish-42",
			InvitationToken: inv.Token,
		})
		require.NoError(t, err)

		_, err = auth.Register(ctx, RegisterParams{
			Name: "bob", Email: "bob@example.com", Password: "swordfish-42",
			InvitationToken: inv.Token,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("rejects unknown invitation", func(t *testing.T) {
		auth, _, _ := newAuthFixture(t)
		_, err := auth.Register(ctx, RegisterParams{
			Name: "alice", Email: "alice@example.com", Password: "swordfish-42",
			InvitationToken: uuid.New(),
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("accumulates validation errors", func(t *testing.T) {
		auth, _, _ := newAuthFixture(t)
		_, err := auth.Register(ctx, RegisterParams{
			Name: "a", Email: "bad", Password: "short",
			InvitationToken: uuid.New(),
		})
		require.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
		appErr, _ := apperrors.AsAppError(err)
		var v model.ValidationErrors
		require.ErrorAs(t, appErr, &v)
		assert.Len(t, v, 4)
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")

		inv, err := ims.Create(ctx, time.Hour)
		require.NoError(t, err)
		_, err = auth.Register(ctx, RegisterParams{
			Name: "alice", Email: "other@example.com", Password: "swordfish-42",
			InvitationToken: inv.Token,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists))
	})

	t.Run("concurrent registrations on one token leave one user", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		inv, err := ims.Create(ctx, time.Hour)
		require.NoError(t, err)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = auth.Register(ctx, RegisterParams{
					Name:            "user-" + string(rune('a'+i)),
					Email:           "user-" + string(rune('a'+i)) + "@example.com",
					Password:        "swordfish-42",
					InvitationToken: inv.Token,
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("returns credentials for valid password", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		user := registerUser(t, auth, ims, "alice", "alice@example.com")

		creds, err := auth.Login(ctx, "alice", "swordfish-42")
		require.NoError(t, err)
		assert.Equal(t, user.ID, creds.User.ID)
		assert.NotEmpty(t, creds.AccessToken.Token)
		assert.NotEmpty(t, creds.RefreshToken.Token)
		assert.NotEqual(t, creds.AccessToken.Token, creds.RefreshToken.Token)
	})

	t.Run("accepts email as identifier case-insensitively", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")

		_, err := auth.Login(ctx, "ALICE@example.com", "swordfish-42")
		assert.NoError(t, err)
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")

		_, err := auth.Login(ctx, "alice", "wrong")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidCredentials))
	})

	t.Run("rejects unknown user with the same error", func(t *testing.T) {
		auth, _, _ := newAuthFixture(t)
		_, err := auth.Login(ctx, "nobody", "whatever1")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidCredentials))
	})

	t.Run("evicts oldest session at the limit", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")

		base := time.Now()
		var issued []*model.Credentials
		for i := 0; i < 4; i++ {
			offset := time.Duration(i) * time.Minute
			auth.now = func() time.Time { return base.Add(offset) }
			creds, err := auth.Login(ctx, "alice", "swordfish-42")
			require.NoError(t, err)
			issued = append(issued, creds)
		}

		// Limit is 3: the first session is gone, its token rejected.
		_, err := auth.Authenticate(ctx, issued[0].AccessToken.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))

		for _, creds := range issued[1:] {
			_, err := auth.Authenticate(ctx, creds.AccessToken.Token)
			assert.NoError(t, err)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves access token to user", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		user := registerUser(t, auth, ims, "alice", "alice@example.com")
		creds, err := auth.Login(ctx, "alice", "swordfish-42")
		require.NoError(t, err)

		got, err := auth.Authenticate(ctx, creds.AccessToken.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		auth, _, _ := newAuthFixture(t)
		_, err := auth.Authenticate(ctx, "not-a-token")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("rejects expired access token", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")
		creds, err := auth.Login(ctx, "alice", "swordfish-42")
		require.NoError(t, err)

		auth.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
		_, err = auth.Authenticate(ctx, creds.AccessToken.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTokenExpired))
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates both tokens", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")
		creds, err := auth.Login(ctx, "alice", "swordfish-42")
		require.NoError(t, err)

		next, err := auth.Refresh(ctx, creds.RefreshToken.Token)
		require.NoError(t, err)
		assert.Equal(t, creds.SessionID, next.SessionID)
		assert.NotEqual(t, creds.AccessToken.Token, next.AccessToken.Token)
		assert.NotEqual(t, creds.RefreshToken.Token, next.RefreshToken.Token)

		// The old pair is dead.
		_, err = auth.Authenticate(ctx, creds.AccessToken.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
		_, err = auth.Refresh(ctx, creds.RefreshToken.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))

		// The new pair works.
		_, err = auth.Authenticate(ctx, next.AccessToken.Token)
		assert.NoError(t, err)
	})

	t.Run("concurrent refreshes of one token yield one winner", func(t *testing.T) {
		auth, ims, _ := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")
		creds, err := auth.Login(ctx, "alice", "swordfish-42")
		require.NoError(t, err)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = auth.Refresh(ctx, creds.RefreshToken.Token)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates the whole session", func(t *testing.T) {
		auth, ims, mgr := newAuthFixture(t)
		registerUser(t, auth, ims, "alice", "alice@example.com")
		creds, err := auth.Login(ctx, "alice", "swordfish-42")
		require.NoError(t, err)

		require.NoError(t, auth.Logout(ctx, creds.AccessToken.Token))

		_, err = auth.Authenticate(ctx, creds.AccessToken.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
		_, err = auth.Refresh(ctx, creds.RefreshToken.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))

		err = mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
			n, err := b.Sessions.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		auth, _, _ := newAuthFixture(t)
		err := auth.Logout(ctx, "nope")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	})
}
