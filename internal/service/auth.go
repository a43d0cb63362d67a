package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/loqui/chat-server-go/internal/audit"
	"github.com/loqui/chat-server-go/internal/config"
	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/store"
	"github.com/loqui/chat-server-go/internal/util"
)

type RegisterParams struct {
	Name            string
	Email           string
	Password        string
	InvitationToken uuid.UUID
}

// AuthService owns registration, login, token verification and the
// access/refresh rotation. Session-limit eviction and single-use
// invitation consumption run under serializable isolation so concurrent
// attempts collapse to one winner.
type AuthService struct {
	mgr         *store.Manager
	maxSessions int
	accessTTL   time.Duration
	sessionTTL  time.Duration
	now         nowFunc
}

func NewAuthService(mgr *store.Manager, cfg *config.Config) *AuthService {
	return &AuthService{
		mgr:         mgr,
		maxSessions: cfg.MaxSessionsPerUser,
		accessTTL:   cfg.AccessTokenTTL(),
		sessionTTL:  cfg.SessionTTL(),
		now:         defaultNow,
	}
}

// Register creates a user by consuming a single-use application invitation.
// The invitation check, uniqueness checks, user insert and invitation
// mark-used all commit together: two racing registrations on one token
// leave exactly one user behind.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	if err := model.ValidateRegistration(params.Name, params.Email, params.Password); err != nil {
		return nil, apperrors.ValidationError(err)
	}

	// bcrypt is deliberately slow; hash before entering the retry loop.
	passwordHash, err := util.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *model.User
	err = s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		inv, err := b.ImInvitations.FindByID(ctx, params.InvitationToken)
		if err != nil {
			return err
		}
		if inv == nil {
			return apperrors.InvalidToken("Unknown invitation token")
		}
		now := s.now()
		if inv.Status == model.ImInvitationUsed {
			return apperrors.InvalidToken("Invitation token already used")
		}
		if inv.Expired(now) {
			return apperrors.InvitationExpired()
		}

		if taken, err := b.Users.ExistsByName(ctx, params.Name); err != nil {
			return err
		} else if taken {
			return apperrors.AlreadyExists("Name")
		}
		if taken, err := b.Users.ExistsByEmail(ctx, params.Email); err != nil {
			return err
		} else if taken {
			return apperrors.AlreadyExists("Email")
		}

		user = &model.User{
			ID:           uuid.New(),
			Name:         params.Name,
			Email:        params.Email,
			PasswordHash: passwordHash,
			CreatedAt:    now,
		}
		if err := b.Users.Save(ctx, user); err != nil {
			return err
		}

		inv.Status = model.ImInvitationUsed
		return b.ImInvitations.Save(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("userId", user.ID.String()).
		Str("name", user.Name).
		Msg("user registered")

	return user, nil
}

// Login verifies the credentials and opens a new session. An unknown
// identifier still pays one bcrypt comparison so the failure timing does
// not reveal whether the user exists. When the user is at the session
// limit the oldest session is evicted along with its tokens.
func (s *AuthService) Login(ctx context.Context, nameOrEmail, password string) (*model.Credentials, error) {
	var creds *model.Credentials
	var evicted []uuid.UUID
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		evicted = evicted[:0]
		user, err := b.Users.FindByNameOrEmail(ctx, nameOrEmail)
		if err != nil {
			return err
		}
		if user == nil {
			util.CheckPasswordHash(password, util.DummyPasswordHash)
			return apperrors.InvalidCredentials()
		}
		if !util.CheckPasswordHash(password, user.PasswordHash) {
			return apperrors.InvalidCredentials()
		}

		now := s.now()
		sessions, err := b.Sessions.FindByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		for len(sessions) >= s.maxSessions {
			if err := b.Sessions.DeleteByID(ctx, sessions[0].ID); err != nil {
				return err
			}
			evicted = append(evicted, sessions[0].ID)
			sessions = sessions[1:]
		}

		session := &model.Session{
			ID:        uuid.New(),
			UserID:    user.ID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.sessionTTL),
		}
		if err := b.Sessions.Save(ctx, session); err != nil {
			return err
		}

		creds, err = s.issueTokens(ctx, b, session, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, sessionID := range evicted {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventSessionEvicted,
			UserID:  creds.User.ID.String(),
			Details: map[string]interface{}{"sessionId": sessionID.String()},
		})
	}
	return creds, nil
}

// Authenticate resolves a raw access token to its user. Only the token's
// hash ever touches storage, so lookup is by hash and needs no extra
// constant-time compare beyond the index probe.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*model.User, error) {
	var user *model.User
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		token, err := b.AccessTokens.FindByID(ctx, util.HashToken(rawToken))
		if err != nil {
			return err
		}
		if token == nil {
			return apperrors.InvalidToken("Unknown access token")
		}
		now := s.now()
		if token.Expired(now) {
			return apperrors.TokenExpired()
		}
		session, err := b.Sessions.FindByID(ctx, token.SessionID)
		if err != nil {
			return err
		}
		if session == nil || session.Expired(now) {
			return apperrors.TokenExpired()
		}
		user, err = b.Users.FindByID(ctx, session.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperrors.InvalidToken("Session has no user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Refresh rotates the session's credentials: the presented refresh token
// and the session's old access tokens are deleted and a fresh pair is
// issued, all in one serializable unit of work. A replayed refresh token
// therefore fails, because the winning rotation already removed it.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*model.Credentials, error) {
	var creds *model.Credentials
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		token, err := b.RefreshTokens.FindByID(ctx, util.HashToken(rawRefresh))
		if err != nil {
			return err
		}
		if token == nil {
			return apperrors.InvalidToken("Unknown refresh token")
		}
		now := s.now()
		if token.Expired(now) {
			return apperrors.TokenExpired()
		}
		session, err := b.Sessions.FindByID(ctx, token.SessionID)
		if err != nil {
			return err
		}
		if session == nil || session.Expired(now) {
			return apperrors.TokenExpired()
		}
		user, err := b.Users.FindByID(ctx, session.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperrors.InvalidToken("Session has no user")
		}

		if err := b.RefreshTokens.DeleteByID(ctx, token.TokenHash); err != nil {
			return err
		}
		if err := b.AccessTokens.DeleteBySession(ctx, session.ID); err != nil {
			return err
		}

		creds, err = s.issueTokens(ctx, b, session, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return creds, nil
}

// Logout tears down the session behind the presented access token,
// removing the session and both of its token families.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	return s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		token, err := b.AccessTokens.FindByID(ctx, util.HashToken(rawToken))
		if err != nil {
			return err
		}
		if token == nil {
			return apperrors.InvalidToken("Unknown access token")
		}
		return b.Sessions.DeleteByID(ctx, token.SessionID)
	})
}

func (s *AuthService) issueTokens(ctx context.Context, b *store.Bundle, session *model.Session, user *model.User, now time.Time) (*model.Credentials, error) {
	rawAccess, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	rawRefresh, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	access := &model.AccessToken{
		TokenHash: util.HashToken(rawAccess),
		SessionID: session.ID,
		ExpiresAt: now.Add(s.accessTTL),
	}
	refresh := &model.RefreshToken{
		TokenHash: util.HashToken(rawRefresh),
		SessionID: session.ID,
		ExpiresAt: now.Add(config.RefreshTokenTTL),
	}
	if err := b.AccessTokens.Save(ctx, access); err != nil {
		return nil, err
	}
	if err := b.RefreshTokens.Save(ctx, refresh); err != nil {
		return nil, err
	}

	return &model.Credentials{
		SessionID:    session.ID,
		User:         user,
		AccessToken:  model.IssuedToken{Token: rawAccess, ExpiresAt: access.ExpiresAt},
		RefreshToken: model.IssuedToken{Token: rawRefresh, ExpiresAt: refresh.ExpiresAt},
	}, nil
}
