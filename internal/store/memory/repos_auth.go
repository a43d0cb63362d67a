package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

type userRepo struct {
	repo[model.User, uuidID]
	sessions    *sessionRepo
	members     *memberRepo
	invitations *channelInvitationRepo
	messages    *messageRepo
}

func (r *userRepo) FindByNameOrEmail(ctx context.Context, nameOrEmail string) (*model.User, error) {
	needle := strings.ToLower(nameOrEmail)
	matches := r.v.filter(func(u *model.User) bool {
		return u.Name == nameOrEmail || strings.ToLower(u.Email) == needle
	})
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (r *userRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return len(r.v.filter(func(u *model.User) bool { return u.Name == name })) > 0, nil
}

func (r *userRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	needle := strings.ToLower(email)
	return len(r.v.filter(func(u *model.User) bool { return strings.ToLower(u.Email) == needle })) > 0, nil
}

// DeleteByID removes the user's sessions (with their tokens), invitations,
// memberships and messages before the user row itself.
func (r *userRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	for _, s := range r.sessions.v.filter(func(s *model.Session) bool { return s.UserID == id }) {
		if err := r.sessions.DeleteByID(ctx, s.ID); err != nil {
			return err
		}
	}
	for _, i := range r.invitations.v.filter(func(i *model.ChannelInvitation) bool {
		return i.InviterID == id || i.InviteeID == id
	}) {
		r.invitations.v.remove(i.ID.String())
	}
	if err := r.members.DeleteByUser(ctx, id); err != nil {
		return err
	}
	if err := r.messages.DeleteByUser(ctx, id); err != nil {
		return err
	}
	r.v.remove(id.String())
	return nil
}

func (r *userRepo) Delete(ctx context.Context, e *model.User) error {
	return r.DeleteByID(ctx, e.ID)
}

func (r *userRepo) DeleteAll(ctx context.Context) error {
	for _, u := range r.v.snapshot() {
		if err := r.DeleteByID(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

type sessionRepo struct {
	repo[model.Session, uuidID]
	access  *view[model.AccessToken]
	refresh *view[model.RefreshToken]
}

func (r *sessionRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]*model.Session, error) {
	items := r.v.filter(func(s *model.Session) bool { return s.UserID == userID })
	return r.v.sorted(items, pagination.Sort{Field: "createdAt"})
}

// DeleteByID removes the session's tokens first; the session exclusively
// owns them.
func (r *sessionRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	for _, t := range r.access.filter(func(t *model.AccessToken) bool { return t.SessionID == id }) {
		r.access.remove(t.TokenHash)
	}
	for _, t := range r.refresh.filter(func(t *model.RefreshToken) bool { return t.SessionID == id }) {
		r.refresh.remove(t.TokenHash)
	}
	r.v.remove(id.String())
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, e *model.Session) error {
	return r.DeleteByID(ctx, e.ID)
}

func (r *sessionRepo) DeleteAll(ctx context.Context) error {
	for _, s := range r.v.snapshot() {
		if err := r.DeleteByID(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	expired := r.v.filter(func(s *model.Session) bool { return s.Expired(now) })
	for _, s := range expired {
		if err := r.DeleteByID(ctx, s.ID); err != nil {
			return 0, err
		}
	}
	return int64(len(expired)), nil
}

type accessTokenRepo struct {
	repo[model.AccessToken, string]
}

func (r *accessTokenRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	for _, t := range r.v.filter(func(t *model.AccessToken) bool { return t.SessionID == sessionID }) {
		r.v.remove(t.TokenHash)
	}
	return nil
}

func (r *accessTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	expired := r.v.filter(func(t *model.AccessToken) bool { return t.Expired(now) })
	for _, t := range expired {
		r.v.remove(t.TokenHash)
	}
	return int64(len(expired)), nil
}

type refreshTokenRepo struct {
	repo[model.RefreshToken, string]
}

func (r *refreshTokenRepo) FindBySession(ctx context.Context, sessionID uuid.UUID) (*model.RefreshToken, error) {
	matches := r.v.filter(func(t *model.RefreshToken) bool { return t.SessionID == sessionID })
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (r *refreshTokenRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	for _, t := range r.v.filter(func(t *model.RefreshToken) bool { return t.SessionID == sessionID }) {
		r.v.remove(t.TokenHash)
	}
	return nil
}
