package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

// Repository is the uniform per-entity contract. Find* methods return
// (nil, nil) for a missing row; a missing row is not an error condition.
// Save is an upsert keyed by the entity's primary key, which the caller
// assigns before the first Save.
type Repository[E any, ID comparable] interface {
	Save(ctx context.Context, e *E) error
	SaveAll(ctx context.Context, es []*E) error
	FindByID(ctx context.Context, id ID) (*E, error)
	FindAll(ctx context.Context) ([]*E, error)
	// Find returns one page under the given sort. With page.WithCount unset
	// the implementation must probe one extra row instead of counting.
	Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*E], error)
	FindAllByID(ctx context.Context, ids []ID) ([]*E, error)
	DeleteByID(ctx context.Context, id ID) error
	Delete(ctx context.Context, e *E) error
	DeleteAll(ctx context.Context) error
	ExistsByID(ctx context.Context, id ID) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type UserRepository interface {
	Repository[model.User, uuid.UUID]
	// FindByNameOrEmail resolves a login identifier against either unique
	// column.
	FindByNameOrEmail(ctx context.Context, nameOrEmail string) (*model.User, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// SessionRepository owns the session's tokens: DeleteByID, DeleteAll and
// DeleteExpired remove the dependent access and refresh tokens first.
type SessionRepository interface {
	Repository[model.Session, uuid.UUID]
	// FindByUser returns the user's sessions ordered oldest first.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*model.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AccessTokenRepository interface {
	Repository[model.AccessToken, string]
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokenRepository interface {
	Repository[model.RefreshToken, string]
	FindBySession(ctx context.Context, sessionID uuid.UUID) (*model.RefreshToken, error)
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}

// ChannelRepository cascades on delete: invitations, memberships and
// messages of the channel go first.
type ChannelRepository interface {
	Repository[model.Channel, uuid.UUID]
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Channel, error)
}

// ChannelMemberRepository is the (channel, user) -> role join relation.
type ChannelMemberRepository interface {
	Put(ctx context.Context, m *model.ChannelMember) error
	Get(ctx context.Context, channelID, userID uuid.UUID) (*model.ChannelMember, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]*model.ChannelMember, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.ChannelMember, error)
	Delete(ctx context.Context, channelID, userID uuid.UUID) error
	DeleteByChannel(ctx context.Context, channelID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	CountByChannel(ctx context.Context, channelID uuid.UUID) (int64, error)
}

type ChannelInvitationRepository interface {
	Repository[model.ChannelInvitation, uuid.UUID]
	FindPendingByChannelAndInvitee(ctx context.Context, channelID, inviteeID uuid.UUID) ([]*model.ChannelInvitation, error)
	FindByInvitee(ctx context.Context, inviteeID uuid.UUID) ([]*model.ChannelInvitation, error)
	DeleteByChannel(ctx context.Context, channelID uuid.UUID) error
	// DeleteResolvedOrExpired purges invitations that are past expiry or
	// already accepted/rejected.
	DeleteResolvedOrExpired(ctx context.Context, now time.Time) (int64, error)
}

type ImInvitationRepository interface {
	Repository[model.ImInvitation, uuid.UUID]
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type MessageRepository interface {
	Repository[model.Message, uuid.UUID]
	FindByChannel(ctx context.Context, channelID uuid.UUID, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Message], error)
	DeleteByChannel(ctx context.Context, channelID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// Bundle is the repository set bound to one unit of work. A bundle must
// never be shared with a concurrent unit of work.
type Bundle struct {
	Users              UserRepository
	Sessions           SessionRepository
	AccessTokens       AccessTokenRepository
	RefreshTokens      RefreshTokenRepository
	Channels           ChannelRepository
	Members            ChannelMemberRepository
	ChannelInvitations ChannelInvitationRepository
	ImInvitations      ImInvitationRepository
	Messages           MessageRepository
}
