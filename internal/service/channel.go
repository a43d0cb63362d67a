package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
	"github.com/loqui/chat-server-go/internal/store"
)

var channelSortFields = map[string]bool{
	"":          true,
	"createdAt": true,
	"name":      true,
}

// ChannelService owns channel lifecycle and membership. The creator becomes
// the owner member in the same unit of work that creates the channel.
type ChannelService struct {
	mgr *store.Manager
	now nowFunc
}

func NewChannelService(mgr *store.Manager) *ChannelService {
	return &ChannelService{mgr: mgr, now: defaultNow}
}

func (s *ChannelService) Create(ctx context.Context, params model.CreateChannelParams) (*model.Channel, error) {
	var v model.ValidationErrors
	model.ValidateName(&v, params.Name)
	if !params.DefaultRole.Valid() {
		v = append(v, model.FieldError{Field: "defaultRole", Message: "unknown role"})
	}
	if err := v.OrNil(); err != nil {
		return nil, apperrors.ValidationError(err)
	}

	var channel *model.Channel
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		owner, err := b.Users.FindByID(ctx, params.OwnerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return apperrors.NotFound("Owner")
		}

		now := s.now()
		channel = &model.Channel{
			ID:          uuid.New(),
			Name:        params.Name,
			OwnerID:     params.OwnerID,
			DefaultRole: params.DefaultRole,
			IsPublic:    params.IsPublic,
			CreatedAt:   now,
		}
		if err := b.Channels.Save(ctx, channel); err != nil {
			return err
		}
		return b.Members.Put(ctx, &model.ChannelMember{
			ChannelID: channel.ID,
			UserID:    params.OwnerID,
			Role:      model.RoleOwner,
			JoinedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("channelId", channel.ID.String()).
		Str("ownerId", channel.OwnerID.String()).
		Msg("channel created")

	return channel, nil
}

func (s *ChannelService) Get(ctx context.Context, id uuid.UUID) (*model.Channel, error) {
	var channel *model.Channel
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		var err error
		channel, err = b.Channels.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, apperrors.NotFound("Channel")
	}
	return channel, nil
}

func (s *ChannelService) List(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Channel], error) {
	if !channelSortFields[sort.Field] {
		return nil, pagination.ErrUnsupportedSort
	}
	var result *pagination.Page[*model.Channel]
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		var err error
		result, err = b.Channels.Find(ctx, page, sort)
		return err
	})
	return result, err
}

// Rename changes the channel name. Only the owner may do it.
func (s *ChannelService) Rename(ctx context.Context, channelID, actorID uuid.UUID, name string) (*model.Channel, error) {
	var v model.ValidationErrors
	model.ValidateName(&v, name)
	if err := v.OrNil(); err != nil {
		return nil, apperrors.ValidationError(err)
	}

	var channel *model.Channel
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		var err error
		channel, err = b.Channels.FindByID(ctx, channelID)
		if err != nil {
			return err
		}
		if channel == nil {
			return apperrors.NotFound("Channel")
		}
		if channel.OwnerID != actorID {
			return apperrors.Forbidden("Only the owner may rename a channel")
		}
		channel.Name = name
		return b.Channels.Save(ctx, channel)
	})
	if err != nil {
		return nil, err
	}
	return channel, nil
}

// Delete removes the channel with its invitations, memberships and
// messages. Only the owner may do it.
func (s *ChannelService) Delete(ctx context.Context, channelID, actorID uuid.UUID) error {
	return s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		channel, err := b.Channels.FindByID(ctx, channelID)
		if err != nil {
			return err
		}
		if channel == nil {
			return apperrors.NotFound("Channel")
		}
		if channel.OwnerID != actorID {
			return apperrors.Forbidden("Only the owner may delete a channel")
		}
		return b.Channels.DeleteByID(ctx, channelID)
	})
}

// Join adds the user to a public channel under its default role. Private
// channels are joined through invitations only.
func (s *ChannelService) Join(ctx context.Context, channelID, userID uuid.UUID) (*model.ChannelMember, error) {
	var member *model.ChannelMember
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		channel, err := b.Channels.FindByID(ctx, channelID)
		if err != nil {
			return err
		}
		if channel == nil {
			return apperrors.NotFound("Channel")
		}
		if !channel.IsPublic {
			return apperrors.Forbidden("Channel is invitation-only")
		}
		existing, err := b.Members.Get(ctx, channelID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.AlreadyMember()
		}
		member = &model.ChannelMember{
			ChannelID: channelID,
			UserID:    userID,
			Role:      channel.DefaultRole,
			JoinedAt:  s.now(),
		}
		return b.Members.Put(ctx, member)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// Leave removes the user's membership. The owner cannot leave; they delete
// the channel instead.
func (s *ChannelService) Leave(ctx context.Context, channelID, userID uuid.UUID) error {
	return s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		channel, err := b.Channels.FindByID(ctx, channelID)
		if err != nil {
			return err
		}
		if channel == nil {
			return apperrors.NotFound("Channel")
		}
		if channel.OwnerID == userID {
			return apperrors.Forbidden("The owner cannot leave the channel")
		}
		member, err := b.Members.Get(ctx, channelID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.NotMember()
		}
		return b.Members.Delete(ctx, channelID, userID)
	})
}

// Membership returns the caller's membership row, or a NOT_MEMBER error.
func (s *ChannelService) Membership(ctx context.Context, channelID, userID uuid.UUID) (*model.ChannelMember, error) {
	var member *model.ChannelMember
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		var err error
		member, err = b.Members.Get(ctx, channelID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.NotMember()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *ChannelService) Members(ctx context.Context, channelID, actorID uuid.UUID) ([]*model.ChannelMember, error) {
	var members []*model.ChannelMember
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		actor, err := b.Members.Get(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperrors.NotMember()
		}
		members, err = b.Members.ListByChannel(ctx, channelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
