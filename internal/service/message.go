package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
	"github.com/loqui/chat-server-go/internal/sse"
	"github.com/loqui/chat-server-go/internal/store"
)

var messageSortFields = map[string]bool{
	"":          true,
	"createdAt": true,
}

// MessageService posts, edits and lists channel messages. Writing requires
// a writing role; guests read only. When a broker is attached, committed
// writes are announced to the channel's live listeners.
type MessageService struct {
	mgr    *store.Manager
	events *sse.Broker
	now    nowFunc
}

func NewMessageService(mgr *store.Manager, events *sse.Broker) *MessageService {
	return &MessageService{mgr: mgr, events: events, now: defaultNow}
}

// publish announces a committed change. Delivery is best effort; a dead
// broker never fails the write that already committed.
func (s *MessageService) publish(ctx context.Context, eventType string, msg *model.Message) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, msg.ChannelID.String(), sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).Str("channelId", msg.ChannelID.String()).Msg("failed to publish message event")
	}
}

func (s *MessageService) Send(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	if err := model.ValidateMessageContent(params.Content); err != nil {
		return nil, apperrors.ValidationError(err)
	}

	var msg *model.Message
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		member, err := b.Members.Get(ctx, params.ChannelID, params.UserID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.NotMember()
		}
		if !member.Role.CanWrite() {
			return apperrors.Forbidden("Guests may not post messages")
		}

		msg = &model.Message{
			ID:        uuid.New(),
			ChannelID: params.ChannelID,
			UserID:    params.UserID,
			Content:   params.Content,
			CreatedAt: s.now(),
		}
		return b.Messages.Save(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "message_created", msg)
	return msg, nil
}

// Edit replaces the content and stamps the edit time. Only the author may
// edit, and only while still a writing member of the channel.
func (s *MessageService) Edit(ctx context.Context, messageID, actorID uuid.UUID, content string) (*model.Message, error) {
	if err := model.ValidateMessageContent(content); err != nil {
		return nil, apperrors.ValidationError(err)
	}

	var msg *model.Message
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		var err error
		msg, err = b.Messages.FindByID(ctx, messageID)
		if err != nil {
			return err
		}
		if msg == nil {
			return apperrors.NotFound("Message")
		}
		if msg.UserID != actorID {
			return apperrors.Forbidden("Only the author may edit a message")
		}
		member, err := b.Members.Get(ctx, msg.ChannelID, actorID)
		if err != nil {
			return err
		}
		if member == nil || !member.Role.CanWrite() {
			return apperrors.Forbidden("Editing requires a writing membership")
		}

		now := s.now()
		msg.Content = content
		msg.EditedAt = &now
		return b.Messages.Save(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "message_edited", msg)
	return msg, nil
}

// Delete removes a message. The author or the channel owner may do it.
func (s *MessageService) Delete(ctx context.Context, messageID, actorID uuid.UUID) error {
	var deleted *model.Message
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		msg, err := b.Messages.FindByID(ctx, messageID)
		if err != nil {
			return err
		}
		if msg == nil {
			return apperrors.NotFound("Message")
		}
		if msg.UserID != actorID {
			channel, err := b.Channels.FindByID(ctx, msg.ChannelID)
			if err != nil {
				return err
			}
			if channel == nil || channel.OwnerID != actorID {
				return apperrors.Forbidden("Only the author or the channel owner may delete a message")
			}
		}
		deleted = msg
		return b.Messages.DeleteByID(ctx, messageID)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, "message_deleted", deleted)
	return nil
}

// ListByChannel pages through the channel's messages. Any member may read.
func (s *MessageService) ListByChannel(ctx context.Context, channelID, actorID uuid.UUID, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Message], error) {
	if !messageSortFields[sort.Field] {
		return nil, pagination.ErrUnsupportedSort
	}
	var result *pagination.Page[*model.Message]
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		member, err := b.Members.Get(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.NotMember()
		}
		result, err = b.Messages.FindByChannel(ctx, channelID, page, sort)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
