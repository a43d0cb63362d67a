package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/store"
)

// ChannelInvitationService drives the pending -> accepted/rejected state
// machine. Accept and reject run serializable and re-read the invitation
// inside the unit of work, so two racing resolutions collapse to one
// winner and one INVITATION_RESOLVED loser.
type ChannelInvitationService struct {
	mgr *store.Manager
	now nowFunc
}

func NewChannelInvitationService(mgr *store.Manager) *ChannelInvitationService {
	return &ChannelInvitationService{mgr: mgr, now: defaultNow}
}

func (s *ChannelInvitationService) Create(ctx context.Context, params model.CreateChannelInvitationParams) (*model.ChannelInvitation, error) {
	if !params.Role.Valid() || params.Role == model.RoleOwner {
		return nil, apperrors.InvalidInput("role", "must be member or guest")
	}

	var inv *model.ChannelInvitation
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		channel, err := b.Channels.FindByID(ctx, params.ChannelID)
		if err != nil {
			return err
		}
		if channel == nil {
			return apperrors.NotFound("Channel")
		}

		inviter, err := b.Members.Get(ctx, params.ChannelID, params.InviterID)
		if err != nil {
			return err
		}
		if inviter == nil {
			return apperrors.NotMember()
		}
		if inviter.Role == model.RoleGuest {
			return apperrors.Forbidden("Guests may not invite")
		}

		invitee, err := b.Users.FindByID(ctx, params.InviteeID)
		if err != nil {
			return err
		}
		if invitee == nil {
			return apperrors.NotFound("Invitee")
		}

		member, err := b.Members.Get(ctx, params.ChannelID, params.InviteeID)
		if err != nil {
			return err
		}
		if member != nil {
			return apperrors.AlreadyMember()
		}

		pending, err := b.ChannelInvitations.FindPendingByChannelAndInvitee(ctx, params.ChannelID, params.InviteeID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, p := range pending {
			if !p.Expired(now) {
				return apperrors.AlreadyExists("Invitation")
			}
		}

		inv = &model.ChannelInvitation{
			ID:        uuid.New(),
			ChannelID: params.ChannelID,
			InviterID: params.InviterID,
			InviteeID: params.InviteeID,
			Status:    model.InvitationPending,
			Role:      params.Role,
			ExpiresAt: params.ExpiresAt,
			CreatedAt: now,
		}
		return b.ChannelInvitations.Save(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("invitationId", inv.ID.String()).
		Str("channelId", inv.ChannelID.String()).
		Str("inviteeId", inv.InviteeID.String()).
		Msg("channel invitation created")

	return inv, nil
}

// Accept flips a pending invitation to accepted and adds the membership in
// the same commit.
func (s *ChannelInvitationService) Accept(ctx context.Context, invitationID, actorID uuid.UUID) (*model.ChannelMember, error) {
	var member *model.ChannelMember
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		inv, err := s.loadForResolution(ctx, b, invitationID, actorID)
		if err != nil {
			return err
		}

		existing, err := b.Members.Get(ctx, inv.ChannelID, actorID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.AlreadyMember()
		}

		inv.Status = model.InvitationAccepted
		if err := b.ChannelInvitations.Save(ctx, inv); err != nil {
			return err
		}
		member = &model.ChannelMember{
			ChannelID: inv.ChannelID,
			UserID:    actorID,
			Role:      inv.Role,
			JoinedAt:  s.now(),
		}
		return b.Members.Put(ctx, member)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// Reject flips a pending invitation to rejected. No membership is created.
func (s *ChannelInvitationService) Reject(ctx context.Context, invitationID, actorID uuid.UUID) error {
	return s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		inv, err := s.loadForResolution(ctx, b, invitationID, actorID)
		if err != nil {
			return err
		}
		inv.Status = model.InvitationRejected
		return b.ChannelInvitations.Save(ctx, inv)
	})
}

// Update lets the inviter adjust the offered role or expiry while the
// invitation is still pending. Zero values leave the field unchanged; at
// least one field must be set.
func (s *ChannelInvitationService) Update(ctx context.Context, invitationID, actorID uuid.UUID, role model.ChannelRole, expiresAt time.Time) (*model.ChannelInvitation, error) {
	if role == "" && expiresAt.IsZero() {
		return nil, apperrors.InvalidInput("body", "at least one of role, expiresAt is required")
	}
	if role != "" && (!role.Valid() || role == model.RoleOwner) {
		return nil, apperrors.InvalidInput("role", "must be member or guest")
	}

	var inv *model.ChannelInvitation
	err := s.mgr.Run(ctx, sql.LevelSerializable, func(ctx context.Context, b *store.Bundle) error {
		var err error
		inv, err = b.ChannelInvitations.FindByID(ctx, invitationID)
		if err != nil {
			return err
		}
		if inv == nil {
			return apperrors.NotFound("Invitation")
		}
		if inv.InviterID != actorID {
			return apperrors.Forbidden("Only the inviter may update an invitation")
		}
		if inv.Status.Resolved() {
			return apperrors.InvitationResolved()
		}
		if role != "" {
			inv.Role = role
		}
		if !expiresAt.IsZero() {
			inv.ExpiresAt = expiresAt
		}
		return b.ChannelInvitations.Save(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListForInvitee returns every invitation addressed to the user, resolved
// ones included until the sweeper removes them.
func (s *ChannelInvitationService) ListForInvitee(ctx context.Context, inviteeID uuid.UUID) ([]*model.ChannelInvitation, error) {
	var invs []*model.ChannelInvitation
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		var err error
		invs, err = b.ChannelInvitations.FindByInvitee(ctx, inviteeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invs, nil
}

func (s *ChannelInvitationService) loadForResolution(ctx context.Context, b *store.Bundle, invitationID, actorID uuid.UUID) (*model.ChannelInvitation, error) {
	inv, err := b.ChannelInvitations.FindByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperrors.NotFound("Invitation")
	}
	if inv.InviteeID != actorID {
		return nil, apperrors.Forbidden("Only the invitee may resolve an invitation")
	}
	if inv.Status.Resolved() {
		return nil, apperrors.InvitationResolved()
	}
	if inv.Expired(s.now()) {
		return nil, apperrors.InvitationExpired()
	}
	return inv, nil
}
