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

// ImInvitationService issues the single-use application-join tokens that
// registration consumes.
type ImInvitationService struct {
	mgr *store.Manager
	now nowFunc
}

func NewImInvitationService(mgr *store.Manager) *ImInvitationService {
	return &ImInvitationService{mgr: mgr, now: defaultNow}
}

func (s *ImInvitationService) Create(ctx context.Context, ttl time.Duration) (*model.ImInvitation, error) {
	if ttl <= 0 {
		return nil, apperrors.InvalidInput("ttl", "must be positive")
	}

	now := s.now()
	inv := &model.ImInvitation{
		Token:     uuid.New(),
		Status:    model.ImInvitationPending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		return b.ImInvitations.Save(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("token", inv.Token.String()).
		Time("expiresAt", inv.ExpiresAt).
		Msg("application invitation created")

	return inv, nil
}

func (s *ImInvitationService) Get(ctx context.Context, token uuid.UUID) (*model.ImInvitation, error) {
	var inv *model.ImInvitation
	err := s.mgr.Run(ctx, sql.LevelReadCommitted, func(ctx context.Context, b *store.Bundle) error {
		var err error
		inv, err = b.ImInvitations.FindByID(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperrors.NotFound("Invitation")
	}
	return inv, nil
}
