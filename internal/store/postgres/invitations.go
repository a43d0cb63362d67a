package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

var channelInvitationsTable = table{
	name:    "channel_invitations",
	idCol:   "id",
	defSort: "createdAt",
	sorts: map[string]string{
		"createdAt": "created_at",
		"expiresAt": "expires_at",
	},
}

type channelInvitationRepo struct {
	q queryer
}

func (r *channelInvitationRepo) Save(ctx context.Context, inv *model.ChannelInvitation) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO channel_invitations (id, channel_id, inviter_id, invitee_id, status, role, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			role = EXCLUDED.role,
			expires_at = EXCLUDED.expires_at
	`, inv.ID, inv.ChannelID, inv.InviterID, inv.InviteeID, inv.Status, inv.Role, inv.ExpiresAt, inv.CreatedAt)
	return err
}

func (r *channelInvitationRepo) SaveAll(ctx context.Context, invs []*model.ChannelInvitation) error {
	for _, inv := range invs {
		if err := r.Save(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

func (r *channelInvitationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ChannelInvitation, error) {
	return findByID[model.ChannelInvitation](ctx, r.q, channelInvitationsTable, id)
}

func (r *channelInvitationRepo) FindAll(ctx context.Context) ([]*model.ChannelInvitation, error) {
	return findAll[model.ChannelInvitation](ctx, r.q, channelInvitationsTable)
}

func (r *channelInvitationRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.ChannelInvitation], error) {
	return findPage[model.ChannelInvitation](ctx, r.q, channelInvitationsTable, page, sort,
		func(inv *model.ChannelInvitation) string { return inv.ID.String() }, nil, nil)
}

func (r *channelInvitationRepo) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]*model.ChannelInvitation, error) {
	return selectMany[model.ChannelInvitation](ctx, r.q, `
		SELECT * FROM channel_invitations WHERE id = ANY($1) ORDER BY created_at ASC, id ASC
	`, uuidArray(ids))
}

func (r *channelInvitationRepo) FindPendingByChannelAndInvitee(ctx context.Context, channelID, inviteeID uuid.UUID) ([]*model.ChannelInvitation, error) {
	return selectMany[model.ChannelInvitation](ctx, r.q, `
		SELECT * FROM channel_invitations
		WHERE channel_id = $1 AND invitee_id = $2 AND status = $3
		ORDER BY created_at ASC, id ASC
	`, channelID, inviteeID, model.InvitationPending)
}

func (r *channelInvitationRepo) FindByInvitee(ctx context.Context, inviteeID uuid.UUID) ([]*model.ChannelInvitation, error) {
	return selectMany[model.ChannelInvitation](ctx, r.q, `
		SELECT * FROM channel_invitations WHERE invitee_id = $1 ORDER BY created_at ASC, id ASC
	`, inviteeID)
}

func (r *channelInvitationRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.q, channelInvitationsTable, id)
}

func (r *channelInvitationRepo) Delete(ctx context.Context, inv *model.ChannelInvitation) error {
	return r.DeleteByID(ctx, inv.ID)
}

func (r *channelInvitationRepo) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, r.q, channelInvitationsTable)
}

func (r *channelInvitationRepo) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `DELETE FROM channel_invitations WHERE channel_id = $1`, channelID)
	return err
}

func (r *channelInvitationRepo) DeleteResolvedOrExpired(ctx context.Context, now time.Time) (int64, error) {
	return execRows(ctx, r.q, `
		DELETE FROM channel_invitations WHERE expires_at < $1 OR status <> $2
	`, now, model.InvitationPending)
}

func (r *channelInvitationRepo) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return existsByID(ctx, r.q, channelInvitationsTable, id)
}

func (r *channelInvitationRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, channelInvitationsTable)
}

var imInvitationsTable = table{
	name:    "im_invitations",
	idCol:   "token",
	defSort: "createdAt",
	sorts: map[string]string{
		"createdAt": "created_at",
		"expiresAt": "expires_at",
	},
}

type imInvitationRepo struct {
	q queryer
}

func (r *imInvitationRepo) Save(ctx context.Context, inv *model.ImInvitation) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO im_invitations (token, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at
	`, inv.Token, inv.Status, inv.ExpiresAt, inv.CreatedAt)
	return err
}

func (r *imInvitationRepo) SaveAll(ctx context.Context, invs []*model.ImInvitation) error {
	for _, inv := range invs {
		if err := r.Save(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

func (r *imInvitationRepo) FindByID(ctx context.Context, token uuid.UUID) (*model.ImInvitation, error) {
	return findByID[model.ImInvitation](ctx, r.q, imInvitationsTable, token)
}

func (r *imInvitationRepo) FindAll(ctx context.Context) ([]*model.ImInvitation, error) {
	return findAll[model.ImInvitation](ctx, r.q, imInvitationsTable)
}

func (r *imInvitationRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.ImInvitation], error) {
	return findPage[model.ImInvitation](ctx, r.q, imInvitationsTable, page, sort,
		func(inv *model.ImInvitation) string { return inv.Token.String() }, nil, nil)
}

func (r *imInvitationRepo) FindAllByID(ctx context.Context, tokens []uuid.UUID) ([]*model.ImInvitation, error) {
	return selectMany[model.ImInvitation](ctx, r.q, `
		SELECT * FROM im_invitations WHERE token = ANY($1) ORDER BY created_at ASC, token ASC
	`, uuidArray(tokens))
}

func (r *imInvitationRepo) DeleteByID(ctx context.Context, token uuid.UUID) error {
	return deleteByID(ctx, r.q, imInvitationsTable, token)
}

func (r *imInvitationRepo) Delete(ctx context.Context, inv *model.ImInvitation) error {
	return r.DeleteByID(ctx, inv.Token)
}

func (r *imInvitationRepo) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, r.q, imInvitationsTable)
}

func (r *imInvitationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return execRows(ctx, r.q, `DELETE FROM im_invitations WHERE expires_at < $1`, now)
}

func (r *imInvitationRepo) ExistsByID(ctx context.Context, token uuid.UUID) (bool, error) {
	return existsByID(ctx, r.q, imInvitationsTable, token)
}

func (r *imInvitationRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, imInvitationsTable)
}
