package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
)

type memberRepo struct {
	q queryer
}

func (r *memberRepo) Put(ctx context.Context, m *model.ChannelMember) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO channel_members (channel_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, m.ChannelID, m.UserID, m.Role, m.JoinedAt)
	return err
}

func (r *memberRepo) Get(ctx context.Context, channelID, userID uuid.UUID) (*model.ChannelMember, error) {
	return getOne[model.ChannelMember](ctx, r.q, `
		SELECT * FROM channel_members WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID)
}

func (r *memberRepo) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]*model.ChannelMember, error) {
	return selectMany[model.ChannelMember](ctx, r.q, `
		SELECT * FROM channel_members WHERE channel_id = $1 ORDER BY joined_at ASC, user_id ASC
	`, channelID)
}

func (r *memberRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.ChannelMember, error) {
	return selectMany[model.ChannelMember](ctx, r.q, `
		SELECT * FROM channel_members WHERE user_id = $1 ORDER BY joined_at ASC, channel_id ASC
	`, userID)
}

func (r *memberRepo) Delete(ctx context.Context, channelID, userID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `
		DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID)
	return err
}

func (r *memberRepo) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `DELETE FROM channel_members WHERE channel_id = $1`, channelID)
	return err
}

func (r *memberRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `DELETE FROM channel_members WHERE user_id = $1`, userID)
	return err
}

func (r *memberRepo) CountByChannel(ctx context.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	if err := r.q.GetContext(ctx, &n, `SELECT COUNT(*) FROM channel_members WHERE channel_id = $1`, channelID); err != nil {
		return 0, wrap(err)
	}
	return n, nil
}
