package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

var messagesTable = table{
	name:    "messages",
	idCol:   "id",
	defSort: "createdAt",
	sorts: map[string]string{
		"createdAt": "created_at",
	},
}

type messageRepo struct {
	q queryer
}

func (r *messageRepo) Save(ctx context.Context, m *model.Message) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO messages (id, channel_id, user_id, content, created_at, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			edited_at = EXCLUDED.edited_at
	`, m.ID, m.ChannelID, m.UserID, m.Content, m.CreatedAt, m.EditedAt)
	return err
}

func (r *messageRepo) SaveAll(ctx context.Context, ms []*model.Message) error {
	for _, m := range ms {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *messageRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	return findByID[model.Message](ctx, r.q, messagesTable, id)
}

func (r *messageRepo) FindAll(ctx context.Context) ([]*model.Message, error) {
	return findAll[model.Message](ctx, r.q, messagesTable)
}

func (r *messageRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Message], error) {
	return findPage[model.Message](ctx, r.q, messagesTable, page, sort,
		func(m *model.Message) string { return m.ID.String() }, nil, nil)
}

func (r *messageRepo) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]*model.Message, error) {
	return selectMany[model.Message](ctx, r.q, `
		SELECT * FROM messages WHERE id = ANY($1) ORDER BY created_at ASC, id ASC
	`, uuidArray(ids))
}

func (r *messageRepo) FindByChannel(ctx context.Context, channelID uuid.UUID, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Message], error) {
	return findPage[model.Message](ctx, r.q, messagesTable, page, sort,
		func(m *model.Message) string { return m.ID.String() },
		[]string{"channel_id = $1"}, []interface{}{channelID})
}

func (r *messageRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return deleteByID(ctx, r.q, messagesTable, id)
}

func (r *messageRepo) Delete(ctx context.Context, m *model.Message) error {
	return r.DeleteByID(ctx, m.ID)
}

func (r *messageRepo) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, r.q, messagesTable)
}

func (r *messageRepo) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `DELETE FROM messages WHERE channel_id = $1`, channelID)
	return err
}

func (r *messageRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `DELETE FROM messages WHERE user_id = $1`, userID)
	return err
}

func (r *messageRepo) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return existsByID(ctx, r.q, messagesTable, id)
}

func (r *messageRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, messagesTable)
}
