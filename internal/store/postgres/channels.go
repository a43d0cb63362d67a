package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

var channelsTable = table{
	name:    "channels",
	idCol:   "id",
	defSort: "createdAt",
	sorts: map[string]string{
		"createdAt": "created_at",
		"name":      "name",
	},
}

type channelRepo struct {
	q queryer
}

func (r *channelRepo) Save(ctx context.Context, c *model.Channel) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO channels (id, name, owner_id, default_role, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id,
			default_role = EXCLUDED.default_role,
			is_public = EXCLUDED.is_public
	`, c.ID, c.Name, c.OwnerID, c.DefaultRole, c.IsPublic, c.CreatedAt)
	return err
}

func (r *channelRepo) SaveAll(ctx context.Context, cs []*model.Channel) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *channelRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Channel, error) {
	return findByID[model.Channel](ctx, r.q, channelsTable, id)
}

func (r *channelRepo) FindAll(ctx context.Context) ([]*model.Channel, error) {
	return findAll[model.Channel](ctx, r.q, channelsTable)
}

func (r *channelRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Channel], error) {
	return findPage[model.Channel](ctx, r.q, channelsTable, page, sort,
		func(c *model.Channel) string { return c.ID.String() }, nil, nil)
}

func (r *channelRepo) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]*model.Channel, error) {
	return selectMany[model.Channel](ctx, r.q, `
		SELECT * FROM channels WHERE id = ANY($1) ORDER BY created_at ASC, id ASC
	`, uuidArray(ids))
}

func (r *channelRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Channel, error) {
	return selectMany[model.Channel](ctx, r.q, `
		SELECT * FROM channels WHERE owner_id = $1 ORDER BY created_at ASC, id ASC
	`, ownerID)
}

// DeleteByID removes the channel's invitations, memberships and messages
// before the channel row.
func (r *channelRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	steps := []string{
		`DELETE FROM channel_invitations WHERE channel_id = $1`,
		`DELETE FROM channel_members WHERE channel_id = $1`,
		`DELETE FROM messages WHERE channel_id = $1`,
		`DELETE FROM channels WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := execRows(ctx, r.q, step, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *channelRepo) Delete(ctx context.Context, c *model.Channel) error {
	return r.DeleteByID(ctx, c.ID)
}

func (r *channelRepo) DeleteAll(ctx context.Context) error {
	steps := []string{
		`DELETE FROM channel_invitations`,
		`DELETE FROM channel_members`,
		`DELETE FROM messages`,
		`DELETE FROM channels`,
	}
	for _, step := range steps {
		if _, err := execRows(ctx, r.q, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *channelRepo) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return existsByID(ctx, r.q, channelsTable, id)
}

func (r *channelRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, channelsTable)
}
