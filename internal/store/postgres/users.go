package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

var usersTable = table{
	name:    "users",
	idCol:   "id",
	defSort: "createdAt",
	sorts: map[string]string{
		"createdAt": "created_at",
		"name":      "name",
		"email":     "email",
	},
}

type userRepo struct {
	q queryer
}

func (r *userRepo) Save(ctx context.Context, u *model.User) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	return err
}

func (r *userRepo) SaveAll(ctx context.Context, us []*model.User) error {
	for _, u := range us {
		if err := r.Save(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return findByID[model.User](ctx, r.q, usersTable, id)
}

func (r *userRepo) FindAll(ctx context.Context) ([]*model.User, error) {
	return findAll[model.User](ctx, r.q, usersTable)
}

func (r *userRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.User], error) {
	return findPage[model.User](ctx, r.q, usersTable, page, sort,
		func(u *model.User) string { return u.ID.String() }, nil, nil)
}

func (r *userRepo) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	return selectMany[model.User](ctx, r.q, `
		SELECT * FROM users WHERE id = ANY($1) ORDER BY created_at ASC, id ASC
	`, uuidArray(ids))
}

func (r *userRepo) FindByNameOrEmail(ctx context.Context, nameOrEmail string) (*model.User, error) {
	return getOne[model.User](ctx, r.q, `
		SELECT * FROM users WHERE name = $1 OR LOWER(email) = LOWER($1)
	`, nameOrEmail)
}

func (r *userRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.q.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE name = $1)`, name)
	if err != nil {
		return false, wrap(err)
	}
	return exists, nil
}

func (r *userRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email)
	if err != nil {
		return false, wrap(err)
	}
	return exists, nil
}

// DeleteByID removes everything the user owns before the user row:
// sessions with their tokens, invitations either side, memberships and
// messages. Channels the user owns survive with a dangling owner kept by
// the channel's own lifecycle.
func (r *userRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	steps := []string{
		`DELETE FROM access_tokens WHERE session_id IN (SELECT id FROM sessions WHERE user_id = $1)`,
		`DELETE FROM refresh_tokens WHERE session_id IN (SELECT id FROM sessions WHERE user_id = $1)`,
		`DELETE FROM sessions WHERE user_id = $1`,
		`DELETE FROM channel_invitations WHERE inviter_id = $1 OR invitee_id = $1`,
		`DELETE FROM channel_members WHERE user_id = $1`,
		`DELETE FROM messages WHERE user_id = $1`,
		`DELETE FROM users WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := execRows(ctx, r.q, step, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, u *model.User) error {
	return r.DeleteByID(ctx, u.ID)
}

func (r *userRepo) DeleteAll(ctx context.Context) error {
	steps := []string{
		`DELETE FROM access_tokens`,
		`DELETE FROM refresh_tokens`,
		`DELETE FROM sessions`,
		`DELETE FROM channel_invitations`,
		`DELETE FROM channel_members`,
		`DELETE FROM messages`,
		`DELETE FROM users`,
	}
	for _, step := range steps {
		if _, err := execRows(ctx, r.q, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepo) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return existsByID(ctx, r.q, usersTable, id)
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, usersTable)
}
