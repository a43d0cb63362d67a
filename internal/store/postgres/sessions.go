package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

var sessionsTable = table{
	name:    "sessions",
	idCol:   "id",
	defSort: "createdAt",
	sorts: map[string]string{
		"createdAt": "created_at",
		"expiresAt": "expires_at",
	},
}

type sessionRepo struct {
	q queryer
}

func (r *sessionRepo) Save(ctx context.Context, s *model.Session) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, s.ID, s.UserID, s.CreatedAt, s.ExpiresAt)
	return err
}

func (r *sessionRepo) SaveAll(ctx context.Context, ss []*model.Session) error {
	for _, s := range ss {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return findByID[model.Session](ctx, r.q, sessionsTable, id)
}

func (r *sessionRepo) FindAll(ctx context.Context) ([]*model.Session, error) {
	return findAll[model.Session](ctx, r.q, sessionsTable)
}

func (r *sessionRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Session], error) {
	return findPage[model.Session](ctx, r.q, sessionsTable, page, sort,
		func(s *model.Session) string { return s.ID.String() }, nil, nil)
}

func (r *sessionRepo) FindAllByID(ctx context.Context, ids []uuid.UUID) ([]*model.Session, error) {
	return selectMany[model.Session](ctx, r.q, `
		SELECT * FROM sessions WHERE id = ANY($1) ORDER BY created_at ASC, id ASC
	`, uuidArray(ids))
}

func (r *sessionRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]*model.Session, error) {
	return selectMany[model.Session](ctx, r.q, `
		SELECT * FROM sessions WHERE user_id = $1 ORDER BY created_at ASC, id ASC
	`, userID)
}

// DeleteByID removes the session's tokens first; the session exclusively
// owns them.
func (r *sessionRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	steps := []string{
		`DELETE FROM access_tokens WHERE session_id = $1`,
		`DELETE FROM refresh_tokens WHERE session_id = $1`,
		`DELETE FROM sessions WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := execRows(ctx, r.q, step, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, s *model.Session) error {
	return r.DeleteByID(ctx, s.ID)
}

func (r *sessionRepo) DeleteAll(ctx context.Context) error {
	steps := []string{
		`DELETE FROM access_tokens`,
		`DELETE FROM refresh_tokens`,
		`DELETE FROM sessions`,
	}
	for _, step := range steps {
		if _, err := execRows(ctx, r.q, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tokenSteps := []string{
		`DELETE FROM access_tokens WHERE session_id IN (SELECT id FROM sessions WHERE expires_at < $1)`,
		`DELETE FROM refresh_tokens WHERE session_id IN (SELECT id FROM sessions WHERE expires_at < $1)`,
	}
	for _, step := range tokenSteps {
		if _, err := execRows(ctx, r.q, step, now); err != nil {
			return 0, err
		}
	}
	return execRows(ctx, r.q, `DELETE FROM sessions WHERE expires_at < $1`, now)
}

func (r *sessionRepo) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return existsByID(ctx, r.q, sessionsTable, id)
}

func (r *sessionRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, sessionsTable)
}
