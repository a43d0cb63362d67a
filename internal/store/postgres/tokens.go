package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

var accessTokensTable = table{
	name:    "access_tokens",
	idCol:   "token_hash",
	defSort: "expiresAt",
	sorts: map[string]string{
		"expiresAt": "expires_at",
	},
}

type accessTokenRepo struct {
	q queryer
}

func (r *accessTokenRepo) Save(ctx context.Context, t *model.AccessToken) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO access_tokens (token_hash, session_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, t.TokenHash, t.SessionID, t.ExpiresAt)
	return err
}

func (r *accessTokenRepo) SaveAll(ctx context.Context, ts []*model.AccessToken) error {
	for _, t := range ts {
		if err := r.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *accessTokenRepo) FindByID(ctx context.Context, tokenHash string) (*model.AccessToken, error) {
	return findByID[model.AccessToken](ctx, r.q, accessTokensTable, tokenHash)
}

func (r *accessTokenRepo) FindAll(ctx context.Context) ([]*model.AccessToken, error) {
	return findAll[model.AccessToken](ctx, r.q, accessTokensTable)
}

func (r *accessTokenRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.AccessToken], error) {
	return findPage[model.AccessToken](ctx, r.q, accessTokensTable, page, sort,
		func(t *model.AccessToken) string { return t.TokenHash }, nil, nil)
}

func (r *accessTokenRepo) FindAllByID(ctx context.Context, hashes []string) ([]*model.AccessToken, error) {
	return selectMany[model.AccessToken](ctx, r.q, `
		SELECT * FROM access_tokens WHERE token_hash = ANY($1) ORDER BY expires_at ASC, token_hash ASC
	`, pq.Array(hashes))
}

func (r *accessTokenRepo) DeleteByID(ctx context.Context, tokenHash string) error {
	return deleteByID(ctx, r.q, accessTokensTable, tokenHash)
}

func (r *accessTokenRepo) Delete(ctx context.Context, t *model.AccessToken) error {
	return r.DeleteByID(ctx, t.TokenHash)
}

func (r *accessTokenRepo) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, r.q, accessTokensTable)
}

func (r *accessTokenRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `DELETE FROM access_tokens WHERE session_id = $1`, sessionID)
	return err
}

func (r *accessTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return execRows(ctx, r.q, `DELETE FROM access_tokens WHERE expires_at < $1`, now)
}

func (r *accessTokenRepo) ExistsByID(ctx context.Context, tokenHash string) (bool, error) {
	return existsByID(ctx, r.q, accessTokensTable, tokenHash)
}

func (r *accessTokenRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, accessTokensTable)
}

var refreshTokensTable = table{
	name:    "refresh_tokens",
	idCol:   "token_hash",
	defSort: "expiresAt",
	sorts: map[string]string{
		"expiresAt": "expires_at",
	},
}

type refreshTokenRepo struct {
	q queryer
}

func (r *refreshTokenRepo) Save(ctx context.Context, t *model.RefreshToken) error {
	_, err := execRows(ctx, r.q, `
		INSERT INTO refresh_tokens (token_hash, session_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, t.TokenHash, t.SessionID, t.ExpiresAt)
	return err
}

func (r *refreshTokenRepo) SaveAll(ctx context.Context, ts []*model.RefreshToken) error {
	for _, t := range ts {
		if err := r.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *refreshTokenRepo) FindByID(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	return findByID[model.RefreshToken](ctx, r.q, refreshTokensTable, tokenHash)
}

func (r *refreshTokenRepo) FindAll(ctx context.Context) ([]*model.RefreshToken, error) {
	return findAll[model.RefreshToken](ctx, r.q, refreshTokensTable)
}

func (r *refreshTokenRepo) Find(ctx context.Context, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.RefreshToken], error) {
	return findPage[model.RefreshToken](ctx, r.q, refreshTokensTable, page, sort,
		func(t *model.RefreshToken) string { return t.TokenHash }, nil, nil)
}

func (r *refreshTokenRepo) FindAllByID(ctx context.Context, hashes []string) ([]*model.RefreshToken, error) {
	return selectMany[model.RefreshToken](ctx, r.q, `
		SELECT * FROM refresh_tokens WHERE token_hash = ANY($1) ORDER BY expires_at ASC, token_hash ASC
	`, pq.Array(hashes))
}

func (r *refreshTokenRepo) FindBySession(ctx context.Context, sessionID uuid.UUID) (*model.RefreshToken, error) {
	return getOne[model.RefreshToken](ctx, r.q, `
		SELECT * FROM refresh_tokens WHERE session_id = $1
	`, sessionID)
}

func (r *refreshTokenRepo) DeleteByID(ctx context.Context, tokenHash string) error {
	return deleteByID(ctx, r.q, refreshTokensTable, tokenHash)
}

func (r *refreshTokenRepo) Delete(ctx context.Context, t *model.RefreshToken) error {
	return r.DeleteByID(ctx, t.TokenHash)
}

func (r *refreshTokenRepo) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, r.q, refreshTokensTable)
}

func (r *refreshTokenRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := execRows(ctx, r.q, `DELETE FROM refresh_tokens WHERE session_id = $1`, sessionID)
	return err
}

func (r *refreshTokenRepo) ExistsByID(ctx context.Context, tokenHash string) (bool, error) {
	return existsByID(ctx, r.q, refreshTokensTable, tokenHash)
}

func (r *refreshTokenRepo) Count(ctx context.Context) (int64, error) {
	return countAll(ctx, r.q, refreshTokensTable)
}
