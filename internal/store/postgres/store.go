// Package postgres is the durable backend. Serialization failures and
// deadlocks reported by the driver are mapped onto store.ErrSerialization
// so the transaction manager can retry them; everything else propagates as
// fatal.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/loqui/chat-server-go/internal/store"
)

// SQLSTATE codes the retry loop cares about.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %v", store.ErrSerialization, err)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
	}
	return err
}

// queryer is satisfied by *sqlx.Tx; repositories only ever run inside a
// unit of work.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

type Tx struct {
	tx     *sqlx.Tx
	bundle *store.Bundle
}

func (s *Store) Begin(ctx context.Context, iso sql.IsolationLevel) (store.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: iso})
	if err != nil {
		return nil, wrap(err)
	}

	return &Tx{
		tx: tx,
		bundle: &store.Bundle{
			Users:              &userRepo{q: tx},
			Sessions:           &sessionRepo{q: tx},
			AccessTokens:       &accessTokenRepo{q: tx},
			RefreshTokens:      &refreshTokenRepo{q: tx},
			Channels:           &channelRepo{q: tx},
			Members:            &memberRepo{q: tx},
			ChannelInvitations: &channelInvitationRepo{q: tx},
			ImInvitations:      &imInvitationRepo{q: tx},
			Messages:           &messageRepo{q: tx},
		},
	}, nil
}

func (t *Tx) Repos() *store.Bundle { return t.bundle }

func (t *Tx) Commit() error {
	return wrap(t.tx.Commit())
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
