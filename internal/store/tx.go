package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MaxTxAttempts bounds how many times a serializable unit of work is
// re-executed after a serialization conflict.
const MaxTxAttempts = 3

// Store opens units of work against a backend.
type Store interface {
	Begin(ctx context.Context, iso sql.IsolationLevel) (Tx, error)
}

// Tx is one open unit of work. Writes made through Repos are not visible
// outside until Commit returns nil.
type Tx interface {
	Repos() *Bundle
	Commit() error
	Rollback() error
}

// Manager runs functions as units of work: commit on success, rollback on
// error, and bounded re-execution from scratch when a serialization
// conflict occurs under serializable isolation. Non-conflict errors are
// never retried.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Run(ctx context.Context, iso sql.IsolationLevel, fn func(ctx context.Context, b *Bundle) error) error {
	var lastErr error
	for attempt := 1; attempt <= MaxTxAttempts; attempt++ {
		err := m.runOnce(ctx, iso, fn)
		if err == nil {
			return nil
		}
		if iso != sql.LevelSerializable || !errors.Is(err, ErrSerialization) {
			return err
		}
		lastErr = err
		log.Debug().Int("attempt", attempt).Msg("serialization conflict, retrying unit of work")
	}
	return fmt.Errorf("unit of work still conflicting after %d attempts: %w", MaxTxAttempts, lastErr)
}

func (m *Manager) runOnce(ctx context.Context, iso sql.IsolationLevel, fn func(ctx context.Context, b *Bundle) error) error {
	tx, err := m.store.Begin(ctx, iso)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx.Repos()); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
