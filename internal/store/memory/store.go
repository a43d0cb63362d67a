// Package memory is the reference in-process backend. It mirrors the
// postgres backend's pagination, sorting and conflict semantics exactly so
// the two are interchangeable under the store contracts; units of work are
// optimistic with first-committer-wins validation.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/store"
)

var errTxDone = errors.New("memory: unit of work already finished")

type Store struct {
	// mu serializes commits; reads stay lock-free on the concurrent maps.
	mu sync.Mutex

	users              *table[model.User]
	sessions           *table[model.Session]
	accessTokens       *table[model.AccessToken]
	refreshTokens      *table[model.RefreshToken]
	channels           *table[model.Channel]
	members            *table[model.ChannelMember]
	channelInvitations *table[model.ChannelInvitation]
	imInvitations      *table[model.ImInvitation]
	messages           *table[model.Message]
}

func New() *Store {
	return &Store{
		users:              newTable[model.User](),
		sessions:           newTable[model.Session](),
		accessTokens:       newTable[model.AccessToken](),
		refreshTokens:      newTable[model.RefreshToken](),
		channels:           newTable[model.Channel](),
		members:            newTable[model.ChannelMember](),
		channelInvitations: newTable[model.ChannelInvitation](),
		imInvitations:      newTable[model.ImInvitation](),
		messages:           newTable[model.Message](),
	}
}

type overlay interface {
	validate() bool
	apply()
}

type Tx struct {
	store *Store
	iso   sql.IsolationLevel
	done  bool

	views  []overlay
	bundle *store.Bundle
}

func (s *Store) Begin(ctx context.Context, iso sql.IsolationLevel) (store.Tx, error) {
	users := newView(s.users, userMeta)
	sessions := newView(s.sessions, sessionMeta)
	accessTokens := newView(s.accessTokens, accessTokenMeta)
	refreshTokens := newView(s.refreshTokens, refreshTokenMeta)
	channels := newView(s.channels, channelMeta)
	members := newView(s.members, memberMeta)
	channelInvitations := newView(s.channelInvitations, channelInvitationMeta)
	imInvitations := newView(s.imInvitations, imInvitationMeta)
	messages := newView(s.messages, messageMeta)

	sessionR := &sessionRepo{
		repo:    repo[model.Session, uuidID]{v: sessions, sid: uuidKey},
		access:  accessTokens,
		refresh: refreshTokens,
	}
	memberR := &memberRepo{v: members}
	messageR := &messageRepo{repo: repo[model.Message, uuidID]{v: messages, sid: uuidKey}}
	invitationR := &channelInvitationRepo{repo: repo[model.ChannelInvitation, uuidID]{v: channelInvitations, sid: uuidKey}}
	userR := &userRepo{
		repo:        repo[model.User, uuidID]{v: users, sid: uuidKey},
		sessions:    sessionR,
		members:     memberR,
		invitations: invitationR,
		messages:    messageR,
	}
	channelR := &channelRepo{
		repo:        repo[model.Channel, uuidID]{v: channels, sid: uuidKey},
		members:     memberR,
		invitations: invitationR,
		messages:    messageR,
	}

	tx := &Tx{
		store: s,
		iso:   iso,
		views: []overlay{
			users, sessions, accessTokens, refreshTokens,
			channels, members, channelInvitations, imInvitations, messages,
		},
		bundle: &store.Bundle{
			Users:    userR,
			Sessions: sessionR,
			AccessTokens: &accessTokenRepo{
				repo: repo[model.AccessToken, string]{v: accessTokens, sid: stringKey},
			},
			RefreshTokens: &refreshTokenRepo{
				repo: repo[model.RefreshToken, string]{v: refreshTokens, sid: stringKey},
			},
			Channels:           channelR,
			Members:            memberR,
			ChannelInvitations: invitationR,
			ImInvitations: &imInvitationRepo{
				repo: repo[model.ImInvitation, uuidID]{v: imInvitations, sid: uuidKey},
			},
			Messages: messageR,
		},
	}
	return tx, nil
}

func (t *Tx) Repos() *store.Bundle { return t.bundle }

func (t *Tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.iso == sql.LevelSerializable || t.iso == sql.LevelRepeatableRead {
		for _, v := range t.views {
			if !v.validate() {
				return fmt.Errorf("memory commit: %w", store.ErrSerialization)
			}
		}
	}
	for _, v := range t.views {
		v.apply()
	}
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	return nil
}
