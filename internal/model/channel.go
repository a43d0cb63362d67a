package model

import (
	"time"

	"github.com/google/uuid"
)

type Channel struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	OwnerID     uuid.UUID   `db:"owner_id" json:"ownerId"`
	DefaultRole ChannelRole `db:"default_role" json:"defaultRole"`
	IsPublic    bool        `db:"is_public" json:"isPublic"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// ChannelMember is the join relation (channel, user) -> role. It has no
// identity beyond that pair.
type ChannelMember struct {
	ChannelID uuid.UUID   `db:"channel_id" json:"channelId"`
	UserID    uuid.UUID   `db:"user_id" json:"userId"`
	Role      ChannelRole `db:"role" json:"role"`
	JoinedAt  time.Time   `db:"joined_at" json:"joinedAt"`
}

type CreateChannelParams struct {
	Name        string
	OwnerID     uuid.UUID
	DefaultRole ChannelRole
	IsPublic    bool
}
