package model

import (
	"time"

	"github.com/google/uuid"
)

// ChannelInvitation moves pending -> accepted or pending -> rejected and
// never leaves a terminal state. Expiry is time-based and independent of
// status: an expired pending invitation is inert until the sweeper deletes
// it.
type ChannelInvitation struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	ChannelID uuid.UUID        `db:"channel_id" json:"channelId"`
	InviterID uuid.UUID        `db:"inviter_id" json:"inviterId"`
	InviteeID uuid.UUID        `db:"invitee_id" json:"inviteeId"`
	Status    InvitationStatus `db:"status" json:"status"`
	Role      ChannelRole      `db:"role" json:"role"`
	ExpiresAt time.Time        `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}

func (i *ChannelInvitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Acceptable reports whether the invitation can still be resolved.
func (i *ChannelInvitation) Acceptable(now time.Time) bool {
	return i.Status == InvitationPending && !i.Expired(now)
}

type CreateChannelInvitationParams struct {
	ChannelID uuid.UUID
	InviterID uuid.UUID
	InviteeID uuid.UUID
	Role      ChannelRole
	ExpiresAt time.Time
}

// ImInvitation is a single-use application-join token consumed exactly once
// at registration.
type ImInvitation struct {
	Token     uuid.UUID          `db:"token" json:"token"`
	Status    ImInvitationStatus `db:"status" json:"status"`
	ExpiresAt time.Time          `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
}

func (i *ImInvitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

func (i *ImInvitation) Consumable(now time.Time) bool {
	return i.Status == ImInvitationPending && !i.Expired(now)
}
