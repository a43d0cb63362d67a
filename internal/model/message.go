package model

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ChannelID uuid.UUID  `db:"channel_id" json:"channelId"`
	UserID    uuid.UUID  `db:"user_id" json:"userId"`
	Content   string     `db:"content" json:"content"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	EditedAt  *time.Time `db:"edited_at" json:"editedAt,omitempty"`
}

type CreateMessageParams struct {
	ChannelID uuid.UUID
	UserID    uuid.UUID
	Content   string
}

// ValidateMessageContent enforces the 1-300 character, non-blank content
// rule shared by send and edit.
func ValidateMessageContent(content string) error {
	var v ValidationErrors
	ValidateContent(&v, content)
	return v.OrNil()
}
