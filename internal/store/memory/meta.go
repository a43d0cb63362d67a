package memory

import (
	"strings"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
)

type uuidID = uuid.UUID

func uuidKey(id uuid.UUID) string { return id.String() }
func stringKey(id string) string  { return id }

func memberKey(channelID, userID uuid.UUID) string {
	return channelID.String() + "/" + userID.String()
}

var userMeta = meta[model.User]{
	key:     func(u *model.User) string { return u.ID.String() },
	defSort: "createdAt",
	sorts: map[string]func(a, b *model.User) int{
		"createdAt": func(a, b *model.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"name":      func(a, b *model.User) int { return strings.Compare(a.Name, b.Name) },
		"email":     func(a, b *model.User) int { return strings.Compare(a.Email, b.Email) },
	},
}

var sessionMeta = meta[model.Session]{
	key:     func(s *model.Session) string { return s.ID.String() },
	defSort: "createdAt",
	sorts: map[string]func(a, b *model.Session) int{
		"createdAt": func(a, b *model.Session) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"expiresAt": func(a, b *model.Session) int { return a.ExpiresAt.Compare(b.ExpiresAt) },
	},
}

var accessTokenMeta = meta[model.AccessToken]{
	key:     func(t *model.AccessToken) string { return t.TokenHash },
	defSort: "expiresAt",
	sorts: map[string]func(a, b *model.AccessToken) int{
		"expiresAt": func(a, b *model.AccessToken) int { return a.ExpiresAt.Compare(b.ExpiresAt) },
	},
}

var refreshTokenMeta = meta[model.RefreshToken]{
	key:     func(t *model.RefreshToken) string { return t.TokenHash },
	defSort: "expiresAt",
	sorts: map[string]func(a, b *model.RefreshToken) int{
		"expiresAt": func(a, b *model.RefreshToken) int { return a.ExpiresAt.Compare(b.ExpiresAt) },
	},
}

var channelMeta = meta[model.Channel]{
	key:     func(c *model.Channel) string { return c.ID.String() },
	defSort: "createdAt",
	sorts: map[string]func(a, b *model.Channel) int{
		"createdAt": func(a, b *model.Channel) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"name":      func(a, b *model.Channel) int { return strings.Compare(a.Name, b.Name) },
	},
}

var memberMeta = meta[model.ChannelMember]{
	key:     func(m *model.ChannelMember) string { return memberKey(m.ChannelID, m.UserID) },
	defSort: "joinedAt",
	sorts: map[string]func(a, b *model.ChannelMember) int{
		"joinedAt": func(a, b *model.ChannelMember) int { return a.JoinedAt.Compare(b.JoinedAt) },
	},
}

var channelInvitationMeta = meta[model.ChannelInvitation]{
	key:     func(i *model.ChannelInvitation) string { return i.ID.String() },
	defSort: "createdAt",
	sorts: map[string]func(a, b *model.ChannelInvitation) int{
		"createdAt": func(a, b *model.ChannelInvitation) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"expiresAt": func(a, b *model.ChannelInvitation) int { return a.ExpiresAt.Compare(b.ExpiresAt) },
	},
}

var imInvitationMeta = meta[model.ImInvitation]{
	key:     func(i *model.ImInvitation) string { return i.Token.String() },
	defSort: "createdAt",
	sorts: map[string]func(a, b *model.ImInvitation) int{
		"createdAt": func(a, b *model.ImInvitation) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"expiresAt": func(a, b *model.ImInvitation) int { return a.ExpiresAt.Compare(b.ExpiresAt) },
	},
}

var messageMeta = meta[model.Message]{
	key:     func(m *model.Message) string { return m.ID.String() },
	defSort: "createdAt",
	sorts: map[string]func(a, b *model.Message) int{
		"createdAt": func(a, b *model.Message) int { return a.CreatedAt.Compare(b.CreatedAt) },
	},
}
