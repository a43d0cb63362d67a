package model

type ChannelRole string

const (
	RoleOwner  ChannelRole = "owner"
	RoleMember ChannelRole = "member"
	RoleGuest  ChannelRole = "guest"
)

func (r ChannelRole) Valid() bool {
	switch r {
	case RoleOwner, RoleMember, RoleGuest:
		return true
	}
	return false
}

// CanWrite reports whether the role may post messages. Guests are read-only.
func (r ChannelRole) CanWrite() bool {
	return r == RoleOwner || r == RoleMember
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

func (s InvitationStatus) Resolved() bool {
	return s == InvitationAccepted || s == InvitationRejected
}

type ImInvitationStatus string

const (
	ImInvitationPending ImInvitationStatus = "pending"
	ImInvitationUsed    ImInvitationStatus = "used"
)
