package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loqui/chat-server-go/internal/model"
	"github.com/loqui/chat-server-go/internal/pagination"
)

type channelRepo struct {
	repo[model.Channel, uuidID]
	members     *memberRepo
	invitations *channelInvitationRepo
	messages    *messageRepo
}

func (r *channelRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Channel, error) {
	items := r.v.filter(func(c *model.Channel) bool { return c.OwnerID == ownerID })
	return r.v.sorted(items, pagination.Sort{})
}

// DeleteByID removes the channel's invitations, memberships and messages
// before the channel row. Users referenced by them are left alone.
func (r *channelRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := r.invitations.DeleteByChannel(ctx, id); err != nil {
		return err
	}
	if err := r.members.DeleteByChannel(ctx, id); err != nil {
		return err
	}
	if err := r.messages.DeleteByChannel(ctx, id); err != nil {
		return err
	}
	r.v.remove(id.String())
	return nil
}

func (r *channelRepo) Delete(ctx context.Context, e *model.Channel) error {
	return r.DeleteByID(ctx, e.ID)
}

func (r *channelRepo) DeleteAll(ctx context.Context) error {
	for _, c := range r.v.snapshot() {
		if err := r.DeleteByID(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

type memberRepo struct {
	v *view[model.ChannelMember]
}

func (r *memberRepo) Put(ctx context.Context, m *model.ChannelMember) error {
	r.v.put(m)
	return nil
}

func (r *memberRepo) Get(ctx context.Context, channelID, userID uuid.UUID) (*model.ChannelMember, error) {
	return r.v.get(memberKey(channelID, userID)), nil
}

func (r *memberRepo) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]*model.ChannelMember, error) {
	items := r.v.filter(func(m *model.ChannelMember) bool { return m.ChannelID == channelID })
	return r.v.sorted(items, pagination.Sort{})
}

func (r *memberRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.ChannelMember, error) {
	items := r.v.filter(func(m *model.ChannelMember) bool { return m.UserID == userID })
	return r.v.sorted(items, pagination.Sort{})
}

func (r *memberRepo) Delete(ctx context.Context, channelID, userID uuid.UUID) error {
	r.v.remove(memberKey(channelID, userID))
	return nil
}

func (r *memberRepo) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	for _, m := range r.v.filter(func(m *model.ChannelMember) bool { return m.ChannelID == channelID }) {
		r.v.remove(memberKey(m.ChannelID, m.UserID))
	}
	return nil
}

func (r *memberRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	for _, m := range r.v.filter(func(m *model.ChannelMember) bool { return m.UserID == userID }) {
		r.v.remove(memberKey(m.ChannelID, m.UserID))
	}
	return nil
}

func (r *memberRepo) CountByChannel(ctx context.Context, channelID uuid.UUID) (int64, error) {
	return int64(len(r.v.filter(func(m *model.ChannelMember) bool { return m.ChannelID == channelID }))), nil
}

type channelInvitationRepo struct {
	repo[model.ChannelInvitation, uuidID]
}

func (r *channelInvitationRepo) FindPendingByChannelAndInvitee(ctx context.Context, channelID, inviteeID uuid.UUID) ([]*model.ChannelInvitation, error) {
	items := r.v.filter(func(i *model.ChannelInvitation) bool {
		return i.ChannelID == channelID && i.InviteeID == inviteeID && i.Status == model.InvitationPending
	})
	return r.v.sorted(items, pagination.Sort{})
}

func (r *channelInvitationRepo) FindByInvitee(ctx context.Context, inviteeID uuid.UUID) ([]*model.ChannelInvitation, error) {
	items := r.v.filter(func(i *model.ChannelInvitation) bool { return i.InviteeID == inviteeID })
	return r.v.sorted(items, pagination.Sort{})
}

func (r *channelInvitationRepo) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	for _, i := range r.v.filter(func(i *model.ChannelInvitation) bool { return i.ChannelID == channelID }) {
		r.v.remove(i.ID.String())
	}
	return nil
}

func (r *channelInvitationRepo) DeleteResolvedOrExpired(ctx context.Context, now time.Time) (int64, error) {
	stale := r.v.filter(func(i *model.ChannelInvitation) bool {
		return i.Status.Resolved() || i.Expired(now)
	})
	for _, i := range stale {
		r.v.remove(i.ID.String())
	}
	return int64(len(stale)), nil
}

type imInvitationRepo struct {
	repo[model.ImInvitation, uuidID]
}

func (r *imInvitationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	expired := r.v.filter(func(i *model.ImInvitation) bool { return i.Expired(now) })
	for _, i := range expired {
		r.v.remove(i.Token.String())
	}
	return int64(len(expired)), nil
}

type messageRepo struct {
	repo[model.Message, uuidID]
}

func (r *messageRepo) FindByChannel(ctx context.Context, channelID uuid.UUID, page pagination.Request, sort pagination.Sort) (*pagination.Page[*model.Message], error) {
	items := r.v.filter(func(m *model.Message) bool { return m.ChannelID == channelID })
	return r.v.page(items, page, sort)
}

func (r *messageRepo) DeleteByChannel(ctx context.Context, channelID uuid.UUID) error {
	for _, m := range r.v.filter(func(m *model.Message) bool { return m.ChannelID == channelID }) {
		r.v.remove(m.ID.String())
	}
	return nil
}

func (r *messageRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	for _, m := range r.v.filter(func(m *model.Message) bool { return m.UserID == userID }) {
		r.v.remove(m.ID.String())
	}
	return nil
}
