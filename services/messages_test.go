package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentease/database"
)

func TestMessageTypeInference(t *testing.T) {
	tests := []struct {
		name        string
		attachments []database.Attachment
		want        database.MessageType
	}{
		{"no attachments", nil, database.MessageText},
		{"only images", []database.Attachment{{Type: database.AttachmentImage, URL: "a"}, {Type: database.AttachmentImage, URL: "b"}}, database.MessageImage},
		{"mixed", []database.Attachment{{Type: database.AttachmentImage, URL: "a"}, {Type: database.AttachmentVideo, URL: "b"}}, database.MessageFile},
		{"untyped", []database.Attachment{{URL: "a"}}, database.MessageFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messageType(tt.attachments))
		})
	}
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	tenant := f.user(database.RoleTenant)
	stranger := f.user(database.RoleTenant)
	p := f.property(owner)
	b := f.booking(tenant, p, 1, 2)

	_, err := f.svc.Messages.Send(f.ctx, stranger.ID, SendMessageInput{BookingID: b.ID, RecipientID: owner.ID, Content: "hi"})
	requireInvariant(t, err, "message_participants")

	_, err = f.svc.Messages.Send(f.ctx, tenant.ID, SendMessageInput{BookingID: b.ID, RecipientID: stranger.ID, Content: "hi"})
	requireInvariant(t, err, "message_participants")

	_, err = f.svc.Messages.Send(f.ctx, tenant.ID, SendMessageInput{BookingID: b.ID, RecipientID: tenant.ID, Content: "note to self"})
	verrs := requireValidation(t, err)
	assert.Equal(t, "Sender and recipient must differ", verrs.Message("recipient_id"))

	_, err = f.svc.Messages.Send(f.ctx, tenant.ID, SendMessageInput{BookingID: b.ID, RecipientID: owner.ID, Content: "   "})
	verrs = requireValidation(t, err)
	assert.Equal(t, "Message needs content or at least one attachment", verrs.Message("content"))

	m, err := f.svc.Messages.Send(f.ctx, tenant.ID, SendMessageInput{BookingID: b.ID, RecipientID: owner.ID, Content: "Is parking included?"})
	require.NoError(t, err)
	assert.Equal(t, database.MessageText, m.Type)
	assert.False(t, m.IsRead)

	photo, err := f.svc.Messages.Send(f.ctx, owner.ID, SendMessageInput{
		BookingID:   b.ID,
		RecipientID: tenant.ID,
		Attachments: []database.Attachment{{Type: database.AttachmentImage, URL: "https://cdn.example.com/parking.jpg"}},
	})
	require.NoError(t, err)
	assert.Equal(t, database.MessageImage, photo.Type)

	notes, err := f.svc.Notifications.ListForUser(f.ctx, tenant.ID, true, Page{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "message_received", notes[0].Type)
	assert.Equal(t, "Sent 1 attachment(s)", notes[0].Message)
	assert.True(t, notes[0].Channels.Push.Requested)
	assert.False(t, notes[0].Channels.Push.Sent)
}

func TestMessagePreviewIsTruncated(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	tenant := f.user(database.RoleTenant)
	p := f.property(owner)
	b := f.booking(tenant, p, 1, 2)

	_, err := f.svc.Messages.Send(f.ctx, tenant.ID, SendMessageInput{BookingID: b.ID, RecipientID: owner.ID, Content: strings.Repeat("é", 200)})
	require.NoError(t, err)

	pending, err := f.svc.Notifications.PendingDeliveries(f.ctx, database.ChannelPush, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, strings.Repeat("é", 120)+"...", pending[0].Message)
}

func TestConversationAndReadState(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	tenant := f.user(database.RoleTenant)
	stranger := f.user(database.RoleTenant)
	p := f.property(owner)
	b := f.booking(tenant, p, 1, 2)

	first, err := f.svc.Messages.Send(f.ctx, tenant.ID, SendMessageInput{BookingID: b.ID, RecipientID: owner.ID, Content: "first"})
	require.NoError(t, err)
	_, err = f.svc.Messages.Send(f.ctx, tenant.ID, SendMessageInput{BookingID: b.ID, RecipientID: owner.ID, Content: "second"})
	require.NoError(t, err)

	_, err = f.svc.Messages.Conversation(f.ctx, stranger.ID, b.ID, Page{})
	assert.ErrorIs(t, err, ErrForbidden)

	convo, err := f.svc.Messages.Conversation(f.ctx, owner.ID, b.ID, Page{})
	require.NoError(t, err)
	require.Len(t, convo, 2)
	assert.Equal(t, "first", convo[0].Content)
	assert.Equal(t, "second", convo[1].Content)

	unread, err := f.svc.Messages.UnreadCount(f.ctx, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	_, err = f.svc.Messages.MarkRead(f.ctx, tenant.ID, first.ID)
	assert.ErrorIs(t, err, ErrForbidden, "only the recipient marks read")

	read, err := f.svc.Messages.MarkRead(f.ctx, owner.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	unread, err = f.svc.Messages.UnreadCount(f.ctx, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}
