package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Helpdesk/internal/event"
	"Helpdesk/internal/repo"
)

func newTestService() ChatService {
	return NewChatService(repo.NewMemoryChatRepository(nil), nil)
}

func outgoingText(conversationID, senderID, text string) event.SendMessage {
	return event.SendMessage{
		ConversationId: conversationID,
		SenderId:       senderID,
		SenderName:     "Name " + senderID,
		MessageType:    event.MessageTypeText,
		Text:           text,
	}
}

func TestSendMessage_AssignsServerFields(t *testing.T) {
	svc := newTestService()

	msg, err := svc.SendMessage(context.Background(), outgoingText("conv-1", "op-1", "hello"))
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, "op-1", msg.SenderID)
	assert.Contains(t, msg.SeenBy, "op-1")
}

func TestSendMessage_RejectsInvalidPayload(t *testing.T) {
	svc := newTestService()

	cases := []struct {
		name string
		p    event.SendMessage
		want error
	}{
		{
			name: "missing conversation",
			p:    outgoingText("", "op-1", "hi"),
			want: event.ErrMissingConversationID,
		},
		{
			name: "missing sender",
			p:    outgoingText("conv-1", "", "hi"),
			want: event.ErrMissingSender,
		},
		{
			name: "text without body",
			p:    outgoingText("conv-1", "op-1", ""),
			want: event.ErrBodyMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SendMessage(context.Background(), tc.p)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListConversations_ProjectsViewerUnread(t *testing.T) {
	svc := newTestService()

	_, err := svc.SendMessage(context.Background(), outgoingText("conv-1", "visitor-1", "hello?"))
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), outgoingText("conv-1", "op-1", "hi"))
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), outgoingText("conv-1", "visitor-1", "still there?"))
	require.NoError(t, err)

	asOperator, err := svc.ListConversations(context.Background(), "op-1")
	require.NoError(t, err)
	require.Len(t, asOperator, 1)
	assert.Equal(t, 1, asOperator[0].UnreadCount, "one visitor message after the reply")

	asVisitor, err := svc.ListConversations(context.Background(), "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, 1, asVisitor[0].UnreadCount, "the operator reply is unseen by the visitor")

	require.NoError(t, svc.MarkSeen(context.Background(), "conv-1", "op-1"))

	asOperator, err = svc.ListConversations(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, 0, asOperator[0].UnreadCount)
}

func TestListConversations_UnreadAccruesForSilentViewer(t *testing.T) {
	svc := newTestService()

	// Visitor writes first; the operator views the thread but never posts.
	_, err := svc.SendMessage(context.Background(), outgoingText("conv-1", "visitor-1", "hello?"))
	require.NoError(t, err)
	require.NoError(t, svc.MarkSeen(context.Background(), "conv-1", "op-1"))

	convs, err := svc.ListConversations(context.Background(), "op-1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)

	_, err = svc.SendMessage(context.Background(), outgoingText("conv-1", "visitor-1", "still there?"))
	require.NoError(t, err)

	// The refetched badge must agree with what a live console shows.
	convs, err = svc.ListConversations(context.Background(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestDeleteMessage_ValidatesBeforeStore(t *testing.T) {
	svc := newTestService()

	err := svc.DeleteMessage(context.Background(), event.DeleteMessage{ConversationId: "conv-1"})
	assert.ErrorIs(t, err, event.ErrMissingMessageID)

	err = svc.DeleteMessage(context.Background(), event.DeleteMessage{
		ConversationId: "conv-1",
		MessageId:      "missing",
	})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDeleteConversation_PropagatesNotFound(t *testing.T) {
	svc := newTestService()

	err := svc.DeleteConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestFilterMessages_PagesThroughHistory(t *testing.T) {
	svc := newTestService()

	for i := 0; i < 16; i++ {
		_, err := svc.SendMessage(context.Background(), outgoingText("conv-1", "op-1", "msg"))
		require.NoError(t, err)
	}

	page, err := svc.FilterMessages(context.Background(), "conv-1", 1)
	require.NoError(t, err)
	assert.Len(t, page.Data, 15)
	assert.Equal(t, int64(16), page.Total)
}
