package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Helpdesk/internal/event"
	"Helpdesk/internal/model"
)

func textMessage(conversationID, senderID, text string) *model.Message {
	return &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     "Sender " + senderID,
		Type:           event.MessageTypeText,
		Text:           text,
	}
}

func TestAppendMessage_AssignsIDAndTimestamp(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	msg, err := r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "Hello"))
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Contains(t, msg.SeenBy, "visitor-1", "sender has seen their own message")
}

func TestAppendMessage_OrderingUnderConcurrentSenders(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	const senders = 8
	const perSender = 25

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := r.AppendMessage(context.Background(),
					textMessage("conv-1", fmt.Sprintf("user-%d", s), fmt.Sprintf("msg %d", i)))
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	msgs, err := r.ListMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, senders*perSender)

	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt),
			"messages must be in non-decreasing createdAt order")
	}

	ids := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		ids[m.ID] = struct{}{}
	}
	assert.Len(t, ids, senders*perSender, "ids must be unique")
}

func TestAppendMessage_UpdatesDirectory(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	msg, err := r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "Hello"))
	require.NoError(t, err)

	convs, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)

	conv := convs[0]
	assert.Equal(t, "conv-1", conv.ConversationID)
	assert.Equal(t, "Hello", conv.LastMessagePreview)
	assert.Equal(t, event.MessageTypeText, conv.LastMessageType)
	assert.Equal(t, "visitor-1", conv.LastMessageSenderID)
	assert.True(t, conv.LastActivityAt.Equal(msg.CreatedAt))
}

func TestAppendMessage_PreviewPlaceholders(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	img := textMessage("conv-1", "visitor-1", "")
	img.Type = event.MessageTypeImage
	img.ImageDataURI = "data:image/png;base64,AAAA"
	_, err := r.AppendMessage(context.Background(), img)
	require.NoError(t, err)

	convs, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ImagePreview, convs[0].LastMessagePreview)

	file := textMessage("conv-1", "visitor-1", "")
	file.Type = event.MessageTypeFile
	file.FileURL = "https://files.example/report.pdf"
	_, err = r.AppendMessage(context.Background(), file)
	require.NoError(t, err)

	convs, err = r.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.FilePreview, convs[0].LastMessagePreview)
}

func TestListConversations_SortedByActivity(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	_, err := r.AppendMessage(context.Background(), textMessage("conv-a", "u1", "first"))
	require.NoError(t, err)
	_, err = r.AppendMessage(context.Background(), textMessage("conv-b", "u2", "second"))
	require.NoError(t, err)
	_, err = r.AppendMessage(context.Background(), textMessage("conv-a", "u1", "third"))
	require.NoError(t, err)

	convs, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "conv-a", convs[0].ConversationID, "most recent activity first")
	assert.Equal(t, "conv-b", convs[1].ConversationID)
}

func TestDeleteMessage_KeepsPreview(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	msg, err := r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "to be deleted"))
	require.NoError(t, err)

	require.NoError(t, r.DeleteMessage(context.Background(), "conv-1", msg.ID))

	msgs, err := r.ListMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Deleting never recomputes the cached preview.
	convs, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "to be deleted", convs[0].LastMessagePreview)
}

func TestDeleteMessage_NotFound(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	_, err := r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "hi"))
	require.NoError(t, err)

	err = r.DeleteMessage(context.Background(), "conv-1", "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteConversation_Cascades(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	_, err := r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "one"))
	require.NoError(t, err)
	_, err = r.AppendMessage(context.Background(), textMessage("conv-1", "op-1", "two"))
	require.NoError(t, err)

	require.NoError(t, r.DeleteConversation(context.Background(), "conv-1"))

	msgs, err := r.ListMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	convs, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convs)

	// Second delete reports the conversation as gone.
	err = r.DeleteConversation(context.Background(), "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkSeen_ResetsUnreadAndStampsMessages(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	// Visitor opens the thread, operator replies, visitor writes again.
	_, err := r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "hello?"))
	require.NoError(t, err)
	_, err = r.AppendMessage(context.Background(), textMessage("conv-1", "op-1", "hi!"))
	require.NoError(t, err)
	_, err = r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "question"))
	require.NoError(t, err)

	convs, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCounts["op-1"], "one visitor message since the operator joined")

	require.NoError(t, r.MarkSeen(context.Background(), "conv-1", "op-1"))

	convs, err = r.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, convs[0].UnreadCounts["op-1"])

	msgs, err := r.ListMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	for _, m := range msgs {
		assert.Contains(t, m.SeenBy, "op-1")
	}
}

func TestMarkSeen_RegistersViewerForFutureUnread(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	// The operator only reads: they view the thread without ever posting,
	// so they never become a participant.
	_, err := r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "hello?"))
	require.NoError(t, err)
	require.NoError(t, r.MarkSeen(context.Background(), "conv-1", "op-1"))

	_, err = r.AppendMessage(context.Background(), textMessage("conv-1", "visitor-1", "anyone?"))
	require.NoError(t, err)

	convs, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCounts["op-1"],
		"a viewer who never posted still accrues unread after marking seen")
	assert.Equal(t, 0, convs[0].UnreadCounts["visitor-1"],
		"the sender accrues nothing for their own message")
}

func TestMarkSeen_UnknownConversation(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	err := r.MarkSeen(context.Background(), "missing", "op-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilterMessages_Paginates(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	for i := 0; i < 20; i++ {
		_, err := r.AppendMessage(context.Background(), textMessage("conv-1", "u1", fmt.Sprintf("msg %d", i)))
		require.NoError(t, err)
	}

	page1, err := r.FilterMessages(context.Background(), "conv-1", 1)
	require.NoError(t, err)
	assert.Len(t, page1.Data, 15)
	assert.Equal(t, int64(20), page1.Total)
	assert.Equal(t, int64(2), page1.TotalPages)

	page2, err := r.FilterMessages(context.Background(), "conv-1", 2)
	require.NoError(t, err)
	assert.Len(t, page2.Data, 5)
	assert.Equal(t, "msg 15", page2.Data[0].Text)
}

func TestAppendMessage_Validation(t *testing.T) {
	r := NewMemoryChatRepository(nil)

	_, err := r.AppendMessage(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = r.AppendMessage(context.Background(), textMessage("", "u1", "hi"))
	assert.ErrorIs(t, err, ErrInvalidConversationID)
}
