package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/practice-sem-2/chat-service/internal/models"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MessagesStorageTestSuite struct {
	PostgresTestSuite
}

func (s *MessagesStorageTestSuite) TearDownTest() {
	_, err := s.db.Exec("TRUNCATE messages, chat_admins, chat_members, chats, users")
	require.NoError(s.T(), err, "can't teardown test")
}

func TestMessagesStorageTestSuite(t *testing.T) {
	suite.Run(t, &MessagesStorageTestSuite{})
}

// seedChat creates a group chat with both test users as members.
func (s *MessagesStorageTestSuite) seedChat(ctx context.Context, id string) {
	store := NewChatsStorage(s.db)
	err := store.CreateChat(ctx, id, models.ChatTypeGroup, nil, nil)
	require.NoError(s.T(), err, "can't seed chat")
	err = store.AddChatMembers(ctx, id, []string{userId1, userId2})
	require.NoError(s.T(), err, "can't seed chat members")
}

func standardMessage(chatID, senderID, text string) models.Message {
	return models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Type:     models.MessageTypeStandard,
		Body:     models.MessageBody{Text: text},
	}
}

func (s *MessagesStorageTestSuite) Test_InsertMessages() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	inserted, err := store.InsertMessages(ctx, []models.Message{
		standardMessage(chatId, userId1, "one"),
		standardMessage(chatId, userId2, "two"),
		standardMessage(chatId, userId1, "three"),
	})
	assert.NoError(s.T(), err, "should correctly insert messages")
	require.Len(s.T(), inserted, 3)

	// Ids and timestamps come from the database, in input order.
	assert.Equal(s.T(), "one", inserted[0].Body.Text)
	assert.Equal(s.T(), "three", inserted[2].Body.Text)
	for i, msg := range inserted {
		assert.NotZero(s.T(), msg.MessageID)
		assert.False(s.T(), msg.CreatedAt.IsZero())
		if i > 0 {
			assert.Greater(s.T(), msg.MessageID, inserted[i-1].MessageID)
		}
	}
}

func (s *MessagesStorageTestSuite) Test_InsertMessages_CorrectErrorIfChatDoesNotExist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1)

	store := NewMessagesStorage(s.db)
	_, err := store.InsertMessages(ctx, []models.Message{
		standardMessage(chatId, userId1, "nowhere"),
	})
	assert.ErrorIs(s.T(), err, ErrChatNotFound)
}

func (s *MessagesStorageTestSuite) Test_InsertMessages_CorrectErrorIfReplyDangles() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	msg := standardMessage(chatId, userId1, "reply to nothing")
	msg.ReplyTo = lo.ToPtr(int64(424242))

	_, err := store.InsertMessages(ctx, []models.Message{msg})
	assert.ErrorIs(s.T(), err, ErrReplyNotFound)

	count := 0
	err = s.db.Get(&count, "SELECT count(*) FROM messages WHERE chat_id = $1", chatId)
	assert.NoError(s.T(), err, "rows count should be correctly scanned")
	assert.Equal(s.T(), 0, count, "nothing should be inserted")
}

func (s *MessagesStorageTestSuite) Test_InsertMessages_ReplyLinkIsStored() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	first, err := store.InsertMessages(ctx, []models.Message{
		standardMessage(chatId, userId1, "question"),
	})
	require.NoError(s.T(), err)

	reply := standardMessage(chatId, userId2, "answer")
	reply.ReplyTo = &first[0].MessageID

	inserted, err := store.InsertMessages(ctx, []models.Message{reply})
	assert.NoError(s.T(), err, "should correctly insert reply")
	require.NotNil(s.T(), inserted[0].ReplyTo)
	assert.Equal(s.T(), first[0].MessageID, *inserted[0].ReplyTo)
}

func (s *MessagesStorageTestSuite) Test_GetChatMessages() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	batch := make([]models.Message, 10)
	for i := range batch {
		batch[i] = standardMessage(chatId, userId1, fmt.Sprintf("msg %d", i))
	}
	inserted, err := store.InsertMessages(ctx, batch)
	require.NoError(s.T(), err)

	// Without a cursor the newest messages come first.
	page, err := store.GetChatMessages(ctx, chatId, 3, nil)
	assert.NoError(s.T(), err, "should return messages")
	require.Len(s.T(), page, 3)
	assert.Equal(s.T(), inserted[9].MessageID, page[0].MessageID)
	assert.Equal(s.T(), inserted[7].MessageID, page[2].MessageID)

	// The cursor is exclusive: only strictly newer messages are returned.
	cursor := inserted[6].MessageID
	page, err = store.GetChatMessages(ctx, chatId, 10, &cursor)
	assert.NoError(s.T(), err, "should return messages")
	require.Len(s.T(), page, 3)
	assert.Equal(s.T(), inserted[9].MessageID, page[0].MessageID)
	assert.Equal(s.T(), inserted[7].MessageID, page[2].MessageID)
}

func (s *MessagesStorageTestSuite) Test_GetMessagesByID() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	inserted, err := store.InsertMessages(ctx, []models.Message{
		standardMessage(chatId, userId1, "one"),
		standardMessage(chatId, userId1, "two"),
	})
	require.NoError(s.T(), err)

	found, err := store.GetMessagesByID(ctx, []int64{inserted[1].MessageID, 424242})
	assert.NoError(s.T(), err, "should return the messages that exist")
	require.Len(s.T(), found, 1)
	assert.Equal(s.T(), inserted[1].MessageID, found[0].MessageID)
	assert.Equal(s.T(), "two", found[0].Body.Text)
}

func (s *MessagesStorageTestSuite) Test_ClearMessageBody() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	inserted, err := store.InsertMessages(ctx, []models.Message{
		standardMessage(chatId, userId1, "secret"),
	})
	require.NoError(s.T(), err)

	cleared, err := store.ClearMessageBody(ctx, inserted[0].MessageID)
	assert.NoError(s.T(), err, "should tombstone the message")
	assert.Equal(s.T(), inserted[0].MessageID, cleared.MessageID)
	assert.True(s.T(), cleared.Body.IsEmpty())
	assert.Equal(s.T(), userId1, cleared.SenderID, "metadata survives the tombstone")

	// The row is still there.
	count := 0
	err = s.db.Get(&count, "SELECT count(*) FROM messages WHERE message_id = $1", inserted[0].MessageID)
	assert.NoError(s.T(), err, "rows count should be correctly scanned")
	assert.Equal(s.T(), 1, count)
}

func (s *MessagesStorageTestSuite) Test_ClearMessageBody_CorrectErrorIfMessageDoesNotExist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMessagesStorage(s.db)
	_, err := store.ClearMessageBody(ctx, 424242)
	assert.ErrorIs(s.T(), err, ErrMessageNotFound)
}

func (s *MessagesStorageTestSuite) Test_DeleteChatMessages() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	first, err := store.InsertMessages(ctx, []models.Message{
		standardMessage(chatId, userId1, "one"),
	})
	require.NoError(s.T(), err)

	// Replies inside the chat don't block the purge.
	reply := standardMessage(chatId, userId2, "two")
	reply.ReplyTo = &first[0].MessageID
	_, err = store.InsertMessages(ctx, []models.Message{reply})
	require.NoError(s.T(), err)

	err = store.DeleteChatMessages(ctx, chatId)
	assert.NoError(s.T(), err, "should delete all chat messages")

	count := 0
	err = s.db.Get(&count, "SELECT count(*) FROM messages WHERE chat_id = $1", chatId)
	assert.NoError(s.T(), err, "rows count should be correctly scanned")
	assert.Equal(s.T(), 0, count)
}

func (s *MessagesStorageTestSuite) Test_InsertMessages_EventBodyRoundTrips() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userId1, userId2)
	s.seedChat(ctx, chatId)

	store := NewMessagesStorage(s.db)
	inserted, err := store.InsertMessages(ctx, []models.Message{{
		ChatID:   chatId,
		SenderID: userId1,
		Type:     models.MessageTypeEvent,
		Body: models.MessageBody{
			EventType: models.EventMembersAdded,
			EventData: &models.EventPayload{By: userId1, Members: []string{userId2}},
		},
	}})
	require.NoError(s.T(), err)

	found, err := store.GetMessagesByID(ctx, []int64{inserted[0].MessageID})
	assert.NoError(s.T(), err, "should return the message")
	require.Len(s.T(), found, 1)
	assert.Equal(s.T(), models.MessageTypeEvent, found[0].Type)
	assert.Equal(s.T(), models.EventMembersAdded, found[0].Body.EventType)
	require.NotNil(s.T(), found[0].Body.EventData)
	assert.Equal(s.T(), []string{userId2}, found[0].Body.EventData.Members)
}
