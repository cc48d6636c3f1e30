package usecases_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/practice-sem-2/chat-service/internal/models"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SaveMessages(t *testing.T) {
	u, registry, broadcast := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)

	saved, err := u.SaveMessages(ctx, group.ChatID, users[0], []models.NewMessage{
		{Body: models.MessageBody{Text: "first"}},
		{Body: models.MessageBody{Text: "second", Attachments: []models.MessageAttachment{
			{Name: "pic.png", Object: "attachments/pic.png"},
		}}},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	// Ids come back in input order and every message is typed STANDARD.
	assert.Less(t, saved[0].MessageID, saved[1].MessageID)
	for _, m := range saved {
		assert.Equal(t, models.MessageTypeStandard, m.Type)
		assert.Equal(t, users[0], m.SenderID)
		assert.Equal(t, group.ChatID, m.ChatID)
		assert.False(t, m.CreatedAt.IsZero())
	}

	require.Len(t, broadcast.messages, 1)
	assert.Equal(t, saved, broadcast.messages[0])
	assert.Contains(t, registry.Updates, "messages_sent")
}

func Test_SaveMessages_SenderNotMember(t *testing.T) {
	u, registry, broadcast := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 3)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users[:2], users[:1])
	require.NoError(t, err)

	_, err = u.SaveMessages(ctx, group.ChatID, users[2], []models.NewMessage{
		{Body: models.MessageBody{Text: "intruder"}},
	})
	assert.ErrorIs(t, err, usecase.ErrSenderNotMember)
	assert.ErrorIs(t, err, usecase.ErrPermissionDenied)
	assert.Empty(t, broadcast.messages)
	assert.Equal(t, 0, registry.MessageCount(group.ChatID))
}

func Test_SaveMessages_ReplyToUnknownFailsBatch(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)

	_, err = u.SaveMessages(ctx, group.ChatID, users[0], []models.NewMessage{
		{Body: models.MessageBody{Text: "fine"}},
		{Body: models.MessageBody{Text: "broken"}, ReplyTo: lo.ToPtr(int64(9000))},
	})
	assert.ErrorIs(t, err, storage.ErrReplyNotFound)
	assert.Equal(t, 0, registry.MessageCount(group.ChatID), "the whole batch is rejected")
}

func Test_SaveMessages_CrossChatReplyDropped(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	groupA, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)
	groupB, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)

	foreign, err := u.SaveMessages(ctx, groupA.ChatID, users[0], []models.NewMessage{
		{Body: models.MessageBody{Text: "over there"}},
	})
	require.NoError(t, err)

	saved, err := u.SaveMessages(ctx, groupB.ChatID, users[1], []models.NewMessage{
		{Body: models.MessageBody{Text: "reply"}, ReplyTo: &foreign[0].MessageID},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Nil(t, saved[0].ReplyTo, "a link into another chat is stored without the reference")
}

func Test_SaveMessages_ReplyWithinChat(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)

	original, err := u.SaveMessages(ctx, group.ChatID, users[0], []models.NewMessage{
		{Body: models.MessageBody{Text: "question"}},
	})
	require.NoError(t, err)

	saved, err := u.SaveMessages(ctx, group.ChatID, users[1], []models.NewMessage{
		{Body: models.MessageBody{Text: "answer"}, ReplyTo: &original[0].MessageID},
	})
	require.NoError(t, err)
	require.NotNil(t, saved[0].ReplyTo)
	assert.Equal(t, original[0].MessageID, *saved[0].ReplyTo)
}

func Test_GetMessages_CursorPage(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)

	batch := make([]models.NewMessage, 100)
	for i := range batch {
		batch[i] = models.NewMessage{Body: models.MessageBody{Text: "msg"}}
	}
	saved, err := u.SaveMessages(ctx, group.ChatID, users[0], batch)
	require.NoError(t, err)
	require.Len(t, saved, 100)

	// The cursor is exclusive: with ids 1..100 and cursor 80 the page
	// holds 81..100, newest first.
	cursor := saved[79].MessageID
	page, err := u.GetMessages(ctx, group.ChatID, 20, &cursor)
	require.NoError(t, err)
	require.Len(t, page, 20)
	assert.Equal(t, saved[99].MessageID, page[0].MessageID)
	assert.Equal(t, saved[80].MessageID, page[19].MessageID)
	for i := 1; i < len(page); i++ {
		assert.Greater(t, page[i-1].MessageID, page[i].MessageID)
	}
}

func Test_GetMessages_DefaultLimit(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)

	batch := make([]models.NewMessage, 30)
	for i := range batch {
		batch[i] = models.NewMessage{Body: models.MessageBody{Text: "msg"}}
	}
	_, err = u.SaveMessages(ctx, group.ChatID, users[0], batch)
	require.NoError(t, err)

	page, err := u.GetMessages(ctx, group.ChatID, 0, nil)
	require.NoError(t, err)
	assert.Len(t, page, usecase.DefaultMessagesPageSize)
}

func Test_GetMessages_UnknownChat(t *testing.T) {
	u, _, _ := newTestUsecase(usecase.RetainMessages)

	_, err := u.GetMessages(context.Background(), uuid.NewString(), 20, nil)
	assert.ErrorIs(t, err, storage.ErrChatNotFound)
}

func Test_DeleteMessage_Tombstone(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)
	saved, err := u.SaveMessages(ctx, group.ChatID, users[0], []models.NewMessage{
		{Body: models.MessageBody{Text: "delete me"}},
	})
	require.NoError(t, err)

	deleted, err := u.DeleteMessage(ctx, saved[0].MessageID)
	require.NoError(t, err)
	assert.Equal(t, saved[0].MessageID, deleted.MessageID)
	assert.True(t, deleted.Body.IsEmpty())

	// The row stays behind, replies to it remain valid.
	page, err := u.GetMessages(ctx, group.ChatID, 20, nil)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].Body.IsEmpty())
}

func Test_DeleteMessageAs(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 3)
	ctx := context.Background()

	group, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)
	saved, err := u.SaveMessages(ctx, group.ChatID, users[1], []models.NewMessage{
		{Body: models.MessageBody{Text: "target"}},
		{Body: models.MessageBody{Text: "other"}},
	})
	require.NoError(t, err)

	// A plain member may not delete someone else's message.
	_, err = u.DeleteMessageAs(ctx, group.ChatID, saved[0].MessageID, users[2])
	assert.ErrorIs(t, err, usecase.ErrPermissionDenied)

	// The author may.
	deleted, err := u.DeleteMessageAs(ctx, group.ChatID, saved[0].MessageID, users[1])
	require.NoError(t, err)
	assert.True(t, deleted.Body.IsEmpty())

	// An admin may as well.
	deleted, err = u.DeleteMessageAs(ctx, group.ChatID, saved[1].MessageID, users[0])
	require.NoError(t, err)
	assert.True(t, deleted.Body.IsEmpty())
}

func Test_DeleteMessageAs_WrongChat(t *testing.T) {
	u, registry, _ := newTestUsecase(usecase.RetainMessages)
	users := seedUsers(registry, 2)
	ctx := context.Background()

	groupA, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)
	groupB, err := u.CreateGroup(ctx, users, users[:1])
	require.NoError(t, err)

	saved, err := u.SaveMessages(ctx, groupA.ChatID, users[0], []models.NewMessage{
		{Body: models.MessageBody{Text: "in chat A"}},
	})
	require.NoError(t, err)

	_, err = u.DeleteMessageAs(ctx, groupB.ChatID, saved[0].MessageID, users[0])
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
}
