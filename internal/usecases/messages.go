package usecases

import (
	"context"
	"time"

	"github.com/practice-sem-2/chat-service/internal/models"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	"github.com/samber/lo"
)

const DefaultMessagesPageSize = 20

// SaveMessages persists a batch of sender messages atomically and fans them
// out to the chat room after the commit.
//
// Reply integrity: a reply_to id that exists nowhere fails the whole batch;
// a reply_to that exists but points into another chat is silently dropped
// and the message is stored without the link. Cross-chat forgery is
// neutralized, dangling references are rejected.
func (u *ChatsUsecase) SaveMessages(ctx context.Context, chatID, senderID string, newMessages []models.NewMessage) ([]models.Message, error) {
	chat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(senderID) {
		return nil, ErrSenderNotMember
	}

	replyIDs := make([]int64, 0, len(newMessages))
	for _, m := range newMessages {
		if m.ReplyTo != nil {
			replyIDs = append(replyIDs, *m.ReplyTo)
		}
	}
	replyIDs = lo.Uniq(replyIDs)

	foreignReplies := make(map[int64]bool)
	if len(replyIDs) > 0 {
		replied, err := u.registry.GetMessagesStore().GetMessagesByID(ctx, replyIDs)
		if err != nil {
			return nil, err
		}
		if len(replied) != len(replyIDs) {
			return nil, storage.ErrReplyNotFound
		}
		for _, r := range replied {
			if r.ChatID != chatID {
				foreignReplies[r.MessageID] = true
			}
		}
	}

	rows := make([]models.Message, len(newMessages))
	for i, m := range newMessages {
		replyTo := m.ReplyTo
		if replyTo != nil && foreignReplies[*replyTo] {
			replyTo = nil
		}
		rows[i] = models.Message{
			ChatID:   chatID,
			SenderID: senderID,
			Type:     m.Body.Kind(),
			Body:     m.Body,
			ReplyTo:  replyTo,
		}
	}

	var inserted []models.Message
	err = u.registry.Atomic(ctx, func(r storage.Registry) error {
		inserted, err = r.GetMessagesStore().InsertMessages(ctx, rows)
		if err != nil {
			return err
		}
		return r.GetUpdatesStore().MessagesSent(&models.MessagesSent{
			UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC(), Audience: chat.MemberIDs()},
			ChatID:     chatID,
			Messages:   inserted,
		})
	})
	if err != nil {
		return nil, err
	}

	u.broadcastMessages(chatID, inserted)
	return inserted, nil
}

// GetMessages returns a newest-first page of chat messages. The cursor is
// exclusive: the cursor message itself is skipped.
func (u *ChatsUsecase) GetMessages(ctx context.Context, chatID string, limit uint64, cursor *int64) ([]models.Message, error) {
	if limit == 0 {
		limit = DefaultMessagesPageSize
	}

	if _, err := u.registry.GetChatsStore().GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	return u.registry.GetMessagesStore().GetChatMessages(ctx, chatID, limit, cursor)
}

// DeleteMessage replaces the message body with an empty payload in place.
// The id and metadata stay behind as a tombstone.
func (u *ChatsUsecase) DeleteMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	return u.registry.GetMessagesStore().ClearMessageBody(ctx, messageID)
}

// DeleteMessageAs is DeleteMessage with an authorization check: only the
// author of the message or a chat admin may tombstone it, and the message
// must belong to the given chat.
func (u *ChatsUsecase) DeleteMessageAs(ctx context.Context, chatID string, messageID int64, actorID string) (*models.Message, error) {
	chat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	messages, err := u.registry.GetMessagesStore().GetMessagesByID(ctx, []int64{messageID})
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 || messages[0].ChatID != chatID {
		return nil, storage.ErrMessageNotFound
	}
	if messages[0].SenderID != actorID && !chat.HasAdmin(actorID) {
		return nil, ErrPermissionDenied
	}

	return u.DeleteMessage(ctx, messageID)
}

// insertEvent writes a synthetic event message inside the scope of r.
// Events are authored by the service itself, so the sender-membership
// check of SaveMessages does not apply.
func (u *ChatsUsecase) insertEvent(ctx context.Context, r storage.Registry, chatID, actorID string, body models.MessageBody) (*models.Message, error) {
	inserted, err := r.GetMessagesStore().InsertMessages(ctx, []models.Message{{
		ChatID:   chatID,
		SenderID: actorID,
		Type:     models.MessageTypeEvent,
		Body:     body,
	}})
	if err != nil {
		return nil, err
	}
	return &inserted[0], nil
}

// saveEvent is insertEvent in its own transaction, followed by a broadcast.
func (u *ChatsUsecase) saveEvent(ctx context.Context, chatID, actorID string, body models.MessageBody) error {
	var event *models.Message
	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		var err error
		event, err = u.insertEvent(ctx, r, chatID, actorID, body)
		return err
	})
	if err != nil {
		return err
	}

	u.broadcastMessages(chatID, []models.Message{*event})
	return nil
}
