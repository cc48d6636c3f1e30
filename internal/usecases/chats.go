package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/practice-sem-2/chat-service/internal/models"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Broadcaster pushes freshly persisted messages to every live connection
// joined to the chat's room. Delivery is best-effort and happens strictly
// after the storing transaction commits.
type Broadcaster interface {
	BroadcastMessages(chatID string, messages []models.Message)
}

// RetentionPolicy decides what happens to messages when a group chat is
// torn down.
type RetentionPolicy string

const (
	// RetainMessages tombstones the chat row and keeps its messages.
	RetainMessages RetentionPolicy = "retain"
	// PurgeMessages removes the chat row and everything attached to it.
	PurgeMessages RetentionPolicy = "purge"
)

type PrivateChatStatus string

const (
	PrivateChatCreated PrivateChatStatus = "created"
	PrivateChatFound   PrivateChatStatus = "found"
)

type PrivateChatResult struct {
	Status PrivateChatStatus      `json:"status"`
	Chat   models.ChatWithMembers `json:"chat"`
}

type RemoveResultAction string

const (
	ActionUserRemoved RemoveResultAction = "userRemoved"
	ActionChatDeleted RemoveResultAction = "chatDeleted"
)

type RemoveResult struct {
	Action RemoveResultAction       `json:"action"`
	Chat   *models.ChatWithMembers `json:"chat,omitempty"`
}

// ChatsUsecase enforces every chat invariant and is the only writer of
// chat and message state.
type ChatsUsecase struct {
	registry  storage.Registry
	broadcast Broadcaster
	retention RetentionPolicy
	logger    *logrus.Logger
}

func NewChatsUsecase(r storage.Registry, b Broadcaster, retention RetentionPolicy, logger *logrus.Logger) *ChatsUsecase {
	if retention == "" {
		retention = RetainMessages
	}
	return &ChatsUsecase{
		registry:  r,
		broadcast: b,
		retention: retention,
		logger:    logger,
	}
}

// GetOrCreatePrivate returns the single private chat between the two users,
// creating it when none exists yet. Finding more than one means a previous
// write violated the pair-uniqueness invariant.
func (u *ChatsUsecase) GetOrCreatePrivate(ctx context.Context, userID, otherUserID string) (*PrivateChatResult, error) {
	if userID == otherUserID {
		return nil, ErrPrivateWithSelf
	}

	if _, err := u.registry.GetUsersStore().GetUser(ctx, otherUserID); err != nil {
		return nil, err
	}

	chats, err := u.registry.GetChatsStore().GetPrivateChatsWith(ctx, userID)
	if err != nil {
		return nil, err
	}

	privates := lo.Filter(chats, func(c models.ChatWithMembers, _ int) bool {
		return c.HasMember(otherUserID)
	})

	switch len(privates) {
	case 0:
		key := models.PrivatePairKey(userID, otherUserID)
		chat, err := u.createChat(ctx, models.ChatTypePrivate, nil, &key, []string{userID, otherUserID}, nil)
		if err != nil {
			return nil, err
		}
		return &PrivateChatResult{Status: PrivateChatCreated, Chat: *chat}, nil
	case 1:
		return &PrivateChatResult{Status: PrivateChatFound, Chat: privates[0]}, nil
	default:
		return nil, ErrMultiplePrivateChats
	}
}

func (u *ChatsUsecase) CreateGroup(ctx context.Context, members []string, admins []string) (*models.ChatWithMembers, error) {
	members = lo.Uniq(members)
	if len(members) == 0 {
		return nil, ErrEmptyMembers
	}
	return u.createChat(ctx, models.ChatTypeGroup, nil, nil, members, lo.Uniq(admins))
}

// AddToPrivate grows a private conversation by creating a brand-new group
// chat with the old pair plus the new members. The private chat itself is
// left untouched; the acting user becomes the sole admin of the group.
func (u *ChatsUsecase) AddToPrivate(ctx context.Context, chatID, actingUserID string, membersToAdd []string) (*models.ChatWithMembers, error) {
	if len(membersToAdd) == 0 {
		return nil, ErrEmptyMembers
	}

	privateChat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if privateChat.Type != models.ChatTypePrivate {
		return nil, ErrWrongChatType
	}

	oldMembers := privateChat.MemberIDs()
	if len(oldMembers) > 2 {
		return nil, ErrTooManyMembers
	}

	newMembers := lo.Filter(lo.Uniq(membersToAdd), func(id string, _ int) bool {
		return !lo.Contains(oldMembers, id)
	})
	if len(newMembers) == 0 {
		return nil, ErrEmptyMembers
	}

	chat, err := u.CreateGroup(ctx, append(oldMembers, newMembers...), []string{actingUserID})
	if err != nil {
		return nil, err
	}

	err = u.saveEvent(ctx, chat.ChatID, actingUserID, models.MessageBody{
		EventType: models.EventGroupCreated,
		EventData: &models.EventPayload{By: actingUserID},
	})
	if err != nil {
		return nil, err
	}

	return chat, nil
}

func (u *ChatsUsecase) AddToGroup(ctx context.Context, chatID, actingUserID string, membersToAdd []string) (*models.ChatWithMembers, error) {
	if len(membersToAdd) == 0 {
		return nil, ErrEmptyMembers
	}

	groupChat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if groupChat.Type != models.ChatTypeGroup {
		return nil, ErrWrongChatType
	}

	oldMembers := groupChat.MemberIDs()
	newMembers := lo.Filter(lo.Uniq(membersToAdd), func(id string, _ int) bool {
		return !lo.Contains(oldMembers, id)
	})
	if len(newMembers) == 0 {
		return nil, ErrEmptyMembers
	}

	var chat *models.ChatWithMembers
	var event *models.Message
	err = u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		if err := store.AddChatMembers(ctx, chatID, newMembers); err != nil {
			return err
		}

		event, err = u.insertEvent(ctx, r, chatID, actingUserID, models.MessageBody{
			EventType: models.EventMembersAdded,
			EventData: &models.EventPayload{By: actingUserID, Members: newMembers},
		})
		if err != nil {
			return err
		}

		chat, err = store.GetChatWithMembers(ctx, chatID)
		if err != nil {
			return err
		}

		return r.GetUpdatesStore().MembersAdded(&models.MembersAdded{
			UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC(), Audience: chat.MemberIDs()},
			ChatID:     chatID,
			By:         actingUserID,
			Members:    newMembers,
		})
	})
	if err != nil {
		return nil, err
	}

	u.broadcastMessages(chatID, []models.Message{*event})
	return chat, nil
}

// RemoveFromGroup removes the listed members. The MEMBERS_REMOVED event is
// persisted before a possible teardown, so draining a chat still leaves a
// record of who removed the last member.
func (u *ChatsUsecase) RemoveFromGroup(ctx context.Context, chatID, actingUserID string, membersToRemove []string) (*RemoveResult, error) {
	if len(membersToRemove) == 0 {
		return nil, ErrEmptyMembers
	}

	groupChat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if groupChat.Type != models.ChatTypeGroup {
		return nil, ErrWrongChatType
	}

	oldMembers := groupChat.MemberIDs()
	membersToRemove = lo.Uniq(membersToRemove)
	notInChat := lo.Filter(membersToRemove, func(id string, _ int) bool {
		return !lo.Contains(oldMembers, id)
	})
	if len(notInChat) != 0 {
		return nil, ErrMembersNotInChat
	}

	var result *RemoveResult
	var event *models.Message
	err = u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()

		event, err = u.insertEvent(ctx, r, chatID, actingUserID, models.MessageBody{
			EventType: models.EventMembersRemoved,
			EventData: &models.EventPayload{By: actingUserID, Members: membersToRemove},
		})
		if err != nil {
			return err
		}

		if err := store.DeleteChatMembers(ctx, chatID, membersToRemove); err != nil {
			return err
		}

		upd := r.GetUpdatesStore()
		err = upd.MembersRemoved(&models.MembersRemoved{
			UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC(), Audience: oldMembers},
			ChatID:     chatID,
			By:         actingUserID,
			Members:    membersToRemove,
		})
		if err != nil {
			return err
		}

		chat, err := store.GetChatWithMembers(ctx, chatID)
		if err != nil {
			return err
		}

		if len(chat.Members) == 0 {
			if err := u.teardownGroup(ctx, r, chatID); err != nil {
				return err
			}
			err = upd.ChatDeleted(&models.ChatDeleted{
				UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC(), Audience: oldMembers},
				ChatID:     chatID,
			})
			if err != nil {
				return err
			}
			result = &RemoveResult{Action: ActionChatDeleted}
			return nil
		}

		result = &RemoveResult{Action: ActionUserRemoved, Chat: chat}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Broadcast on the teardown path as well, so sockets still joined to
	// the room see the closing event.
	u.broadcastMessages(chatID, []models.Message{*event})
	return result, nil
}

func (u *ChatsUsecase) DeleteGroup(ctx context.Context, chatID string) error {
	groupChat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
	if err != nil {
		return err
	}
	if groupChat.Type != models.ChatTypeGroup {
		return ErrWrongChatType
	}

	return u.registry.Atomic(ctx, func(r storage.Registry) error {
		if err := u.teardownGroup(ctx, r, chatID); err != nil {
			return err
		}
		return r.GetUpdatesStore().ChatDeleted(&models.ChatDeleted{
			UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC(), Audience: groupChat.MemberIDs()},
			ChatID:     chatID,
		})
	})
}

// UpdateGroupTitle renames a group chat and records a TITLE_UPDATED event
// holding both the old and the new title.
func (u *ChatsUsecase) UpdateGroupTitle(ctx context.Context, chatID, actingUserID string, title string) (*models.ChatWithMembers, error) {
	groupChat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if groupChat.Type != models.ChatTypeGroup {
		return nil, ErrWrongChatType
	}

	var chat *models.ChatWithMembers
	var event *models.Message
	err = u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		if err := store.UpdateChatTitle(ctx, chatID, &title); err != nil {
			return err
		}

		event, err = u.insertEvent(ctx, r, chatID, actingUserID, models.MessageBody{
			EventType: models.EventTitleUpdated,
			EventData: &models.EventPayload{By: actingUserID, Old: groupChat.Title, New: &title},
		})
		if err != nil {
			return err
		}

		chat, err = store.GetChatWithMembers(ctx, chatID)
		if err != nil {
			return err
		}

		return r.GetUpdatesStore().TitleUpdated(&models.TitleUpdated{
			UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC(), Audience: chat.MemberIDs()},
			ChatID:     chatID,
			By:         actingUserID,
			Old:        groupChat.Title,
			New:        &title,
		})
	})
	if err != nil {
		return nil, err
	}

	u.broadcastMessages(chatID, []models.Message{*event})
	return chat, nil
}

func (u *ChatsUsecase) GetChat(ctx context.Context, chatID string) (*models.ChatWithMembers, error) {
	return u.registry.GetChatsStore().GetChatWithMembers(ctx, chatID)
}

func (u *ChatsUsecase) GetChats(ctx context.Context, userID string, typeFilter *models.ChatType) ([]models.ChatWithMembers, error) {
	return u.registry.GetChatsStore().GetUserChats(ctx, userID, typeFilter)
}

func (u *ChatsUsecase) createChat(ctx context.Context, chatType models.ChatType, title *string, privateKey *string, members []string, admins []string) (*models.ChatWithMembers, error) {
	chatID := uuid.NewString()

	var chat *models.ChatWithMembers
	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		if err := store.CreateChat(ctx, chatID, chatType, title, privateKey); err != nil {
			return err
		}
		if err := store.AddChatMembers(ctx, chatID, members); err != nil {
			return err
		}
		if err := store.AddChatAdmins(ctx, chatID, admins); err != nil {
			return err
		}

		var err error
		chat, err = store.GetChatWithMembers(ctx, chatID)
		if err != nil {
			return err
		}

		return r.GetUpdatesStore().ChatCreated(&models.ChatCreated{
			UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC(), Audience: members},
			ChatID:     chatID,
			Type:       chatType,
			Members:    members,
		})
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// teardownGroup applies the configured retention policy: purge removes the
// chat and its messages, retain tombstones the chat and keeps them.
func (u *ChatsUsecase) teardownGroup(ctx context.Context, r storage.Registry, chatID string) error {
	if u.retention == PurgeMessages {
		if err := r.GetMessagesStore().DeleteChatMessages(ctx, chatID); err != nil {
			return err
		}
		return r.GetChatsStore().DeleteChat(ctx, chatID)
	}
	return r.GetChatsStore().MarkChatDeleted(ctx, chatID)
}

func (u *ChatsUsecase) broadcastMessages(chatID string, messages []models.Message) {
	if u.broadcast == nil || len(messages) == 0 {
		return
	}
	u.broadcast.BroadcastMessages(chatID, messages)
}
