// Package testutil provides in-memory fakes for the storage registry and
// the realtime connection, so domain and transport tests run without a
// database or real sockets.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/practice-sem-2/chat-service/internal/models"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	"github.com/samber/lo"
)

type chatRecord struct {
	chat       models.Chat
	privateKey *string
	members    []string
	admins     []string
	deleted    bool
}

// FakeRegistry implements storage.Registry over maps. Atomic runs the
// callback on the same state without rollback; tests asserting rollback
// behavior belong to the Postgres suite.
type FakeRegistry struct {
	mu            sync.Mutex
	chats         map[string]*chatRecord
	users         map[string]models.User
	messages      map[int64]models.Message
	nextMessageID int64

	// Updates records the kinds of updates published, in order.
	Updates []string
}

func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		chats:    make(map[string]*chatRecord),
		users:    make(map[string]models.User),
		messages: make(map[int64]models.Message),
	}
}

func (r *FakeRegistry) Atomic(ctx context.Context, fn storage.AtomicFunc) error {
	return fn(r)
}

func (r *FakeRegistry) GetChatsStore() storage.ChatsStore       { return &fakeChatsStore{r} }
func (r *FakeRegistry) GetMessagesStore() storage.MessagesStore { return &fakeMessagesStore{r} }
func (r *FakeRegistry) GetUsersStore() storage.UsersStore       { return &fakeUsersStore{r} }
func (r *FakeRegistry) GetUpdatesStore() storage.UpdatesStore   { return &fakeUpdatesStore{r} }

// AddUser seeds the user directory.
func (r *FakeRegistry) AddUser(user models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
}

// MessageCount reports how many messages are stored for the chat.
func (r *FakeRegistry) MessageCount(chatID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.messages {
		if m.ChatID == chatID {
			count++
		}
	}
	return count
}

// ChatMessages returns the chat's messages ordered by id.
func (r *FakeRegistry) ChatMessages(chatID string) []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

type fakeChatsStore struct {
	r *FakeRegistry
}

func (s *fakeChatsStore) CreateChat(ctx context.Context, chatID string, chatType models.ChatType, title *string, privateKey *string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.chats[chatID]; ok {
		return storage.ErrChatAlreadyExists
	}
	if privateKey != nil {
		for _, rec := range s.r.chats {
			if rec.privateKey != nil && *rec.privateKey == *privateKey {
				return storage.ErrPrivateChatExists
			}
		}
	}
	s.r.chats[chatID] = &chatRecord{
		chat:       models.Chat{ChatID: chatID, Type: chatType, Title: title},
		privateKey: privateKey,
	}
	return nil
}

func (s *fakeChatsStore) AddChatMembers(ctx context.Context, chatID string, members []string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	rec, ok := s.r.chats[chatID]
	if !ok || rec.deleted {
		return storage.ErrChatNotFound
	}
	for _, m := range members {
		if _, ok := s.r.users[m]; !ok {
			return storage.ErrUserNotFound
		}
	}
	rec.members = lo.Uniq(append(rec.members, members...))
	return nil
}

func (s *fakeChatsStore) DeleteChatMembers(ctx context.Context, chatID string, members []string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	rec, ok := s.r.chats[chatID]
	if !ok {
		return storage.ErrChatNotFound
	}
	rec.members = lo.Filter(rec.members, func(id string, _ int) bool {
		return !lo.Contains(members, id)
	})
	return nil
}

func (s *fakeChatsStore) AddChatAdmins(ctx context.Context, chatID string, admins []string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	rec, ok := s.r.chats[chatID]
	if !ok || rec.deleted {
		return storage.ErrChatNotFound
	}
	for _, a := range admins {
		if _, ok := s.r.users[a]; !ok {
			return storage.ErrUserNotFound
		}
	}
	rec.admins = lo.Uniq(append(rec.admins, admins...))
	return nil
}

func (s *fakeChatsStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	rec, ok := s.r.chats[chatID]
	if !ok || rec.deleted {
		return nil, storage.ErrChatNotFound
	}
	chat := rec.chat
	return &chat, nil
}

func (s *fakeChatsStore) GetChatWithMembers(ctx context.Context, chatID string) (*models.ChatWithMembers, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	rec, ok := s.r.chats[chatID]
	if !ok || rec.deleted {
		return nil, storage.ErrChatNotFound
	}
	return s.project(rec), nil
}

func (s *fakeChatsStore) GetUserChats(ctx context.Context, userID string, typeFilter *models.ChatType) ([]models.ChatWithMembers, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	out := make([]models.ChatWithMembers, 0)
	for _, rec := range s.r.chats {
		if rec.deleted || !lo.Contains(rec.members, userID) {
			continue
		}
		if typeFilter != nil && rec.chat.Type != *typeFilter {
			continue
		}
		out = append(out, *s.project(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *fakeChatsStore) GetPrivateChatsWith(ctx context.Context, userID string) ([]models.ChatWithMembers, error) {
	private := models.ChatTypePrivate
	return s.GetUserChats(ctx, userID, &private)
}

func (s *fakeChatsStore) UpdateChatTitle(ctx context.Context, chatID string, title *string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	rec, ok := s.r.chats[chatID]
	if !ok || rec.deleted {
		return storage.ErrChatNotFound
	}
	rec.chat.Title = title
	return nil
}

func (s *fakeChatsStore) DeleteChat(ctx context.Context, chatID string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.chats[chatID]; !ok {
		return storage.ErrChatNotFound
	}
	delete(s.r.chats, chatID)
	for id, m := range s.r.messages {
		if m.ChatID == chatID {
			delete(s.r.messages, id)
		}
	}
	return nil
}

func (s *fakeChatsStore) MarkChatDeleted(ctx context.Context, chatID string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	rec, ok := s.r.chats[chatID]
	if !ok || rec.deleted {
		return storage.ErrChatNotFound
	}
	rec.deleted = true
	return nil
}

func (s *fakeChatsStore) project(rec *chatRecord) *models.ChatWithMembers {
	members := make([]models.ChatMember, 0, len(rec.members))
	for _, id := range rec.members {
		u := s.r.users[id]
		members = append(members, models.ChatMember{
			UserID:    u.UserID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })

	admins := make([]string, len(rec.admins))
	copy(admins, rec.admins)
	sort.Strings(admins)

	return &models.ChatWithMembers{
		Chat:    rec.chat,
		Members: members,
		Admins:  admins,
	}
}

type fakeMessagesStore struct {
	r *FakeRegistry
}

func (s *fakeMessagesStore) InsertMessages(ctx context.Context, messages []models.Message) ([]models.Message, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	inserted := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ReplyTo != nil {
			if _, ok := s.r.messages[*msg.ReplyTo]; !ok {
				return nil, storage.ErrReplyNotFound
			}
		}
		s.r.nextMessageID++
		msg.MessageID = s.r.nextMessageID
		msg.CreatedAt = time.Now().UTC()
		s.r.messages[msg.MessageID] = msg
		inserted = append(inserted, msg)
	}
	return inserted, nil
}

func (s *fakeMessagesStore) GetChatMessages(ctx context.Context, chatID string, limit uint64, after *int64) ([]models.Message, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range s.r.messages {
		if m.ChatID != chatID {
			continue
		}
		if after != nil && m.MessageID <= *after {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID > out[j].MessageID })
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeMessagesStore) GetMessagesByID(ctx context.Context, ids []int64) ([]models.Message, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	out := make([]models.Message, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if m, ok := s.r.messages[id]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (s *fakeMessagesStore) ClearMessageBody(ctx context.Context, messageID int64) (*models.Message, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	msg, ok := s.r.messages[messageID]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	msg.Body = models.MessageBody{}
	s.r.messages[messageID] = msg
	return &msg, nil
}

func (s *fakeMessagesStore) DeleteChatMessages(ctx context.Context, chatID string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for id, m := range s.r.messages {
		if m.ChatID == chatID {
			delete(s.r.messages, id)
		}
	}
	return nil
}

type fakeUsersStore struct {
	r *FakeRegistry
}

func (s *fakeUsersStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	user, ok := s.r.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

func (s *fakeUsersStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.r.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type fakeUpdatesStore struct {
	r *FakeRegistry
}

func (s *fakeUpdatesStore) record(kind string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.Updates = append(s.r.Updates, kind)
	return nil
}

func (s *fakeUpdatesStore) ChatCreated(*models.ChatCreated) error       { return s.record("chat_created") }
func (s *fakeUpdatesStore) ChatDeleted(*models.ChatDeleted) error       { return s.record("chat_deleted") }
func (s *fakeUpdatesStore) MembersAdded(*models.MembersAdded) error     { return s.record("members_added") }
func (s *fakeUpdatesStore) MembersRemoved(*models.MembersRemoved) error { return s.record("members_removed") }
func (s *fakeUpdatesStore) TitleUpdated(*models.TitleUpdated) error     { return s.record("title_updated") }
func (s *fakeUpdatesStore) MessagesSent(*models.MessagesSent) error     { return s.record("messages_sent") }
