package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-service/internal/models"
)

var (
	ErrChatAlreadyExists    = errors.New("chat with provided chat_id already exists")
	ErrChatNotFound         = errors.New("chat with provided chat_id does not exist")
	ErrPrivateChatExists    = errors.New("private chat for this pair of users already exists")
	ErrEmptyMembers         = errors.New("members array can't be empty")
	ErrUserNotFound         = errors.New("user with provided user_id does not exist")
	ErrReplyNotFound        = errors.New("message replies to a not existing message")
	ErrMessageAlreadyExists = errors.New("message with provided message_id already exists")
	ErrMessageNotFound      = errors.New("message does not exist")
)

const (
	ChatsPrimaryKey             = "chats_pkey"
	ChatsPrivateKeyUnique       = "chats_private_key_key"
	ChatMembersChatIdForeignKey = "chat_members_chat_id_fkey"
	ChatMembersUserIdForeignKey = "chat_members_user_id_fkey"
	ChatAdminsChatIdForeignKey  = "chat_admins_chat_id_fkey"
	ChatAdminsUserIdForeignKey  = "chat_admins_user_id_fkey"
	MessagesChatIdForeignKey    = "messages_chat_id_fkey"
	MessagesSenderIdForeignKey  = "messages_sender_id_fkey"
	MessagesReplyToForeignKey   = "messages_reply_to_fkey"
)

type ChatsStorage struct {
	db Scope
}

func NewChatsStorage(db Scope) *ChatsStorage {
	return &ChatsStorage{
		db: db,
	}
}

func (s *ChatsStorage) CreateChat(ctx context.Context, chatID string, chatType models.ChatType, title *string, privateKey *string) error {
	query, args, err := sq.Insert("chats").
		Columns("chat_id", "chat_type", "title", "private_key").
		Values(chatID, chatType, title, privateKey).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case ChatsPrimaryKey:
		return ErrChatAlreadyExists
	case ChatsPrivateKeyUnique:
		return ErrPrivateChatExists
	default:
		return err
	}
}

func (s *ChatsStorage) AddChatMembers(ctx context.Context, chatID string, members []string) error {
	if len(members) == 0 {
		return ErrEmptyMembers
	}

	builder := sq.Insert("chat_members").
		Columns("chat_id", "user_id").
		PlaceholderFormat(sq.Dollar)

	for _, member := range members {
		builder = builder.Values(chatID, member)
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case ChatMembersChatIdForeignKey:
		return ErrChatNotFound
	case ChatMembersUserIdForeignKey:
		return ErrUserNotFound
	default:
		return err
	}
}

func (s *ChatsStorage) DeleteChatMembers(ctx context.Context, chatID string, members []string) error {
	if len(members) == 0 {
		return ErrEmptyMembers
	}

	query, args, err := sq.Delete("chat_members").
		Where(sq.Eq{
			"chat_id": chatID,
			"user_id": members,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *ChatsStorage) AddChatAdmins(ctx context.Context, chatID string, admins []string) error {
	if len(admins) == 0 {
		return nil
	}

	builder := sq.Insert("chat_admins").
		Columns("chat_id", "user_id").
		PlaceholderFormat(sq.Dollar)

	for _, admin := range admins {
		builder = builder.Values(chatID, admin)
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case ChatAdminsChatIdForeignKey:
		return ErrChatNotFound
	case ChatAdminsUserIdForeignKey:
		return ErrUserNotFound
	default:
		return err
	}
}

func (s *ChatsStorage) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	query, args, err := sq.Select("chat_id", "chat_type", "title").
		From("chats").
		Where(sq.Eq{"chat_id": chatID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	chat := models.Chat{}
	err = s.db.GetContext(ctx, &chat, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	} else if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *ChatsStorage) GetChatWithMembers(ctx context.Context, chatID string) (*models.ChatWithMembers, error) {
	chat, err := s.GetChat(ctx, chatID)

	if err != nil {
		return nil, err
	}

	members, err := s.selectMembers(ctx, []string{chatID})
	if err != nil {
		return nil, err
	}

	admins, err := s.selectAdmins(ctx, []string{chatID})
	if err != nil {
		return nil, err
	}

	return &models.ChatWithMembers{
		Chat:    *chat,
		Members: members[chatID],
		Admins:  admins[chatID],
	}, nil
}

func (s *ChatsStorage) GetUserChats(ctx context.Context, userID string, typeFilter *models.ChatType) ([]models.ChatWithMembers, error) {
	where := sq.And{
		sq.Eq{"cm.user_id": userID},
		sq.Eq{"c.deleted_at": nil},
	}
	if typeFilter != nil {
		where = append(where, sq.Eq{"c.chat_type": *typeFilter})
	}

	query, args, err := sq.Select("c.chat_id", "c.chat_type", "c.title").
		From("chats c").
		Join("chat_members cm USING (chat_id)").
		Where(where).
		OrderBy("c.chat_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0)
	err = s.db.SelectContext(ctx, &chats, query, args...)
	if err != nil {
		return nil, err
	}

	return s.withMembers(ctx, chats)
}

// GetPrivateChatsWith returns all PRIVATE chats userID belongs to, with
// members loaded, for the pair-lookup done by the domain service.
func (s *ChatsStorage) GetPrivateChatsWith(ctx context.Context, userID string) ([]models.ChatWithMembers, error) {
	private := models.ChatTypePrivate
	return s.GetUserChats(ctx, userID, &private)
}

func (s *ChatsStorage) UpdateChatTitle(ctx context.Context, chatID string, title *string) error {
	query, args, err := sq.Update("chats").
		Set("title", title).
		Where(sq.Eq{"chat_id": chatID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// DeleteChat removes the chat row. The schema cascades memberships, admin
// rows and messages, so this is the purge path of the retention policy.
func (s *ChatsStorage) DeleteChat(ctx context.Context, chatID string) error {
	query, args, err := sq.Delete("chats").
		Where(sq.Eq{"chat_id": chatID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// MarkChatDeleted tombstones the chat instead of removing the row, leaving
// its messages in place. All chat reads filter tombstoned rows out.
func (s *ChatsStorage) MarkChatDeleted(ctx context.Context, chatID string) error {
	query, args, err := sq.Update("chats").
		Set("deleted_at", sq.Expr("now()")).
		Where(sq.Eq{"chat_id": chatID, "deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *ChatsStorage) withMembers(ctx context.Context, chats []models.Chat) ([]models.ChatWithMembers, error) {
	if len(chats) == 0 {
		return []models.ChatWithMembers{}, nil
	}

	ids := make([]string, len(chats))
	for i, c := range chats {
		ids[i] = c.ChatID
	}

	members, err := s.selectMembers(ctx, ids)
	if err != nil {
		return nil, err
	}

	admins, err := s.selectAdmins(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatWithMembers, len(chats))
	for i, c := range chats {
		out[i] = models.ChatWithMembers{
			Chat:    c,
			Members: members[c.ChatID],
			Admins:  admins[c.ChatID],
		}
	}
	return out, nil
}

func (s *ChatsStorage) selectMembers(ctx context.Context, chatIDs []string) (map[string][]models.ChatMember, error) {
	query, args, err := sq.Select("cm.chat_id", "u.user_id", "u.email", "u.first_name", "u.last_name").
		From("chat_members cm").
		Join("users u USING (user_id)").
		Where(sq.Eq{"cm.chat_id": chatIDs}).
		OrderBy("cm.chat_id", "u.user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string][]models.ChatMember, len(chatIDs))
	for _, id := range chatIDs {
		members[id] = make([]models.ChatMember, 0)
	}
	for rows.Next() {
		var chatID string
		member := models.ChatMember{}
		if err = rows.Scan(&chatID, &member.UserID, &member.Email, &member.FirstName, &member.LastName); err != nil {
			return nil, err
		}
		members[chatID] = append(members[chatID], member)
	}
	return members, rows.Err()
}

func (s *ChatsStorage) selectAdmins(ctx context.Context, chatIDs []string) (map[string][]string, error) {
	query, args, err := sq.Select("chat_id", "user_id").
		From("chat_admins").
		Where(sq.Eq{"chat_id": chatIDs}).
		OrderBy("chat_id", "user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	admins := make(map[string][]string, len(chatIDs))
	for _, id := range chatIDs {
		admins[id] = make([]string, 0)
	}
	for rows.Next() {
		var chatID, userID string
		if err = rows.Scan(&chatID, &userID); err != nil {
			return nil, err
		}
		admins[chatID] = append(admins[chatID], userID)
	}
	return admins, rows.Err()
}
