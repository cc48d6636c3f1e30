package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-service/internal/models"
)

type MessagesStorage struct {
	db Scope
}

func NewMessagesStorage(db Scope) *MessagesStorage {
	return &MessagesStorage{
		db: db,
	}
}

// InsertMessages writes the whole batch with a single multi-row insert, so
// either every message gets a sequence id or none does. Returned messages
// carry the ids and timestamps assigned by the database, in input order.
func (s *MessagesStorage) InsertMessages(ctx context.Context, messages []models.Message) ([]models.Message, error) {
	if len(messages) == 0 {
		return []models.Message{}, nil
	}

	builder := sq.Insert("messages").
		Columns("chat_id", "sender_id", "msg_type", "body", "reply_to").
		Suffix("RETURNING message_id, created_at").
		PlaceholderFormat(sq.Dollar)

	for _, msg := range messages {
		builder = builder.Values(msg.ChatID, msg.SenderID, msg.Type, msg.Body, msg.ReplyTo)
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case MessagesChatIdForeignKey:
		return nil, ErrChatNotFound
	case MessagesSenderIdForeignKey:
		return nil, ErrUserNotFound
	case MessagesReplyToForeignKey:
		return nil, ErrReplyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inserted := make([]models.Message, 0, len(messages))
	i := 0
	for rows.Next() {
		msg := messages[i]
		if err = rows.Scan(&msg.MessageID, &msg.CreatedAt); err != nil {
			return nil, err
		}
		inserted = append(inserted, msg)
		i++
	}
	if err = rows.Err(); err != nil {
		if GetPgxConstraintName(err) == MessagesReplyToForeignKey {
			return nil, ErrReplyNotFound
		}
		return nil, err
	}

	return inserted, nil
}

type SelectOptions struct {
	Limit   uint64
	OrderBy []string
}

func (s *MessagesStorage) SelectMessages(ctx context.Context, selector sq.Sqlizer, options ...SelectOptions) ([]models.Message, error) {
	option := SelectOptions{}
	if len(options) > 0 {
		option = options[0]
	}

	builder := sq.Select("message_id", "chat_id", "sender_id", "msg_type", "body", "reply_to", "created_at").
		From("messages").
		Where(selector).
		PlaceholderFormat(sq.Dollar)

	if len(option.OrderBy) > 0 {
		builder = builder.OrderBy(option.OrderBy...)
	}

	if option.Limit > 0 {
		builder = builder.Limit(option.Limit)
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg := models.Message{}
		if err = rows.StructScan(&msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetChatMessages returns a newest-first page. The cursor is exclusive:
// only messages with an id strictly greater than it are returned.
func (s *MessagesStorage) GetChatMessages(ctx context.Context, chatID string, limit uint64, after *int64) ([]models.Message, error) {
	selector := sq.And{sq.Eq{"chat_id": chatID}}
	if after != nil {
		selector = append(selector, sq.Gt{"message_id": *after})
	}
	return s.SelectMessages(ctx, selector, SelectOptions{
		Limit:   limit,
		OrderBy: []string{"message_id DESC"},
	})
}

func (s *MessagesStorage) GetMessagesByID(ctx context.Context, ids []int64) ([]models.Message, error) {
	if len(ids) == 0 {
		return []models.Message{}, nil
	}
	return s.SelectMessages(ctx, sq.Eq{"message_id": ids}, SelectOptions{
		OrderBy: []string{"message_id"},
	})
}

// ClearMessageBody tombstones a message: the body is emptied in place, the
// id and metadata survive.
func (s *MessagesStorage) ClearMessageBody(ctx context.Context, messageID int64) (*models.Message, error) {
	query, args, err := sq.Update("messages").
		Set("body", sq.Expr("'{}'::jsonb")).
		Where(sq.Eq{"message_id": messageID}).
		Suffix("RETURNING message_id, chat_id, sender_id, msg_type, body, reply_to, created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	msg := models.Message{}
	err = s.db.GetContext(ctx, &msg, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	} else if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessagesStorage) DeleteChatMessages(ctx context.Context, chatID string) error {
	query, args, err := sq.Delete("messages").
		Where(sq.Eq{"chat_id": chatID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}
