package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/jmoiron/sqlx"
	"github.com/practice-sem-2/chat-service/internal/models"
)

type AtomicFunc func(Registry) error

// Registry hands out the stores bound to the current scope. Inside Atomic
// every store obtained from the callback registry runs on one transaction.
type Registry interface {
	Atomic(ctx context.Context, fn AtomicFunc) error
	GetChatsStore() ChatsStore
	GetMessagesStore() MessagesStore
	GetUsersStore() UsersStore
	GetUpdatesStore() UpdatesStore
}

// ChatsStore is the persistence contract for chats, memberships and the
// admin properties set. Constraint violations surface as the sentinel
// errors of this package, never as engine-specific codes.
type ChatsStore interface {
	CreateChat(ctx context.Context, chatID string, chatType models.ChatType, title *string, privateKey *string) error
	AddChatMembers(ctx context.Context, chatID string, members []string) error
	DeleteChatMembers(ctx context.Context, chatID string, members []string) error
	AddChatAdmins(ctx context.Context, chatID string, admins []string) error
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	GetChatWithMembers(ctx context.Context, chatID string) (*models.ChatWithMembers, error)
	GetUserChats(ctx context.Context, userID string, typeFilter *models.ChatType) ([]models.ChatWithMembers, error)
	GetPrivateChatsWith(ctx context.Context, userID string) ([]models.ChatWithMembers, error)
	UpdateChatTitle(ctx context.Context, chatID string, title *string) error
	DeleteChat(ctx context.Context, chatID string) error
	MarkChatDeleted(ctx context.Context, chatID string) error
}

type MessagesStore interface {
	InsertMessages(ctx context.Context, messages []models.Message) ([]models.Message, error)
	GetChatMessages(ctx context.Context, chatID string, limit uint64, after *int64) ([]models.Message, error)
	GetMessagesByID(ctx context.Context, ids []int64) ([]models.Message, error)
	ClearMessageBody(ctx context.Context, messageID int64) (*models.Message, error)
	DeleteChatMessages(ctx context.Context, chatID string) error
}

// UsersStore is the read-only adapter over the user directory.
type UsersStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) ([]models.User, error)
}

type UpdatesStore interface {
	ChatCreated(update *models.ChatCreated) error
	ChatDeleted(update *models.ChatDeleted) error
	MembersAdded(update *models.MembersAdded) error
	MembersRemoved(update *models.MembersRemoved) error
	TitleUpdated(update *models.TitleUpdated) error
	MessagesSent(update *models.MessagesSent) error
}

type DefaultRegistry struct {
	db       *sqlx.DB
	scope    Scope
	producer sarama.SyncProducer
	cfg      *UpdatesStoreConfig
}

type Scope interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	sqlx.Execer
	sqlx.Queryer
	Get(dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
}

// NewRegistry creates a registry over db. The producer may be nil, in which
// case the updates store becomes a no-op.
func NewRegistry(db *sqlx.DB, p sarama.SyncProducer, cfg *UpdatesStoreConfig) *DefaultRegistry {
	return &DefaultRegistry{
		db:       db,
		scope:    db,
		producer: p,
		cfg:      cfg,
	}
}

func (r *DefaultRegistry) Atomic(ctx context.Context, fn AtomicFunc) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("rollback caused by error: \"%v\" failed: %v", err, rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	storage := DefaultRegistry{
		db:       r.db,
		scope:    tx,
		producer: r.producer,
		cfg:      r.cfg,
	}
	err = fn(&storage)
	return err
}

func (r *DefaultRegistry) GetChatsStore() ChatsStore {
	return NewChatsStorage(r.scope)
}

func (r *DefaultRegistry) GetMessagesStore() MessagesStore {
	return NewMessagesStorage(r.scope)
}

func (r *DefaultRegistry) GetUsersStore() UsersStore {
	return NewUsersStorage(r.scope)
}

func (r *DefaultRegistry) GetUpdatesStore() UpdatesStore {
	return NewUpdatesStore(r.producer, r.cfg)
}
