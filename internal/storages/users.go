package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-service/internal/models"
)

// UsersStorage reads from the user directory tables. The chat service never
// writes users; it only resolves foreign references.
type UsersStorage struct {
	db Scope
}

func NewUsersStorage(db Scope) *UsersStorage {
	return &UsersStorage{
		db: db,
	}
}

func (s *UsersStorage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	query, args, err := sq.Select("user_id", "email", "first_name", "last_name").
		From("users").
		Where(sq.Eq{"user_id": userID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	user := models.User{}
	err = s.db.GetContext(ctx, &user, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersStorage) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	query, args, err := sq.Select("user_id", "email", "first_name", "last_name").
		From("users").
		Where(sq.Eq{"user_id": ids}).
		OrderBy("user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	err = s.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, err
	}
	return users, nil
}
