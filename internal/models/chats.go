package models

import "strings"

type ChatType string

const (
	ChatTypePrivate ChatType = "PRIVATE"
	ChatTypeGroup   ChatType = "GROUP"
)

type Chat struct {
	ChatID string   `json:"chat_id" db:"chat_id"`
	Type   ChatType `json:"type" db:"chat_type"`
	Title  *string  `json:"title" db:"title"`
}

// ChatMember is the minimal user projection exposed by chat reads.
// The user record itself is owned by the user directory.
type ChatMember struct {
	UserID    string `json:"user_id" db:"user_id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
}

type ChatWithMembers struct {
	Chat
	Members []ChatMember `json:"members"`
	Admins  []string     `json:"admins"`
}

func (c *ChatWithMembers) MemberIDs() []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.UserID
	}
	return ids
}

func (c *ChatWithMembers) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (c *ChatWithMembers) HasAdmin(userID string) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// PrivatePairKey builds the canonical unordered-pair key stored next to
// PRIVATE chats. A unique index on it turns the create race for the same
// pair into a constraint violation instead of a duplicate chat.
func PrivatePairKey(userID, otherUserID string) string {
	if strings.Compare(userID, otherUserID) > 0 {
		userID, otherUserID = otherUserID, userID
	}
	return userID + ":" + otherUserID
}
