package models

import "time"

// Updates are the records published to the out-of-band updates feed. They
// mirror the event messages persisted in chats but are addressed to the
// affected users rather than to a chat room.

type UpdateMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Audience  []string  `json:"audience"`
}

type ChatCreated struct {
	UpdateMeta
	ChatID  string   `json:"chat_id" validate:"required,uuid"`
	Type    ChatType `json:"type" validate:"required"`
	Members []string `json:"members"`
}

type ChatDeleted struct {
	UpdateMeta
	ChatID string `json:"chat_id" validate:"required,uuid"`
}

type MembersAdded struct {
	UpdateMeta
	ChatID  string   `json:"chat_id" validate:"required,uuid"`
	By      string   `json:"by" validate:"required,uuid"`
	Members []string `json:"members"`
}

type MembersRemoved struct {
	UpdateMeta
	ChatID  string   `json:"chat_id" validate:"required,uuid"`
	By      string   `json:"by" validate:"required,uuid"`
	Members []string `json:"members"`
}

type TitleUpdated struct {
	UpdateMeta
	ChatID string  `json:"chat_id" validate:"required,uuid"`
	By     string  `json:"by" validate:"required,uuid"`
	Old    *string `json:"old"`
	New    *string `json:"new"`
}

type MessagesSent struct {
	UpdateMeta
	ChatID   string    `json:"chat_id" validate:"required,uuid"`
	Messages []Message `json:"messages"`
}
