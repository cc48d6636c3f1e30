package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeStandard MessageType = "STANDARD"
	MessageTypeEvent    MessageType = "EVENT"
)

type MessageEventType string

const (
	EventMembersAdded   MessageEventType = "MEMBERS_ADDED"
	EventMembersRemoved MessageEventType = "MEMBERS_REMOVED"
	EventTitleUpdated   MessageEventType = "TITLE_UPDATED"
	EventGroupCreated   MessageEventType = "GROUP_CREATED"
)

type MessageAttachment struct {
	Name   string `json:"name"`
	Object string `json:"object"`
}

// EventPayload carries the data of an EVENT message. Which fields are set
// depends on the event type: member events fill By and Members, title
// events fill By, Old and New, group creation fills By only.
type EventPayload struct {
	By      string   `json:"by,omitempty"`
	Members []string `json:"members_id,omitempty"`
	Old     *string  `json:"old,omitempty"`
	New     *string  `json:"new,omitempty"`
}

// MessageBody is the JSON body column of a message. STANDARD messages use
// Text and Attachments, EVENT messages use EventType and EventData. A
// tombstoned message has all fields zeroed.
type MessageBody struct {
	Text        string              `json:"txt,omitempty"`
	Attachments []MessageAttachment `json:"attachments,omitempty"`
	EventType   MessageEventType    `json:"type,omitempty"`
	EventData   *EventPayload       `json:"data,omitempty"`
}

func (b MessageBody) Kind() MessageType {
	if b.EventType != "" {
		return MessageTypeEvent
	}
	return MessageTypeStandard
}

func (b MessageBody) IsEmpty() bool {
	return b.Text == "" && len(b.Attachments) == 0 && b.EventType == "" && b.EventData == nil
}

func (b MessageBody) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *MessageBody) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	case nil:
		*b = MessageBody{}
		return nil
	default:
		return errors.New("message body must be scanned from jsonb")
	}
}

type Message struct {
	MessageID int64       `json:"message_id" db:"message_id"`
	ChatID    string      `json:"chat_id" db:"chat_id"`
	SenderID  string      `json:"sender_id" db:"sender_id"`
	Type      MessageType `json:"type" db:"msg_type"`
	Body      MessageBody `json:"body" db:"body"`
	ReplyTo   *int64      `json:"reply_to" db:"reply_to"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// NewMessage is a message as submitted by a sender, before the sequence id
// and timestamp are assigned by the store.
type NewMessage struct {
	Body    MessageBody `json:"body"`
	ReplyTo *int64      `json:"reply_to_id,omitempty"`
}
