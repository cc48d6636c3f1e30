package realtime

import (
	"context"
	"encoding/json"

	"github.com/practice-sem-2/chat-service/internal/models"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
	"github.com/sirupsen/logrus"
)

const (
	JoinChatEvent       = "JOIN_CHAT_EVENT"
	SendMessageEvent    = "SEND_MESSAGE_EVENT"
	ReceiveMessageEvent = "RECEIVE_MESSAGE_EVENT"
)

type joinChatData struct {
	ChatID string `json:"chat_id"`
}

type sendMessageData struct {
	ChatID  string             `json:"chat_id"`
	Body    models.MessageBody `json:"body"`
	ReplyTo *int64             `json:"reply_to_id,omitempty"`
}

// Gateway translates socket events into domain service calls. Every
// real-time action is gated behind the same authentication the HTTP
// surface uses: an unauthenticated client gets a false ack, never an
// error.
type Gateway struct {
	hub    *Hub
	chats  *usecase.ChatsUsecase
	logger *logrus.Logger
}

func NewGateway(hub *Hub, chats *usecase.ChatsUsecase, logger *logrus.Logger) *Gateway {
	return &Gateway{
		hub:    hub,
		chats:  chats,
		logger: logger,
	}
}

// ServeConn owns the connection until it closes: it registers the client,
// starts the write pump and runs the read loop. userID may be empty for an
// anonymous connection.
func (g *Gateway) ServeConn(ctx context.Context, conn Conn, userID string) {
	client := NewClient(conn, userID)
	g.hub.Register(client)
	defer g.hub.Unregister(client)

	go client.WritePump()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		g.dispatch(ctx, client, frame)
	}
}

func (g *Gateway) dispatch(ctx context.Context, client *Client, frame Frame) {
	switch frame.Event {
	case JoinChatEvent:
		var data joinChatData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			client.reply(JoinChatEvent, false)
			return
		}
		client.reply(JoinChatEvent, g.JoinChat(ctx, client, data.ChatID))

	case SendMessageEvent:
		var data sendMessageData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			client.reply(SendMessageEvent, false)
			return
		}
		client.reply(SendMessageEvent, g.SendMessage(ctx, client, data))

	default:
		g.logger.WithField("event", frame.Event).Debug("unknown socket event")
	}
}

// JoinChat joins the client to the chat's broadcast room. It fails closed:
// a missing chat, a storage failure or a non-member requester all yield
// false.
func (g *Gateway) JoinChat(ctx context.Context, client *Client, chatID string) bool {
	if client.UserID == "" {
		return false
	}

	chat, err := g.chats.GetChat(ctx, chatID)
	if err != nil || !chat.HasMember(client.UserID) {
		return false
	}

	g.hub.Join(client, ChatRoom(chatID))
	return true
}

// SendMessage persists the message through the domain service; the service
// broadcasts it to the chat room after the commit. The ack only reports
// whether the message was stored.
func (g *Gateway) SendMessage(ctx context.Context, client *Client, data sendMessageData) bool {
	if client.UserID == "" {
		return false
	}

	_, err := g.chats.SaveMessages(ctx, data.ChatID, client.UserID, []models.NewMessage{{
		Body:    data.Body,
		ReplyTo: data.ReplyTo,
	}})
	if err != nil {
		g.logger.
			WithError(err).
			WithField("chat_id", data.ChatID).
			WithField("user_id", client.UserID).
			Debug("message was not accepted")
		return false
	}
	return true
}
