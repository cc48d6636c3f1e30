package server

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/practice-sem-2/chat-service/internal/realtime"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
	"github.com/sirupsen/logrus"
)

// Server is the HTTP and websocket surface over the chat domain service.
type Server struct {
	app      *fiber.App
	chats    *usecase.ChatsUsecase
	verifier *auth.Verifier
	validate *validator.Validate
	gateway  *realtime.Gateway
	logger   *logrus.Logger
}

func New(chats *usecase.ChatsUsecase, verifier *auth.Verifier, validate *validator.Validate, gateway *realtime.Gateway, logger *logrus.Logger) *Server {
	s := &Server{
		app:      fiber.New(fiber.Config{DisableStartupMessage: true, Immutable: true}),
		chats:    chats,
		verifier: verifier,
		validate: validate,
		gateway:  gateway,
		logger:   logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	chat := s.app.Group("/chat", s.RequireAuth)

	chat.Get("/private/:userId", s.getPrivate)
	chat.Patch("/private/:id/members/add", s.ChatMemberGuard, s.addToPrivate)

	chat.Post("/group", s.createGroup)
	chat.Patch("/group/:id/members/add", s.ChatAdminGuard, s.addToGroup)
	chat.Patch("/group/:id/members/remove", s.ChatAdminGuard, s.removeFromGroup)
	chat.Patch("/group/:id/title", s.ChatAdminGuard, s.updateTitle)
	chat.Delete("/group/:id", s.ChatAdminGuard, s.deleteGroup)

	chat.Get("/", s.getMyChats)
	chat.Get("/:id", s.getChat)
	chat.Get("/:id/messages", s.ChatMemberGuard, s.getMessages)
	chat.Delete("/:id/messages/:messageId", s.ChatMemberGuard, s.deleteMessage)

	// The socket surface shares the HTTP principal: the token travels in
	// the upgrade request, anonymous connections are allowed but every
	// gated action acks false for them.
	s.app.Use("/ws/chat", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if token := s.extractToken(c); token != "" {
			if claims, err := s.verifier.Verify(token); err == nil {
				c.Locals(localsUserID, claims.UserID)
			}
		}
		return c.Next()
	})
	s.app.Get("/ws/chat", websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(localsUserID).(string)
		s.gateway.ServeConn(context.Background(), conn, userID)
	}))
}

// App exposes the fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(address string) error {
	s.logger.Infof("start listening on %s", address)
	return s.app.Listen(address)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
