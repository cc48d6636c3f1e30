package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const localsUserID = "user_id"

func (s *Server) extractToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// RequireAuth resolves the request principal and stores its user id in the
// context locals. Requests without a valid token are rejected.
func (s *Server) RequireAuth(c *fiber.Ctx) error {
	token := s.extractToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(errorBody{Error: "authentication required"})
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(errorBody{Error: "authentication required"})
	}

	c.Locals(localsUserID, claims.UserID)
	return c.Next()
}

func requestUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}

// ChatMemberGuard rejects requests whose principal is not a member of the
// chat in the :id parameter. The domain service re-checks membership; this
// is the documented fast path.
func (s *Server) ChatMemberGuard(c *fiber.Ctx) error {
	chat, err := s.chats.GetChat(c.Context(), c.Params("id"))
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	if !chat.HasMember(requestUserID(c)) {
		return c.Status(fiber.StatusForbidden).JSON(errorBody{Error: "user is not a chat member"})
	}
	return c.Next()
}

// ChatAdminGuard rejects requests whose principal is not in the chat's
// admin set.
func (s *Server) ChatAdminGuard(c *fiber.Ctx) error {
	chat, err := s.chats.GetChat(c.Context(), c.Params("id"))
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	if !chat.HasAdmin(requestUserID(c)) {
		return c.Status(fiber.StatusForbidden).JSON(errorBody{Error: "user is not a chat admin"})
	}
	return c.Next()
}
