package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/practice-sem-2/chat-service/internal/models"
	"github.com/samber/lo"
)

func (s *Server) getPrivate(c *fiber.Ctx) error {
	otherUserID := c.Params("userId")
	if otherUserID == requestUserID(c) {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "can't open a private chat with yourself"})
	}

	result, err := s.chats.GetOrCreatePrivate(c.Context(), requestUserID(c), otherUserID)
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(result)
}

func (s *Server) addToPrivate(c *fiber.Ctx) error {
	data := addMembersDto{}
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "malformed request body"})
	}
	if err := s.validate.Struct(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})
	}
	if lo.Contains(data.MembersToAdd, requestUserID(c)) {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "can't add yourself"})
	}

	chat, err := s.chats.AddToPrivate(c.Context(), c.Params("id"), requestUserID(c), data.MembersToAdd)
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(chat)
}

func (s *Server) createGroup(c *fiber.Ctx) error {
	data := createGroupDto{}
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "malformed request body"})
	}
	if err := s.validate.Struct(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})
	}

	// The creator always joins the group and becomes its admin.
	userID := requestUserID(c)
	chat, err := s.chats.CreateGroup(c.Context(), append(data.NewMembers, userID), []string{userID})
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

func (s *Server) addToGroup(c *fiber.Ctx) error {
	data := addMembersDto{}
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "malformed request body"})
	}
	if err := s.validate.Struct(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})
	}

	chat, err := s.chats.AddToGroup(c.Context(), c.Params("id"), requestUserID(c), data.MembersToAdd)
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(chat)
}

func (s *Server) removeFromGroup(c *fiber.Ctx) error {
	data := removeMembersDto{}
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "malformed request body"})
	}
	if err := s.validate.Struct(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})
	}

	result, err := s.chats.RemoveFromGroup(c.Context(), c.Params("id"), requestUserID(c), data.MembersToRemove)
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(result)
}

func (s *Server) updateTitle(c *fiber.Ctx) error {
	data := updateTitleDto{}
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "malformed request body"})
	}
	if err := s.validate.Struct(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})
	}

	chat, err := s.chats.UpdateGroupTitle(c.Context(), c.Params("id"), requestUserID(c), data.Title)
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(chat)
}

func (s *Server) deleteGroup(c *fiber.Ctx) error {
	if err := s.chats.DeleteGroup(c.Context(), c.Params("id")); err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) getMyChats(c *fiber.Ctx) error {
	var typeFilter *models.ChatType
	switch models.ChatType(c.Query("type")) {
	case models.ChatTypePrivate:
		typeFilter = lo.ToPtr(models.ChatTypePrivate)
	case models.ChatTypeGroup:
		typeFilter = lo.ToPtr(models.ChatTypeGroup)
	}

	chats, err := s.chats.GetChats(c.Context(), requestUserID(c), typeFilter)
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(chats)
}

func (s *Server) getChat(c *fiber.Ctx) error {
	chat, err := s.chats.GetChat(c.Context(), c.Params("id"))
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	if !chat.HasMember(requestUserID(c)) {
		return c.Status(fiber.StatusForbidden).JSON(errorBody{Error: "user is not a chat member"})
	}
	return c.JSON(chat)
}

func (s *Server) getMessages(c *fiber.Ctx) error {
	limit, err := strconv.ParseUint(c.Query("number", "20"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "number must be an integer"})
	}

	var cursor *int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "cursor must be an integer"})
		}
		cursor = &parsed
	}

	messages, err := s.chats.GetMessages(c.Context(), c.Params("id"), limit, cursor)
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(messages)
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	messageID, err := strconv.ParseInt(c.Params("messageId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "message id must be an integer"})
	}

	msg, err := s.chats.DeleteMessageAs(c.Context(), c.Params("id"), messageID, requestUserID(c))
	if err != nil {
		return wrapError(c, s.logger, err)
	}
	return c.JSON(msg)
}
