package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error string `json:"error"`
}

// wrapError maps domain errors onto transport statuses. Conflicts and
// unexpected failures are logged and surfaced with a generic body so
// internal details never leak to clients.
func wrapError(c *fiber.Ctx, logger *logrus.Logger, err error) error {
	errorMapper := []struct {
		from error
		code int
	}{
		{storage.ErrChatNotFound, fiber.StatusNotFound},
		{storage.ErrUserNotFound, fiber.StatusNotFound},
		{storage.ErrMessageNotFound, fiber.StatusNotFound},
		{storage.ErrReplyNotFound, fiber.StatusNotFound},
		{storage.ErrEmptyMembers, fiber.StatusBadRequest},
		{usecase.ErrInvalidState, fiber.StatusBadRequest},
		{usecase.ErrPermissionDenied, fiber.StatusForbidden},
	}

	for _, mapping := range errorMapper {
		if errors.Is(err, mapping.from) {
			return c.Status(mapping.code).JSON(errorBody{Error: err.Error()})
		}
	}

	if errors.Is(err, usecase.ErrConflict) ||
		errors.Is(err, storage.ErrChatAlreadyExists) ||
		errors.Is(err, storage.ErrPrivateChatExists) ||
		errors.Is(err, storage.ErrMessageAlreadyExists) {
		logger.WithError(err).Error("data consistency violation")
		return c.Status(fiber.StatusConflict).JSON(errorBody{Error: "conflict"})
	}

	logger.WithError(err).Error("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: "internal server error"})
}

type addMembersDto struct {
	MembersToAdd []string `json:"members_to_add" validate:"required,min=1,dive,uuid"`
}

type removeMembersDto struct {
	MembersToRemove []string `json:"members_to_remove" validate:"required,min=1,dive,uuid"`
}

type createGroupDto struct {
	NewMembers []string `json:"new_members" validate:"dive,uuid"`
}

type updateTitleDto struct {
	Title string `json:"title" validate:"required,max=256"`
}
