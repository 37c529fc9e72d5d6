package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"socialnet/internal/domain"
	"socialnet/internal/middleware"
	"socialnet/internal/service/notification"
)

type NotificationHandler struct {
	notifService notification.Service
}

func NewNotificationHandler(notifService notification.Service) *NotificationHandler {
	return &NotificationHandler{notifService: notifService}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	unreadOnly := c.QueryBool("unread_only", false)

	result, err := h.notifService.List(c.UserContext(), middleware.GetUserID(c), unreadOnly, getPaginationParams(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	count, err := h.notifService.GetUnreadCount(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"count": count})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	var input domain.MarkReadInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("errors.invalid_body")
	}

	modified, err := h.notifService.MarkRead(c.UserContext(), middleware.GetUserID(c), input.IDs)
	if err != nil {
		if errors.Is(err, notification.ErrNoIDs) || errors.Is(err, notification.ErrInvalidID) {
			return middleware.BadRequest(err.Error())
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(domain.MarkReadResult{
		Message:       "notifications.marked_read",
		ModifiedCount: modified,
	})
}
