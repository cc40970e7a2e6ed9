package app

import (
	"errors"
	"strconv"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HistoryHandler REST read side of the relay
type HistoryHandler struct {
	messages  repository.MessageRepository
	groups    repository.GroupRepository
	presence  *PresenceRegistry
	signaling *SignalingRelay
}

// NewHistoryHandler create HistoryHandler
func NewHistoryHandler(messages repository.MessageRepository, groups repository.GroupRepository, presence *PresenceRegistry, signaling *SignalingRelay) *HistoryHandler {
	return &HistoryHandler{
		messages:  messages,
		groups:    groups,
		presence:  presence,
		signaling: signaling,
	}
}

// PrivateHistory 1 on 1 history
// @Summary Private chat history
// @Description Messages between two users, oldest first
// @Tags Chat
// @Produce json
// @Param user1 path string true "username"
// @Param user2 path string true "username"
// @Param limit query int false "page size, default 50, max 200"
// @Param before query int false "unix millis, only older messages"
// @Success 200 {array} domain.Message
// @Failure 400 {object} string "bad query"
// @Failure 500 {object} string "store error"
// @Router /messages/{user1}/{user2} [get]
func (h *HistoryHandler) PrivateHistory(c *fiber.Ctx) error {
	return h.history(c, domain.PrivateChatKey(c.Params("user1"), c.Params("user2")))
}

// Group group profile and members
// @Summary Group
// @Description Name, avatar, creator and members of a group
// @Tags Chat
// @Produce json
// @Param id path string true "group id"
// @Success 200 {object} domain.Group
// @Failure 404 {object} string "unknown group"
// @Failure 500 {object} string "store error"
// @Router /groups/{id} [get]
func (h *HistoryHandler) Group(c *fiber.Ctx) error {
	groupID := c.Params("id")
	group, err := h.groups.FindByID(c.UserContext(), groupID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "group not found"})
	}
	if err != nil {
		logger.Log.Error("group query failed", zap.String("groupID", groupID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "group unavailable"})
	}
	return c.JSON(group)
}

// GroupHistory group history
// @Summary Group chat history
// @Description Messages of a group, oldest first
// @Tags Chat
// @Produce json
// @Param id path string true "group id"
// @Param limit query int false "page size, default 50, max 200"
// @Param before query int false "unix millis, only older messages"
// @Success 200 {array} domain.Message
// @Failure 400 {object} string "bad query"
// @Failure 500 {object} string "store error"
// @Router /groups/{id}/messages [get]
func (h *HistoryHandler) GroupHistory(c *fiber.Ctx) error {
	return h.history(c, domain.GroupChatKey(c.Params("id")))
}

func (h *HistoryHandler) history(c *fiber.Ctx, chatKey string) error {
	q, err := parseHistoryQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	msgs, err := h.messages.FindHistory(c.UserContext(), chatKey, q)
	if err != nil {
		logger.Log.Error("history query failed", zap.String("chatKey", chatKey), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history unavailable"})
	}
	return c.JSON(msgs)
}

func parseHistoryQuery(c *fiber.Ctx) (domain.HistoryQuery, error) {
	var q domain.HistoryQuery
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return q, fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}
		q.Limit = n
	}
	if v := c.Query("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return q, fiber.NewError(fiber.StatusBadRequest, "invalid before")
		}
		q.Before = n
	}
	return q, nil
}

// OnlineUsers online usernames
// @Summary Online users
// @Tags Chat
// @Produce json
// @Success 200 {array} string
// @Router /users/online [get]
func (h *HistoryHandler) OnlineUsers(c *fiber.Ctx) error {
	return c.JSON(h.presence.ListOnline())
}

// CallParticipants participants of the running group call
// @Summary Group call participants
// @Tags Chat
// @Produce json
// @Param id path string true "group id"
// @Success 200 {array} string
// @Router /groups/{id}/call/participants [get]
func (h *HistoryHandler) CallParticipants(c *fiber.Ctx) error {
	return c.JSON(h.signaling.ListParticipants(c.Params("id")))
}
