package handlers

import (
	"github.com/glowsync/glowsync-backend/internal/dto"
	"github.com/glowsync/glowsync-backend/internal/middleware"
	"github.com/glowsync/glowsync-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MessageHandler struct {
	messages      *services.MessageService
	conversations *services.ConversationService
}

func NewMessageHandler(messages *services.MessageService, conversations *services.ConversationService) *MessageHandler {
	return &MessageHandler{messages: messages, conversations: conversations}
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	senderID, err := middleware.CurrentIdentityID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		return badRequest(c, "Invalid receiver ID")
	}
	var campaignID *uuid.UUID
	if req.CampaignID != "" {
		id, err := uuid.Parse(req.CampaignID)
		if err != nil {
			return badRequest(c, "Invalid campaign ID")
		}
		campaignID = &id
	}

	msg, err := h.messages.Send(c.UserContext(), services.SendInput{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		CampaignID:  campaignID,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *MessageHandler) Conversations(c *fiber.Ctx) error {
	userID, err := middleware.CurrentIdentityID(c)
	if err != nil {
		return unauthorized(c)
	}

	conversations, err := h.conversations.List(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conversations)
}

// Thread returns the conversation with :userId and marks it read for the caller.
func (h *MessageHandler) Thread(c *fiber.Ctx) error {
	userID, err := middleware.CurrentIdentityID(c)
	if err != nil {
		return unauthorized(c)
	}
	otherID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	messages, err := h.messages.Thread(c.UserContext(), userID, otherID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(messages)
}
