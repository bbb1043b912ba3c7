package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentease/database"
	"rentease/services"
)

type SendMessageRequest struct {
	RecipientID uuid.UUID             `json:"recipient_id" binding:"required"`
	Content     string                `json:"content"`
	Type        database.MessageType  `json:"type"`
	Attachments []database.Attachment `json:"attachments"`
}

// SendMessage posts to the conversation of booking :id
func (h *Handler) SendMessage(c *gin.Context) {
	bookingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := h.svc.Messages.Send(c.Request.Context(), currentUser(c), services.SendMessageInput{
		BookingID:   bookingID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		Type:        req.Type,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) Conversation(c *gin.Context) {
	bookingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.svc.Messages.Conversation(c.Request.Context(), currentUser(c), bookingID, page(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkMessageRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	m, err := h.svc.Messages.MarkRead(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) UnreadMessages(c *gin.Context) {
	n, err := h.svc.Messages.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}
