package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentease/database"
	"rentease/services"
)

// ListNotifications returns the caller's notifications; ?unread=true
// limits it to unread ones.
func (h *Handler) ListNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	notes, err := h.svc.Notifications.ListForUser(c.Request.Context(), currentUser(c), unread, page(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// NotificationResource returns the notification with the entity it refers to
func (h *Handler) NotificationResource(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.Notifications.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	target, err := h.svc.Notifications.Resolve(c.Request.Context(), n)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n, "resource": target})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

type SendNotificationRequest struct {
	UserID   uuid.UUID                `json:"user_id" binding:"required"`
	Type     string                   `json:"type" binding:"required"`
	Title    string                   `json:"title"`
	Message  string                   `json:"message"`
	Related  database.RelatedResource `json:"related_resource"`
	Channels []database.Channel       `json:"channels"`
	Priority database.Priority        `json:"priority"`
}

// SendNotification lets an admin notify a user directly
func (h *Handler) SendNotification(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	n, err := h.svc.Notifications.Create(c.Request.Context(), services.NotificationInput{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Related:  req.Related,
		Channels: req.Channels,
		Priority: req.Priority,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// PendingDeliveries lists notifications still waiting on :channel. Used by
// the delivery workers.
func (h *Handler) PendingDeliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	notes, err := h.svc.Notifications.PendingDeliveries(c.Request.Context(), database.Channel(c.Param("channel")), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *Handler) MarkDelivered(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Channel database.Channel `json:"channel" binding:"required"`
		SentAt  *time.Time       `json:"sent_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var sentAt time.Time
	if req.SentAt != nil {
		sentAt = *req.SentAt
	}

	n, err := h.svc.Notifications.MarkDelivered(c.Request.Context(), id, req.Channel, sentAt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
