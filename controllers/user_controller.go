package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rentease/database"
)

// GetProfile returns the authenticated user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	u, err := h.svc.Users.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// GetUser returns any user's profile. Admin only.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	u, err := h.svc.Users.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateAvatar(c *gin.Context) {
	var req database.Media
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	avatar, err := h.svc.Users.UpdateAvatar(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar": avatar})
}

// DeactivateUser deactivates the caller's own account, or any account
// when the caller is an admin.
func (h *Handler) DeactivateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id != currentUser(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}

	if err := h.svc.Users.Deactivate(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deactivated"})
}

func (h *Handler) BookingHistory(c *gin.Context) {
	bookings, err := h.svc.Users.BookingHistory(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) SavedProperties(c *gin.Context) {
	props, err := h.svc.Properties.SavedProperties(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}
