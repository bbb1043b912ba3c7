package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentease/cache"
	"rentease/database"
	"rentease/services"
)

// CreateProperty lists a new property for the authenticated owner
func (h *Handler) CreateProperty(c *gin.Context) {
	var p database.Property
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}

	created, err := h.svc.Properties.Create(c.Request.Context(), currentUser(c), &p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var upd services.PropertyUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.svc.Properties.Update(c.Request.Context(), currentUser(c), id, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Properties.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPropertyBySlug(c *gin.Context) {
	p, err := h.svc.Properties.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SearchProperties filters listings by the query string. Supported keys:
// city, type, status, furnishing, min_price, max_price, owner, page, limit.
func (h *Handler) SearchProperties(c *gin.Context) {
	q := services.SearchQuery{
		City:         c.Query("city"),
		PropertyType: database.PropertyType(c.Query("type")),
		Status:       database.PropertyStatus(c.Query("status")),
		Furnishing:   database.FurnishingStatus(c.Query("furnishing")),
		MinPrice:     queryFloat(c, "min_price"),
		MaxPrice:     queryFloat(c, "max_price"),
		Page:         page(c),
	}
	if owner := c.Query("owner"); owner != "" {
		id, err := uuid.Parse(owner)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner"})
			return
		}
		q.OwnerID = &id
	}

	props, total, err := h.svc.Properties.Search(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": props, "total": total})
}

func (h *Handler) NearbyProperties(c *gin.Context) {
	radius := queryFloat(c, "radius")
	if radius == 0 {
		radius = 5000
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	props, err := h.svc.Properties.Nearby(c.Request.Context(), queryFloat(c, "lon"), queryFloat(c, "lat"), radius, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

func (h *Handler) SetPropertyStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status database.PropertyStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.svc.Properties.SetStatus(c.Request.Context(), currentUser(c), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) VerifyProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Properties.Verify(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) SaveProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Properties.Save(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Property saved"})
}

func (h *Handler) UnsaveProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Properties.Unsave(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Property removed from saved list"})
}

// RecordEngagement counts a view, click or inquiry on a listing
func (h *Handler) RecordEngagement(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Event cache.Event `json:"event" binding:"required,oneof=views clicks inquiries"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.Properties.RecordEngagement(c.Request.Context(), id, req.Event); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
