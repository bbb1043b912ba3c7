package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentease/database"
	"rentease/services"
)

type CreateReviewRequest struct {
	BookingID     uuid.UUID              `json:"booking_id" binding:"required"`
	PropertyID    uuid.UUID              `json:"property_id"`
	OverallRating int                    `json:"overall_rating"`
	RatingDetails database.RatingDetails `json:"rating_details"`
	Title         string                 `json:"title"`
	Comment       string                 `json:"comment"`
	Photos        []database.Photo       `json:"photos"`
}

// CreateReview records the tenant's review of a finished stay
func (h *Handler) CreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.svc.Reviews.Create(c.Request.Context(), currentUser(c), services.CreateReviewInput{
		BookingID:     req.BookingID,
		PropertyID:    req.PropertyID,
		OverallRating: req.OverallRating,
		RatingDetails: req.RatingDetails,
		Title:         req.Title,
		Comment:       req.Comment,
		Photos:        req.Photos,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListPropertyReviews(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reviews, err := h.svc.Reviews.ListForProperty(c.Request.Context(), id, page(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) RespondToReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.svc.Reviews.Respond(c.Request.Context(), currentUser(c), id, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ReviewFeedback counts a helpful or not-helpful vote
func (h *Handler) ReviewFeedback(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Helpful *bool `json:"helpful" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.Reviews.Feedback(c.Request.Context(), id, *req.Helpful); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Thanks for your feedback"})
}
