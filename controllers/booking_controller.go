package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentease/database"
	"rentease/services"
)

const dateLayout = "2006-01-02"

type CreateBookingRequest struct {
	PropertyID     uuid.UUID `json:"property_id" binding:"required"`
	CheckInDate    string    `json:"check_in_date" binding:"required"`
	CheckOutDate   string    `json:"check_out_date" binding:"required"`
	NumberOfNights int       `json:"number_of_nights"`
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// CreateBooking requests a stay for the authenticated tenant
func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	checkIn, err := parseDate(req.CheckInDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid check_in_date"})
		return
	}
	checkOut, err := parseDate(req.CheckOutDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid check_out_date"})
		return
	}

	b, err := h.svc.Bookings.Create(c.Request.Context(), currentUser(c), services.CreateBookingInput{
		PropertyID:     req.PropertyID,
		CheckInDate:    checkIn,
		CheckOutDate:   checkOut,
		NumberOfNights: req.NumberOfNights,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// bookingParty answers 403 unless the caller is the booking's tenant, its
// property owner or an admin.
func (h *Handler) bookingParty(c *gin.Context, bookingID uuid.UUID) bool {
	if isAdmin(c) {
		return true
	}
	p, err := h.svc.Bookings.Parties(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, err)
		return false
	}
	if !p.Includes(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return false
	}
	return true
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok || !h.bookingParty(c, id) {
		return
	}
	b, err := h.svc.Bookings.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) ListMyBookings(c *gin.Context) {
	bookings, err := h.svc.Bookings.ListForTenant(c.Request.Context(), currentUser(c), page(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// ListPropertyBookings is limited to the property's owner and admins
func (h *Handler) ListPropertyBookings(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Properties.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if p.OwnerID != currentUser(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}

	bookings, err := h.svc.Bookings.ListForProperty(c.Request.Context(), id, database.BookingStatus(c.Query("status")), page(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

type bookingTransition func(c *gin.Context, actorID, id uuid.UUID) (*database.Booking, error)

// transition runs one of the owner-side lifecycle steps on :id
func (h *Handler) transition(step bookingTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		b, err := step(c, currentUser(c), id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func (h *Handler) ConfirmBooking(c *gin.Context) {
	h.transition(func(c *gin.Context, actorID, id uuid.UUID) (*database.Booking, error) {
		return h.svc.Bookings.Confirm(c.Request.Context(), actorID, id)
	})(c)
}

func (h *Handler) CheckInBooking(c *gin.Context) {
	h.transition(func(c *gin.Context, actorID, id uuid.UUID) (*database.Booking, error) {
		return h.svc.Bookings.CheckIn(c.Request.Context(), actorID, id)
	})(c)
}

func (h *Handler) CompleteBooking(c *gin.Context) {
	h.transition(func(c *gin.Context, actorID, id uuid.UUID) (*database.Booking, error) {
		return h.svc.Bookings.Complete(c.Request.Context(), actorID, id)
	})(c)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// the body is optional
	_ = c.ShouldBindJSON(&req)

	h.transition(func(c *gin.Context, actorID, id uuid.UUID) (*database.Booking, error) {
		return h.svc.Bookings.Cancel(c.Request.Context(), actorID, id, req.Reason)
	})(c)
}

type ChargesRequest struct {
	MonthlyRent     *float64 `json:"monthly_rent"`
	SecurityDeposit *float64 `json:"security_deposit"`
	PlatformFee     *float64 `json:"platform_fee"`
}

func (h *Handler) UpdateBookingCharges(c *gin.Context) {
	var req ChargesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.transition(func(c *gin.Context, actorID, id uuid.UUID) (*database.Booking, error) {
		return h.svc.Bookings.UpdateCharges(c.Request.Context(), actorID, id, services.ChargesUpdate{
			MonthlyRent:     req.MonthlyRent,
			SecurityDeposit: req.SecurityDeposit,
			PlatformFee:     req.PlatformFee,
		})
	})(c)
}
