package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentease/database"
	"rentease/services"
)

type CreatePaymentRequest struct {
	BookingID uuid.UUID              `json:"booking_id" binding:"required"`
	Method    database.PaymentMethod `json:"method" binding:"required"`
	Currency  string                 `json:"currency"`
	Tax       float64                `json:"tax"`
	GST       float64                `json:"gst"`
}

// CreatePayment opens a gateway order for a booking and returns what the
// checkout widget needs.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pay, err := h.svc.Payments.Create(c.Request.Context(), currentUser(c), services.CreatePaymentInput{
		BookingID: req.BookingID,
		Method:    req.Method,
		Currency:  req.Currency,
		Tax:       req.Tax,
		GST:       req.GST,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment":  pay,
		"order_id": pay.RazorpayOrderID,
		"key_id":   h.gatewayKey,
	})
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// VerifyPayment checks the checkout signature, captures the payment and
// confirms the booking.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pay, b, err := h.svc.Payments.VerifyAndCapture(c.Request.Context(), currentUser(c), req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": pay, "booking": b})
}

// payer answers 403 unless the caller made the payment or is an admin
func (h *Handler) payer(c *gin.Context, id uuid.UUID) (*database.Payment, bool) {
	pay, err := h.svc.Payments.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if pay.UserID != currentUser(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return nil, false
	}
	return pay, true
}

func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if pay, ok := h.payer(c, id); ok {
		c.JSON(http.StatusOK, pay)
	}
}

func (h *Handler) ListBookingPayments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok || !h.bookingParty(c, id) {
		return
	}
	payments, err := h.svc.Payments.ListForBooking(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) FailPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.payer(c, id); !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)

	pay, err := h.svc.Payments.Fail(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pay)
}

func (h *Handler) RetryPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pay, err := h.svc.Payments.Retry(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment":  pay,
		"order_id": pay.RazorpayOrderID,
		"key_id":   h.gatewayKey,
	})
}

// CapturePayment records a capture reported outside checkout. Admin only.
func (h *Handler) CapturePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pay, b, err := h.svc.Payments.CaptureAndConfirm(c.Request.Context(), id, req.RazorpayPaymentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": pay, "booking": b})
}

func (h *Handler) InitiateRefund(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Amount float64 `json:"amount" binding:"required"`
		Reason string  `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pay, err := h.svc.Payments.InitiateRefund(c.Request.Context(), currentUser(c), id, req.Amount, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pay)
}

// CompleteRefund is called once the gateway reports the refund processed
func (h *Handler) CompleteRefund(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		RefundID string `json:"refund_id"`
	}
	_ = c.ShouldBindJSON(&req)

	pay, err := h.svc.Payments.CompleteRefund(c.Request.Context(), id, req.RefundID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pay)
}

func (h *Handler) FailRefund(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)

	pay, err := h.svc.Payments.FailRefund(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pay)
}
