package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentease/database"
	"rentease/validation"
)

type PaymentService struct {
	*core
	gateway PaymentGateway
}

type CreatePaymentInput struct {
	BookingID uuid.UUID
	Method    database.PaymentMethod
	Currency  string
	Tax       float64
	GST       float64
	// RazorpayOrderID is created through the gateway when empty
	RazorpayOrderID string
}

// payable loads the booking and checks userID may open a payment for it
func payable(tx *gorm.DB, userID, bookingID uuid.UUID) (*database.Booking, error) {
	var b database.Booking
	if err := tx.First(&b, "id = ?", bookingID).Error; err != nil {
		return nil, dbError("load booking", err)
	}
	if b.TenantID != userID {
		return nil, invariant("payment_tenant", "Only the booking's tenant can pay for it")
	}
	if b.Status.IsTerminal() {
		return nil, invariant("booking_closed", fmt.Sprintf("A %s booking cannot take payments", b.Status))
	}
	if b.PaymentStatus != database.BookingUnpaid {
		return nil, invariant("booking_paid", "Booking is already paid")
	}

	var open int64
	err := tx.Model(&database.Payment{}).
		Where("booking_id = ? AND status IN ?", b.ID, []database.PaymentStatus{database.PaymentPending, database.PaymentCompleted}).
		Count(&open).Error
	if err != nil {
		return nil, dbError("check payments", err)
	}
	if open > 0 {
		return nil, invariant("payment_open", "Booking already has an open payment")
	}

	n, err := overlapping(tx, b.PropertyID, b.CheckInDate, b.CheckOutDate, &b.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, invariant("booking_overlap", "Property is already booked for these dates")
	}
	return &b, nil
}

// Create opens a pending payment for the booking total. Without an order id
// an order is created with the gateway first.
func (s *PaymentService) Create(ctx context.Context, userID uuid.UUID, in CreatePaymentInput) (*database.Payment, error) {
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = database.DefaultCurrency
	}

	b, err := payable(s.db.WithContext(ctx), userID, in.BookingID)
	if err != nil {
		return nil, err
	}

	pay := database.Payment{
		Base:            database.Base{ID: uuid.New()},
		BookingID:       b.ID,
		UserID:          userID,
		Amount:          b.TotalAmount,
		Currency:        currency,
		RazorpayOrderID: strings.TrimSpace(in.RazorpayOrderID),
		Method:          in.Method,
		Status:          database.PaymentPending,
		Refund:          database.Refund{Status: database.RefundNone},
		Tax:             in.Tax,
		GST:             in.GST,
	}
	check := pay
	if check.RazorpayOrderID == "" {
		check.RazorpayOrderID = "unassigned"
	}
	if err := validation.Struct(&check); err != nil {
		return nil, err
	}

	if pay.RazorpayOrderID == "" {
		if pay.RazorpayOrderID, err = s.createOrder(ctx, &pay); err != nil {
			return nil, err
		}
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		var b database.Booking
		if err := lock(tx, &b, pay.BookingID); err != nil {
			return dbError("load booking", err)
		}
		if _, err := payable(tx, userID, b.ID); err != nil {
			return err
		}
		if err := tx.Create(&pay).Error; err != nil {
			return dbError("create payment", err)
		}
		return s.audit(ctx, tx, "Payment", pay.ID, "create", "", string(pay.Status))
	})
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

func (s *PaymentService) createOrder(ctx context.Context, pay *database.Payment) (string, error) {
	if s.gateway == nil {
		return "", ErrGatewayUnavailable
	}
	orderID, err := s.gateway.CreateOrder(ctx, pay.TotalWithTax(), pay.Currency, pay.ID.String(), map[string]interface{}{
		"booking_id": pay.BookingID.String(),
	})
	if err != nil {
		s.log.WithError(err).WithField("booking_id", pay.BookingID).Error("Gateway order failed")
		return "", fmt.Errorf("create order: %w", err)
	}
	return orderID, nil
}

// capture moves a pending payment to completed and the booking to paid
func (c *core) capture(ctx context.Context, tx *gorm.DB, pay *database.Payment, b *database.Booking, gatewayPaymentID string) error {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return validation.Field("razorpay_payment_id", "Razorpay payment ID is required")
	}
	if !pay.Status.CanTransitionTo(database.PaymentCompleted) {
		return transition("payment", pay.Status, database.PaymentCompleted)
	}
	if !b.PaymentStatus.CanTransitionTo(database.BookingPaid) {
		return transition("booking payment", b.PaymentStatus, database.BookingPaid)
	}

	now := c.now()
	err := tx.Model(pay).Updates(map[string]interface{}{
		"status":              database.PaymentCompleted,
		"razorpay_payment_id": gatewayPaymentID,
		"completed_at":        now,
		"failure_reason":      "",
	}).Error
	if err != nil {
		return dbError("complete payment", err)
	}
	pay.Status, pay.RazorpayPaymentID, pay.CompletedAt, pay.FailureReason = database.PaymentCompleted, gatewayPaymentID, &now, ""

	if err := tx.Model(b).Update("payment_status", database.BookingPaid).Error; err != nil {
		return dbError("mark booking paid", err)
	}
	b.PaymentStatus = database.BookingPaid

	if err := c.audit(ctx, tx, "Payment", pay.ID, "status", string(database.PaymentPending), string(database.PaymentCompleted)); err != nil {
		return err
	}
	if err := c.audit(ctx, tx, "Booking", b.ID, "payment_status", string(database.BookingUnpaid), string(database.BookingPaid)); err != nil {
		return err
	}

	_, err = c.notify(tx, NotificationInput{
		UserID:   pay.UserID,
		Type:     "payment_received",
		Title:    "Payment received",
		Message:  fmt.Sprintf("We received your payment of %s %.2f.", pay.Currency, pay.TotalWithTax()),
		Related:  related(database.ResourcePayment, pay.ID),
		Channels: []database.Channel{database.ChannelEmail},
	})
	return err
}

// lockPayment loads and locks a payment and its booking
func lockPayment(tx *gorm.DB, id uuid.UUID) (*database.Payment, *database.Booking, error) {
	var pay database.Payment
	if err := lock(tx, &pay, id); err != nil {
		return nil, nil, dbError("load payment", err)
	}
	var b database.Booking
	if err := lock(tx, &b, pay.BookingID); err != nil {
		return nil, nil, dbError("load booking", err)
	}
	return &pay, &b, nil
}

// Complete records a captured payment and marks the booking paid in one transaction
func (s *PaymentService) Complete(ctx context.Context, paymentID uuid.UUID, gatewayPaymentID string) (*database.Payment, error) {
	var pay *database.Payment
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var b *database.Booking
		var err error
		if pay, b, err = lockPayment(tx, paymentID); err != nil {
			return err
		}
		return s.capture(ctx, tx, pay, b, gatewayPaymentID)
	})
	if err != nil {
		return nil, err
	}
	return pay, nil
}

// CaptureAndConfirm records a captured payment, marks the booking paid and
// confirms it. Nothing is written unless all three succeed.
func (s *PaymentService) CaptureAndConfirm(ctx context.Context, paymentID uuid.UUID, gatewayPaymentID string) (*database.Payment, *database.Booking, error) {
	var pay *database.Payment
	var b *database.Booking
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		if pay, b, err = lockPayment(tx, paymentID); err != nil {
			return err
		}
		var p database.Property
		if err := lock(tx, &p, b.PropertyID); err != nil {
			return dbError("load property", err)
		}
		if err := s.capture(ctx, tx, pay, b, gatewayPaymentID); err != nil {
			return err
		}
		return s.confirmTx(ctx, tx, b, &p)
	})
	if err != nil {
		return nil, nil, err
	}
	return pay, b, nil
}

// VerifyAndCapture checks the checkout signature returned to userID and
// then captures and confirms.
func (s *PaymentService) VerifyAndCapture(ctx context.Context, userID uuid.UUID, orderID, gatewayPaymentID, signature string) (*database.Payment, *database.Booking, error) {
	if s.gateway == nil {
		return nil, nil, ErrGatewayUnavailable
	}
	if !s.gateway.VerifySignature(orderID, gatewayPaymentID, signature) {
		return nil, nil, ErrInvalidSignature
	}

	var pay database.Payment
	err := s.db.WithContext(ctx).
		Where("razorpay_order_id = ? AND status = ?", orderID, database.PaymentPending).
		First(&pay).Error
	if err != nil {
		return nil, nil, dbError("load payment", err)
	}
	if pay.UserID != userID {
		return nil, nil, ErrForbidden
	}

	captured, b, err := s.CaptureAndConfirm(ctx, pay.ID, gatewayPaymentID)
	var ie *InvariantError
	var te *TransitionError
	if err != nil && (errors.As(err, &ie) || errors.As(err, &te)) {
		s.settleUnconfirmed(ctx, &pay, gatewayPaymentID, err)
	}
	return captured, b, err
}

// settleUnconfirmed keeps a verified capture whose booking could not be
// confirmed and hands the money back through a full refund.
func (s *PaymentService) settleUnconfirmed(ctx context.Context, pay *database.Payment, gatewayPaymentID string, cause error) {
	log := s.log.WithField("payment_id", pay.ID).WithField("booking_id", pay.BookingID)
	log.WithError(cause).Warn("Captured payment could not confirm its booking")

	if _, err := s.Complete(ctx, pay.ID, gatewayPaymentID); err != nil {
		log.WithError(err).Error("Recording unconfirmed capture failed")
		return
	}
	if _, err := s.refund(ctx, pay.ID, pay.Amount, "Booking could not be confirmed"); err != nil {
		log.WithError(err).Error("Refunding unconfirmed capture failed")
	}
}

// Fail records that the gateway declined a pending payment
func (s *PaymentService) Fail(ctx context.Context, paymentID uuid.UUID, reason string) (*database.Payment, error) {
	var pay database.Payment
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &pay, paymentID); err != nil {
			return dbError("load payment", err)
		}
		if !pay.Status.CanTransitionTo(database.PaymentFailed) {
			return transition("payment", pay.Status, database.PaymentFailed)
		}
		pay.Status, pay.FailureReason = database.PaymentFailed, strings.TrimSpace(reason)
		if err := tx.Model(&pay).Select("status", "failure_reason").Updates(&pay).Error; err != nil {
			return dbError("fail payment", err)
		}
		if _, err := s.notify(tx, NotificationInput{
			UserID:   pay.UserID,
			Type:     "payment_failed",
			Title:    "Payment failed",
			Message:  "Your payment did not go through. You can retry from your bookings.",
			Related:  related(database.ResourcePayment, pay.ID),
			Priority: database.PriorityHigh,
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, "Payment", pay.ID, "status", string(database.PaymentPending), string(database.PaymentFailed))
	})
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

// Retry reopens a failed payment under a new gateway order
func (s *PaymentService) Retry(ctx context.Context, userID, paymentID uuid.UUID) (*database.Payment, error) {
	var current database.Payment
	if err := s.db.WithContext(ctx).First(&current, "id = ?", paymentID).Error; err != nil {
		return nil, dbError("load payment", err)
	}
	if current.UserID != userID {
		return nil, ErrForbidden
	}
	if !current.Status.CanTransitionTo(database.PaymentPending) {
		return nil, transition("payment", current.Status, database.PaymentPending)
	}

	orderID, err := s.createOrder(ctx, &current)
	if err != nil {
		return nil, err
	}

	var pay database.Payment
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &pay, paymentID); err != nil {
			return dbError("load payment", err)
		}
		if !pay.Status.CanTransitionTo(database.PaymentPending) {
			return transition("payment", pay.Status, database.PaymentPending)
		}
		var b database.Booking
		if err := lock(tx, &b, pay.BookingID); err != nil {
			return dbError("load booking", err)
		}
		if b.Status.IsTerminal() || b.PaymentStatus != database.BookingUnpaid {
			return invariant("booking_closed", "Booking no longer accepts payments")
		}

		pay.Status, pay.RazorpayOrderID, pay.FailureReason = database.PaymentPending, orderID, ""
		if err := tx.Model(&pay).Select("status", "razorpay_order_id", "failure_reason").Updates(&pay).Error; err != nil {
			return dbError("retry payment", err)
		}
		return s.audit(ctx, tx, "Payment", pay.ID, "status", string(database.PaymentFailed), string(database.PaymentPending))
	})
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

// refundable checks a refund of amount may be started on pay while its
// booking is in status.
func refundable(pay *database.Payment, status database.BookingStatus, amount float64) error {
	if pay.Status != database.PaymentCompleted {
		return invariant("refund_uncaptured", "Only a completed payment can be refunded")
	}
	if !pay.Refund.Status.CanTransitionTo(database.RefundInitiated) {
		return transition("refund", pay.Refund.Status, database.RefundInitiated)
	}
	if amount <= 0 || amount > pay.Amount {
		return validation.Field("refund.amount", "Refund amount must be positive and cannot exceed the payment amount")
	}
	if status == database.BookingOngoing {
		return invariant("refund_booking_ongoing", "A booking cannot be refunded during the stay")
	}
	return nil
}

// mayRefund allows the property owner and admins
func mayRefund(tx *gorm.DB, actorID uuid.UUID, pay *database.Payment) error {
	p, err := parties(tx, pay.BookingID)
	if err != nil {
		return err
	}
	if actorID == p.OwnerID {
		return nil
	}
	admin, err := isAdmin(tx, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

// InitiateRefund asks the gateway to refund amount and records the refund
// as initiated. The payment stays completed until the refund completes.
func (s *PaymentService) InitiateRefund(ctx context.Context, actorID, paymentID uuid.UUID, amount float64, reason string) (*database.Payment, error) {
	amount = round2(amount)

	db := s.db.WithContext(ctx)
	var current database.Payment
	if err := db.First(&current, "id = ?", paymentID).Error; err != nil {
		return nil, dbError("load payment", err)
	}
	var b database.Booking
	if err := db.First(&b, "id = ?", current.BookingID).Error; err != nil {
		return nil, dbError("load booking", err)
	}
	if err := refundable(&current, b.Status, amount); err != nil {
		return nil, err
	}
	if err := mayRefund(db, actorID, &current); err != nil {
		return nil, err
	}
	return s.refund(ctx, paymentID, amount, reason)
}

func (s *PaymentService) refund(ctx context.Context, paymentID uuid.UUID, amount float64, reason string) (*database.Payment, error) {
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	var current database.Payment
	if err := s.db.WithContext(ctx).First(&current, "id = ?", paymentID).Error; err != nil {
		return nil, dbError("load payment", err)
	}
	refundID, err := s.gateway.Refund(ctx, current.RazorpayPaymentID, amount)
	if err != nil {
		s.log.WithError(err).WithField("payment_id", paymentID).Error("Gateway refund failed")
		return nil, fmt.Errorf("initiate refund: %w", err)
	}

	var pay *database.Payment
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		var b *database.Booking
		var err error
		if pay, b, err = lockPayment(tx, paymentID); err != nil {
			return err
		}
		if err := refundable(pay, b.Status, amount); err != nil {
			return err
		}

		from := pay.Refund.Status
		pay.Refund = database.Refund{
			Amount:      amount,
			Status:      database.RefundInitiated,
			RefundID:    refundID,
			Reason:      strings.TrimSpace(reason),
			InitiatedAt: timePtr(s.now()),
		}
		if err := validation.Struct(pay); err != nil {
			return err
		}
		err = tx.Model(pay).
			Select("refund_amount", "refund_status", "refund_refund_id", "refund_reason", "refund_initiated_at", "refund_completed_at").
			Updates(pay).Error
		if err != nil {
			return dbError("initiate refund", err)
		}
		return s.audit(ctx, tx, "Refund", pay.ID, "status", string(from), string(database.RefundInitiated))
	})
	if err != nil {
		return nil, err
	}
	return pay, nil
}

// CompleteRefund records the gateway's refund confirmation. The refund, the
// payment and the booking's payment status change together.
func (s *PaymentService) CompleteRefund(ctx context.Context, paymentID uuid.UUID, refundID string) (*database.Payment, error) {
	var pay *database.Payment
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var b *database.Booking
		var err error
		if pay, b, err = lockPayment(tx, paymentID); err != nil {
			return err
		}
		if !pay.Refund.Status.CanTransitionTo(database.RefundCompleted) {
			return transition("refund", pay.Refund.Status, database.RefundCompleted)
		}
		if !pay.Status.CanTransitionTo(database.PaymentRefunded) {
			return transition("payment", pay.Status, database.PaymentRefunded)
		}
		if !b.PaymentStatus.CanTransitionTo(database.BookingRefunded) {
			return transition("booking payment", b.PaymentStatus, database.BookingRefunded)
		}
		if refundID = strings.TrimSpace(refundID); refundID != "" && pay.Refund.RefundID != "" && refundID != pay.Refund.RefundID {
			return invariant("refund_mismatch", "Refund ID does not match the initiated refund")
		}
		if pay.Refund.RefundID == "" {
			pay.Refund.RefundID = refundID
		}

		pay.Status = database.PaymentRefunded
		pay.Refund.Status = database.RefundCompleted
		pay.Refund.CompletedAt = timePtr(s.now())
		if err := validation.Struct(pay); err != nil {
			return err
		}
		err = tx.Model(pay).
			Select("status", "refund_status", "refund_refund_id", "refund_completed_at").
			Updates(pay).Error
		if err != nil {
			return dbError("complete refund", err)
		}
		if err := tx.Model(b).Update("payment_status", database.BookingRefunded).Error; err != nil {
			return dbError("mark booking refunded", err)
		}
		b.PaymentStatus = database.BookingRefunded

		for _, a := range []struct{ entity, from, to string }{
			{"Refund", string(database.RefundInitiated), string(database.RefundCompleted)},
			{"Payment", string(database.PaymentCompleted), string(database.PaymentRefunded)},
		} {
			if err := s.audit(ctx, tx, a.entity, pay.ID, "status", a.from, a.to); err != nil {
				return err
			}
		}
		if err := s.audit(ctx, tx, "Booking", b.ID, "payment_status", string(database.BookingPaid), string(database.BookingRefunded)); err != nil {
			return err
		}

		_, err = s.notify(tx, NotificationInput{
			UserID:   pay.UserID,
			Type:     "refund_completed",
			Title:    "Refund processed",
			Message:  fmt.Sprintf("Your refund of %s %.2f has been processed.", pay.Currency, pay.Refund.Amount),
			Related:  related(database.ResourcePayment, pay.ID),
			Channels: []database.Channel{database.ChannelEmail},
		})
		if err != nil {
			return err
		}

		// a refunded stay that has not started no longer holds the property
		if !b.Status.CanTransitionTo(database.BookingCancelled) {
			return nil
		}
		var p database.Property
		if err := lock(tx, &p, b.PropertyID); err != nil {
			return dbError("load property", err)
		}
		if err := s.cancelTx(ctx, tx, b, &p, "Payment refunded"); err != nil {
			return err
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   p.OwnerID,
			Type:     "booking_cancelled",
			Title:    "Booking cancelled",
			Message:  fmt.Sprintf("A booking for %q was cancelled after its payment was refunded.", p.Title),
			Related:  related(database.ResourceBooking, b.ID),
			Priority: database.PriorityHigh,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return pay, nil
}

// FailRefund records that the gateway could not refund. The refund may be
// initiated again.
func (s *PaymentService) FailRefund(ctx context.Context, paymentID uuid.UUID, reason string) (*database.Payment, error) {
	var pay database.Payment
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &pay, paymentID); err != nil {
			return dbError("load payment", err)
		}
		if !pay.Refund.Status.CanTransitionTo(database.RefundFailed) {
			return transition("refund", pay.Refund.Status, database.RefundFailed)
		}
		pay.Refund.Status = database.RefundFailed
		if r := strings.TrimSpace(reason); r != "" {
			pay.Refund.Reason = r
		}
		if err := tx.Model(&pay).Select("refund_status", "refund_reason").Updates(&pay).Error; err != nil {
			return dbError("fail refund", err)
		}
		return s.audit(ctx, tx, "Refund", pay.ID, "status", string(database.RefundInitiated), string(database.RefundFailed))
	})
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*database.Payment, error) {
	var pay database.Payment
	if err := s.db.WithContext(ctx).First(&pay, "id = ?", id).Error; err != nil {
		return nil, dbError("load payment", err)
	}
	return &pay, nil
}

// ListForBooking returns every payment attempt of a booking, oldest first
func (s *PaymentService) ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]database.Payment, error) {
	var out []database.Payment
	if err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at").Find(&out).Error; err != nil {
		return nil, dbError("list payments", err)
	}
	return out, nil
}
