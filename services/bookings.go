package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentease/database"
	"rentease/validation"
)

// daysPerMonth spreads a monthly rent over a stay
const daysPerMonth = 30

type BookingService struct {
	*core
	platformFee float64
}

type CreateBookingInput struct {
	PropertyID   uuid.UUID
	CheckInDate  time.Time
	CheckOutDate time.Time
	// NumberOfNights is derived from the dates when zero
	NumberOfNights int
}

// BookingParties are the two users a booking connects
type BookingParties struct {
	TenantID uuid.UUID
	OwnerID  uuid.UUID
}

func (p BookingParties) Includes(id uuid.UUID) bool {
	return id == p.TenantID || id == p.OwnerID
}

// monthlyRent normalizes a listing price to a monthly figure. One-time
// prices have no monthly rent.
func monthlyRent(price database.Price) float64 {
	switch price.Period {
	case database.PricePerYear:
		return round2(price.Amount / 12)
	case database.PriceOneTime:
		return 0
	}
	return price.Amount
}

// priceBooking fills the charge fields of b from the listing
func (s *BookingService) priceBooking(b *database.Booking, p *database.Property) {
	b.MonthlyRent = monthlyRent(p.Price)
	if p.Price.Period == database.PriceOneTime {
		b.RentAmount = p.Price.Amount
	} else {
		b.RentAmount = round2(b.MonthlyRent / daysPerMonth * float64(b.NumberOfNights))
	}
	b.SecurityDeposit = p.SecurityDeposit
	b.PlatformFee = round2(b.RentAmount * s.platformFee / 100)
	b.TotalAmount = round2(b.RentAmount + b.SecurityDeposit + b.PlatformFee)
}

// overlapping counts confirmed or ongoing bookings of the property that
// intersect [in, out), ignoring exclude.
func overlapping(tx *gorm.DB, propertyID uuid.UUID, in, out time.Time, exclude *uuid.UUID) (int64, error) {
	q := tx.Model(&database.Booking{}).
		Where("property_id = ? AND status IN ?", propertyID, []database.BookingStatus{database.BookingConfirmed, database.BookingOngoing}).
		Where("check_in_date < ? AND check_out_date > ?", out, in)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, dbError("check overlap", err)
	}
	return n, nil
}

// Create books a property for tenantID. The booking starts pending and unpaid.
func (s *BookingService) Create(ctx context.Context, tenantID uuid.UUID, in CreateBookingInput) (*database.Booking, error) {
	b := database.Booking{
		Base:           database.Base{ID: uuid.New()},
		PropertyID:     in.PropertyID,
		TenantID:       tenantID,
		CheckInDate:    in.CheckInDate.UTC(),
		CheckOutDate:   in.CheckOutDate.UTC(),
		NumberOfNights: in.NumberOfNights,
		Status:         database.BookingPending,
		PaymentStatus:  database.BookingUnpaid,
	}
	if b.NumberOfNights == 0 {
		b.NumberOfNights = b.DurationDays()
	}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		tenant, err := loadUser(tx, tenantID)
		if err != nil {
			return err
		}
		if !tenant.IsActive {
			return ErrAccountInactive
		}
		if tenant.Role != database.RoleTenant {
			return fmt.Errorf("create booking: %w", ErrForbidden)
		}

		var p database.Property
		if err := lock(tx, &p, in.PropertyID); err != nil {
			return dbError("load property", err)
		}
		if p.OwnerID == tenantID {
			return invariant("booking_own_property", "Owners cannot book their own property")
		}
		if p.Status != database.PropertyAvailable {
			return invariant("property_unavailable", fmt.Sprintf("Property is %s", p.Status))
		}

		s.priceBooking(&b, &p)
		if err := validation.Struct(&b); err != nil {
			return err
		}

		if b.CheckInDate.Before(startOfDay(p.AvailableFrom)) || (p.AvailableTo != nil && b.CheckOutDate.After(*p.AvailableTo)) {
			return invariant("outside_availability", "Requested dates fall outside the property's availability")
		}
		n, err := overlapping(tx, p.ID, b.CheckInDate, b.CheckOutDate, nil)
		if err != nil {
			return err
		}
		if n > 0 {
			return invariant("booking_overlap", "Property is already booked for these dates")
		}

		if err := tx.Create(&b).Error; err != nil {
			return dbError("create booking", err)
		}
		if _, err := s.notify(tx, NotificationInput{
			UserID:   p.OwnerID,
			Type:     "booking_requested",
			Title:    "New booking request",
			Message:  fmt.Sprintf("%s requested %q from %s to %s.", tenant.FullName(), p.Title, b.CheckInDate.Format("02 Jan 2006"), b.CheckOutDate.Format("02 Jan 2006")),
			Related:  related(database.ResourceBooking, b.ID),
			Channels: []database.Channel{database.ChannelEmail},
			Priority: database.PriorityHigh,
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, "Booking", b.ID, "create", "", string(b.Status))
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*database.Booking, error) {
	var b database.Booking
	if err := s.db.WithContext(ctx).Preload("Property").First(&b, "id = ?", id).Error; err != nil {
		return nil, dbError("load booking", err)
	}
	return &b, nil
}

// ListForTenant returns the tenant's bookings, newest first
func (s *BookingService) ListForTenant(ctx context.Context, tenantID uuid.UUID, page Page) ([]database.Booking, error) {
	var out []database.Booking
	q := s.db.WithContext(ctx).Preload("Property").Where("tenant_id = ?", tenantID).Order("created_at DESC")
	if err := page.apply(q).Find(&out).Error; err != nil {
		return nil, dbError("list bookings", err)
	}
	return out, nil
}

// ListForProperty returns the property's bookings ordered by check-in
func (s *BookingService) ListForProperty(ctx context.Context, propertyID uuid.UUID, status database.BookingStatus, page Page) ([]database.Booking, error) {
	q := s.db.WithContext(ctx).Preload("Tenant").Where("property_id = ?", propertyID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []database.Booking
	if err := page.apply(q.Order("check_in_date")).Find(&out).Error; err != nil {
		return nil, dbError("list bookings", err)
	}
	return out, nil
}

func parties(tx *gorm.DB, bookingID uuid.UUID) (BookingParties, error) {
	var p BookingParties
	err := tx.Model(&database.Booking{}).
		Select("bookings.tenant_id AS tenant_id, properties.owner_id AS owner_id").
		Joins("JOIN properties ON properties.id = bookings.property_id").
		Where("bookings.id = ?", bookingID).
		Take(&p).Error
	if err != nil {
		return BookingParties{}, dbError("load booking parties", err)
	}
	return p, nil
}

// Parties returns the tenant and owner a booking connects
func (s *BookingService) Parties(ctx context.Context, bookingID uuid.UUID) (BookingParties, error) {
	return parties(s.db.WithContext(ctx), bookingID)
}

// lockBooking loads and locks a booking and its property
func lockBooking(tx *gorm.DB, id uuid.UUID) (*database.Booking, *database.Property, error) {
	var b database.Booking
	if err := lock(tx, &b, id); err != nil {
		return nil, nil, dbError("load booking", err)
	}
	var p database.Property
	if err := lock(tx, &p, b.PropertyID); err != nil {
		return nil, nil, dbError("load property", err)
	}
	return &b, &p, nil
}

// manageBooking loads a booking for an action only the property owner or an
// admin may take.
func manageBooking(tx *gorm.DB, actorID, id uuid.UUID) (*database.Booking, *database.Property, error) {
	b, p, err := lockBooking(tx, id)
	if err != nil {
		return nil, nil, err
	}
	ok, err := canManage(tx, actorID, p)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrForbidden
	}
	return b, p, nil
}

// setStatus moves b to next and records the transition
func (c *core) setStatus(ctx context.Context, tx *gorm.DB, b *database.Booking, next database.BookingStatus, fields map[string]interface{}) error {
	if !b.Status.CanTransitionTo(next) {
		return transition("booking", b.Status, next)
	}
	from := b.Status
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = next
	if err := tx.Model(b).Updates(fields).Error; err != nil {
		return dbError("update booking", err)
	}
	b.Status = next
	return c.audit(ctx, tx, "Booking", b.ID, "status", string(from), string(next))
}

// confirmTx confirms a paid booking, marks the property Booked and tells the tenant
func (c *core) confirmTx(ctx context.Context, tx *gorm.DB, b *database.Booking, p *database.Property) error {
	if !b.Status.CanTransitionTo(database.BookingConfirmed) {
		return transition("booking", b.Status, database.BookingConfirmed)
	}
	if b.PaymentStatus != database.BookingPaid {
		return invariant("booking_unpaid", "A booking can be confirmed only after payment")
	}
	n, err := overlapping(tx, b.PropertyID, b.CheckInDate, b.CheckOutDate, &b.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return invariant("booking_overlap", "Property is already booked for these dates")
	}

	now := c.now()
	if err := c.setStatus(ctx, tx, b, database.BookingConfirmed, map[string]interface{}{"confirmed_at": now}); err != nil {
		return err
	}
	b.ConfirmedAt = &now

	err = tx.Model(p).Updates(map[string]interface{}{
		"status":   database.PropertyBooked,
		"bookings": gorm.Expr("bookings + ?", 1),
	}).Error
	if err != nil {
		return dbError("mark property booked", err)
	}
	if p.Status != database.PropertyBooked {
		if err := c.audit(ctx, tx, "Property", p.ID, "status", string(p.Status), string(database.PropertyBooked)); err != nil {
			return err
		}
		p.Status = database.PropertyBooked
	}

	_, err = c.notify(tx, NotificationInput{
		UserID:   b.TenantID,
		Type:     "booking_confirmed",
		Title:    "Booking confirmed",
		Message:  fmt.Sprintf("Your booking for %q is confirmed.", p.Title),
		Related:  related(database.ResourceBooking, b.ID),
		Channels: []database.Channel{database.ChannelEmail, database.ChannelSMS},
		Priority: database.PriorityHigh,
	})
	return err
}

// Confirm accepts a paid booking on behalf of the property owner
func (s *BookingService) Confirm(ctx context.Context, actorID, id uuid.UUID) (*database.Booking, error) {
	var b *database.Booking
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var p *database.Property
		var err error
		if b, p, err = manageBooking(tx, actorID, id); err != nil {
			return err
		}
		return s.confirmTx(ctx, tx, b, p)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CheckIn starts a confirmed stay. It is refused before the check-in day.
func (s *BookingService) CheckIn(ctx context.Context, actorID, id uuid.UUID) (*database.Booking, error) {
	var b *database.Booking
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		if b, _, err = manageBooking(tx, actorID, id); err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(database.BookingOngoing) {
			return transition("booking", b.Status, database.BookingOngoing)
		}
		if b.PaymentStatus != database.BookingPaid {
			return invariant("booking_unpaid", "Check-in requires a paid booking")
		}
		var refunding int64
		err = tx.Model(&database.Payment{}).
			Where("booking_id = ? AND refund_status = ?", b.ID, database.RefundInitiated).
			Count(&refunding).Error
		if err != nil {
			return dbError("check refunds", err)
		}
		if refunding > 0 {
			return invariant("refund_pending", "Check-in is not possible while a refund is in progress")
		}
		now := s.now()
		if now.Before(startOfDay(b.CheckInDate)) {
			return invariant("check_in_early", "Check-in is not possible before the check-in date")
		}
		if err := s.setStatus(ctx, tx, b, database.BookingOngoing, map[string]interface{}{"check_in_at": now}); err != nil {
			return err
		}
		b.CheckInAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Complete ends an ongoing stay and frees the property
func (s *BookingService) Complete(ctx context.Context, actorID, id uuid.UUID) (*database.Booking, error) {
	var b *database.Booking
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var p *database.Property
		var err error
		if b, p, err = manageBooking(tx, actorID, id); err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(database.BookingCompleted) {
			return transition("booking", b.Status, database.BookingCompleted)
		}

		var settled int64
		err = tx.Model(&database.Payment{}).
			Where("booking_id = ? AND status IN ?", b.ID, []database.PaymentStatus{database.PaymentCompleted, database.PaymentRefunded}).
			Count(&settled).Error
		if err != nil {
			return dbError("check payment", err)
		}
		if settled == 0 {
			return invariant("booking_unsettled", "A booking cannot complete without a completed payment")
		}

		now := s.now()
		if err := s.setStatus(ctx, tx, b, database.BookingCompleted, map[string]interface{}{"completed_at": now}); err != nil {
			return err
		}
		b.CompletedAt = &now

		if err := s.release(ctx, tx, p); err != nil {
			return err
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   b.TenantID,
			Type:     "booking_completed",
			Title:    "Stay completed",
			Message:  fmt.Sprintf("Your stay at %q is complete. Tell others how it went.", p.Title),
			Related:  related(database.ResourceBooking, b.ID),
			Priority: database.PriorityLow,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// release returns a Booked property to Available
func (c *core) release(ctx context.Context, tx *gorm.DB, p *database.Property) error {
	if p.Status != database.PropertyBooked {
		return nil
	}
	if err := tx.Model(p).Update("status", database.PropertyAvailable).Error; err != nil {
		return dbError("release property", err)
	}
	p.Status = database.PropertyAvailable
	return c.audit(ctx, tx, "Property", p.ID, "status", string(database.PropertyBooked), string(database.PropertyAvailable))
}

// cancelTx cancels b and frees p when b was holding it
func (c *core) cancelTx(ctx context.Context, tx *gorm.DB, b *database.Booking, p *database.Property, reason string) error {
	wasConfirmed := b.Status == database.BookingConfirmed
	now := c.now()
	reason = strings.TrimSpace(reason)
	err := c.setStatus(ctx, tx, b, database.BookingCancelled, map[string]interface{}{
		"cancelled_at":        now,
		"cancellation_reason": reason,
	})
	if err != nil {
		return err
	}
	b.CancelledAt, b.CancellationReason = &now, reason

	if wasConfirmed {
		return c.release(ctx, tx, p)
	}
	return nil
}

// Cancel cancels a pending or confirmed booking. Either party or an admin may cancel.
func (s *BookingService) Cancel(ctx context.Context, actorID, id uuid.UUID, reason string) (*database.Booking, error) {
	var b *database.Booking
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var p *database.Property
		var err error
		if b, p, err = lockBooking(tx, id); err != nil {
			return err
		}
		if actorID != b.TenantID {
			ok, err := canManage(tx, actorID, p)
			if err != nil {
				return err
			}
			if !ok {
				return ErrForbidden
			}
		}
		if !b.Status.CanTransitionTo(database.BookingCancelled) {
			return transition("booking", b.Status, database.BookingCancelled)
		}

		if err := s.cancelTx(ctx, tx, b, p, reason); err != nil {
			return err
		}

		notifyID := p.OwnerID
		if actorID == p.OwnerID {
			notifyID = b.TenantID
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   notifyID,
			Type:     "booking_cancelled",
			Title:    "Booking cancelled",
			Message:  fmt.Sprintf("The booking for %q was cancelled.", p.Title),
			Related:  related(database.ResourceBooking, b.ID),
			Channels: []database.Channel{database.ChannelEmail},
			Priority: database.PriorityHigh,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ChargesUpdate adjusts the money fields of an unpaid booking; nil means unchanged
type ChargesUpdate struct {
	MonthlyRent     *float64
	SecurityDeposit *float64
	PlatformFee     *float64
}

// UpdateCharges changes the charges of an open, unpaid booking and
// recomputes its totals.
func (s *BookingService) UpdateCharges(ctx context.Context, actorID, id uuid.UUID, upd ChargesUpdate) (*database.Booking, error) {
	var b *database.Booking
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		if b, _, err = manageBooking(tx, actorID, id); err != nil {
			return err
		}
		if b.Status.IsTerminal() {
			return invariant("booking_closed", fmt.Sprintf("Charges of a %s booking cannot change", b.Status))
		}
		if b.PaymentStatus != database.BookingUnpaid {
			return invariant("booking_paid", "Charges cannot change once the booking is paid")
		}

		if upd.MonthlyRent != nil {
			b.MonthlyRent = *upd.MonthlyRent
			b.RentAmount = round2(b.MonthlyRent / daysPerMonth * float64(b.NumberOfNights))
		}
		if upd.SecurityDeposit != nil {
			b.SecurityDeposit = *upd.SecurityDeposit
		}
		if upd.PlatformFee != nil {
			b.PlatformFee = *upd.PlatformFee
		}
		b.TotalAmount = round2(b.RentAmount + b.SecurityDeposit + b.PlatformFee)
		if err := validation.Struct(b); err != nil {
			return err
		}

		err = tx.Model(b).Select("monthly_rent", "rent_amount", "security_deposit", "platform_fee", "total_amount").Updates(b).Error
		if err != nil {
			return dbError("update charges", err)
		}
		return s.audit(ctx, tx, "Booking", b.ID, "charges", "", fmt.Sprintf("%.2f", b.TotalAmount))
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
