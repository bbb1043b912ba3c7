package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingTransitions(t *testing.T) {
	allowed := map[BookingStatus][]BookingStatus{
		BookingPending:   {BookingConfirmed, BookingCancelled},
		BookingConfirmed: {BookingOngoing, BookingCancelled},
		BookingOngoing:   {BookingCompleted},
	}
	all := []BookingStatus{BookingPending, BookingConfirmed, BookingOngoing, BookingCompleted, BookingCancelled}

	for _, from := range all {
		for _, to := range all {
			want := contains(allowed[from], to)
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, BookingCompleted.IsTerminal())
	assert.True(t, BookingCancelled.IsTerminal())
	assert.False(t, BookingOngoing.IsTerminal())
}

func TestPaymentAndRefundTransitions(t *testing.T) {
	assert.True(t, PaymentPending.CanTransitionTo(PaymentCompleted))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentFailed))
	assert.True(t, PaymentFailed.CanTransitionTo(PaymentPending))
	assert.True(t, PaymentCompleted.CanTransitionTo(PaymentRefunded))
	assert.False(t, PaymentPending.CanTransitionTo(PaymentRefunded))
	assert.False(t, PaymentRefunded.CanTransitionTo(PaymentPending))

	assert.True(t, RefundNone.CanTransitionTo(RefundInitiated))
	assert.True(t, RefundFailed.CanTransitionTo(RefundInitiated))
	assert.False(t, RefundNone.CanTransitionTo(RefundCompleted))
	assert.False(t, RefundCompleted.CanTransitionTo(RefundInitiated))

	assert.True(t, BookingUnpaid.CanTransitionTo(BookingPaid))
	assert.False(t, BookingUnpaid.CanTransitionTo(BookingRefunded))
}

func TestEnumValid(t *testing.T) {
	assert.True(t, PropertyTypeSharedRoom.Valid())
	assert.False(t, PropertyType("Castle").Valid())
	assert.True(t, Amenity("Power Backup").Valid())
	assert.False(t, Amenity("power backup").Valid())
	assert.True(t, ResourceReview.Valid())
	assert.False(t, ResourceType("Order").Valid())
	assert.False(t, Channel("fax").Valid())
}
