package database

import (
	"github.com/go-playground/validator/v10"

	"rentease/validation"
)

func init() {
	validation.RegisterStructRule(propertyRules, Property{})
	validation.RegisterStructRule(bookingRules, Booking{})
	validation.RegisterStructRule(paymentRules, Payment{})
	validation.RegisterStructRule(notificationRules, Notification{})
	validation.RegisterStructRule(messageRules, Message{})
}

func propertyRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(Property)
	if p.PropertyType != PropertyTypeSharedRoom && p.Bedrooms == nil {
		sl.ReportError(p.Bedrooms, "bedrooms", "Bedrooms", "required", "")
	}
	if p.AvailableTo != nil && !p.AvailableFrom.IsZero() && !p.AvailableTo.After(p.AvailableFrom) {
		sl.ReportError(p.AvailableTo, "available_to", "AvailableTo", "after", "")
	}
}

func bookingRules(sl validator.StructLevel) {
	b := sl.Current().Interface().(Booking)
	if b.CheckInDate.IsZero() || b.CheckOutDate.IsZero() {
		return
	}
	if !b.CheckOutDate.After(b.CheckInDate) {
		sl.ReportError(b.CheckOutDate, "check_out_date", "CheckOutDate", "after", "")
		return
	}
	if b.NumberOfNights >= 1 && b.NumberOfNights != b.DurationDays() {
		sl.ReportError(b.NumberOfNights, "number_of_nights", "NumberOfNights", "stay", "")
	}
}

func paymentRules(sl validator.StructLevel) {
	p := sl.Current().Interface().(Payment)
	if p.Refund.Amount > p.Amount {
		sl.ReportError(p.Refund.Amount, "refund.amount", "Amount", "lte_amount", "")
	}
	if p.Status == PaymentRefunded && p.Refund.Status != RefundCompleted {
		sl.ReportError(p.Status, "status", "Status", "refund", "")
	}
}

func notificationRules(sl validator.StructLevel) {
	n := sl.Current().Interface().(Notification)
	if (n.Related.Type == "") != (n.Related.ID == nil) {
		sl.ReportError(n.Related.ID, "related_resource.id", "ID", "pair", "")
	}
}

func messageRules(sl validator.StructLevel) {
	m := sl.Current().Interface().(Message)
	if m.Content == "" && len(m.Attachments) == 0 {
		sl.ReportError(m.Content, "content", "Content", "body", "")
	}
	if m.SenderID == m.RecipientID {
		sl.ReportError(m.RecipientID, "recipient_id", "RecipientID", "ne_sender", "")
	}
}
