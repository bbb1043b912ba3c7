package database

// Role is the account type of a User
type Role string

const (
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleTenant, RoleAdmin:
		return true
	}
	return false
}

// PropertyType is the kind of listing
type PropertyType string

const (
	PropertyTypePG               PropertyType = "PG"
	PropertyType1BHK             PropertyType = "1BHK"
	PropertyType2BHK             PropertyType = "2BHK"
	PropertyType3BHK             PropertyType = "3BHK"
	PropertyTypeVilla            PropertyType = "Villa"
	PropertyTypeStudio           PropertyType = "Studio"
	PropertyTypeSharedRoom       PropertyType = "Shared Room"
	PropertyTypeIndependentHouse PropertyType = "Independent House"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypePG, PropertyType1BHK, PropertyType2BHK, PropertyType3BHK,
		PropertyTypeVilla, PropertyTypeStudio, PropertyTypeSharedRoom, PropertyTypeIndependentHouse:
		return true
	}
	return false
}

type FurnishingStatus string

const (
	FullyFurnished FurnishingStatus = "Fully Furnished"
	SemiFurnished  FurnishingStatus = "Semi Furnished"
	Unfurnished    FurnishingStatus = "Unfurnished"
)

func (f FurnishingStatus) Valid() bool {
	return f == FullyFurnished || f == SemiFurnished || f == Unfurnished
}

type AreaUnit string

const (
	AreaUnitSqft AreaUnit = "sqft"
	AreaUnitSqm  AreaUnit = "sqm"
)

func (u AreaUnit) Valid() bool {
	return u == AreaUnitSqft || u == AreaUnitSqm
}

// PricePeriod is the billing frequency of a listing price
type PricePeriod string

const (
	PricePerMonth PricePeriod = "month"
	PricePerYear  PricePeriod = "year"
	PriceOneTime  PricePeriod = "one-time"
)

func (p PricePeriod) Valid() bool {
	return p == PricePerMonth || p == PricePerYear || p == PriceOneTime
}

// PropertyStatus is the availability of a listing
type PropertyStatus string

const (
	PropertyAvailable   PropertyStatus = "Available"
	PropertyBooked      PropertyStatus = "Booked"
	PropertyMaintenance PropertyStatus = "Maintenance"
	PropertySold        PropertyStatus = "Sold"
	PropertyInactive    PropertyStatus = "Inactive"
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyAvailable, PropertyBooked, PropertyMaintenance, PropertySold, PropertyInactive:
		return true
	}
	return false
}

type FoodType string

const (
	FoodVeg    FoodType = "Veg"
	FoodNonVeg FoodType = "Non-Veg"
	FoodBoth   FoodType = "Both"
)

func (f FoodType) Valid() bool {
	return f == FoodVeg || f == FoodNonVeg || f == FoodBoth
}

type PreferredTenant string

const (
	TenantBoys  PreferredTenant = "Boys"
	TenantGirls PreferredTenant = "Girls"
	TenantBoth  PreferredTenant = "Both"
)

func (p PreferredTenant) Valid() bool {
	return p == TenantBoys || p == TenantGirls || p == TenantBoth
}

// Amenity is one entry of the fixed amenity catalogue
type Amenity string

var amenities = map[Amenity]bool{
	"WiFi": true, "Parking": true, "Lift": true, "Power Backup": true, "Security Guard": true, "CCTV": true,
	"Kitchen": true, "Modular Kitchen": true, "Gas Pipeline": true, "Refrigerator": true, "Microwave": true,
	"AC": true, "Heating": true, "Geyser": true, "Washing Machine": true, "TV": true, "Sofa": true, "Bed": true, "Wardrobe": true,
	"Garden": true, "Swimming Pool": true, "Gym": true, "Club House": true, "Kids Play Area": true,
	"Water Supply": true, "Waste Disposal": true, "Housekeeping": true, "Laundry": true,
	"Pet Friendly": true, "Visitor Parking": true, "Intercom": true, "Fire Safety": true,
}

func (a Amenity) Valid() bool {
	return amenities[a]
}

// BookingStatus is the lifecycle state of a Booking
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingOngoing   BookingStatus = "ongoing"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingOngoing, BookingCancelled},
	BookingOngoing:   {BookingCompleted},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingOngoing, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return contains(bookingTransitions[s], next)
}

// IsTerminal reports whether the booking can no longer change
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// BookingPaymentStatus is the settlement state recorded on a Booking
type BookingPaymentStatus string

const (
	BookingUnpaid   BookingPaymentStatus = "unpaid"
	BookingPaid     BookingPaymentStatus = "paid"
	BookingRefunded BookingPaymentStatus = "refunded"
)

var bookingPaymentTransitions = map[BookingPaymentStatus][]BookingPaymentStatus{
	BookingUnpaid: {BookingPaid},
	BookingPaid:   {BookingRefunded},
}

func (s BookingPaymentStatus) Valid() bool {
	return s == BookingUnpaid || s == BookingPaid || s == BookingRefunded
}

func (s BookingPaymentStatus) CanTransitionTo(next BookingPaymentStatus) bool {
	return contains(bookingPaymentTransitions[s], next)
}

type PaymentMethod string

const (
	MethodCard       PaymentMethod = "card"
	MethodNetbanking PaymentMethod = "netbanking"
	MethodUPI        PaymentMethod = "upi"
	MethodWallet     PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodNetbanking, MethodUPI, MethodWallet:
		return true
	}
	return false
}

// PaymentStatus is the lifecycle state of a Payment
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentFailed:    {PaymentPending},
	PaymentCompleted: {PaymentRefunded},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return contains(paymentTransitions[s], next)
}

// Settled reports whether the payment was captured at some point
func (s PaymentStatus) Settled() bool {
	return s == PaymentCompleted || s == PaymentRefunded
}

// RefundStatus is the state of the refund nested in a Payment
type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundInitiated RefundStatus = "initiated"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundNone:      {RefundInitiated},
	RefundInitiated: {RefundCompleted, RefundFailed},
	RefundFailed:    {RefundInitiated},
}

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundNone, RefundInitiated, RefundCompleted, RefundFailed:
		return true
	}
	return false
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	return contains(refundTransitions[s], next)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Channel is a notification delivery channel
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// ResourceType tags the entity a notification points at
type ResourceType string

const (
	ResourceBooking  ResourceType = "Booking"
	ResourceProperty ResourceType = "Property"
	ResourcePayment  ResourceType = "Payment"
	ResourceReview   ResourceType = "Review"
	ResourceMessage  ResourceType = "Message"
	ResourceUser     ResourceType = "User"
)

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceBooking, ResourceProperty, ResourcePayment, ResourceReview, ResourceMessage, ResourceUser:
		return true
	}
	return false
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageImage || t == MessageFile
}

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentVideo AttachmentType = "video"
)

func (t AttachmentType) Valid() bool {
	return t == AttachmentImage || t == AttachmentFile || t == AttachmentVideo
}

// AnalyticsPeriod is the width of an analytics bucket
type AnalyticsPeriod string

const (
	PeriodDaily   AnalyticsPeriod = "daily"
	PeriodWeekly  AnalyticsPeriod = "weekly"
	PeriodMonthly AnalyticsPeriod = "monthly"
)

func (p AnalyticsPeriod) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
