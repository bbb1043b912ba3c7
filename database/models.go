package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"rentease/validation"
)

const (
	DefaultAvatarURL = "https://res.cloudinary.com/demo/image/upload/default-avatar.png"
	DefaultCountry   = "India"
	DefaultCurrency  = "INR"
)

// Base carries the identity and timestamps shared by every top-level entity.
// IDs are assigned by the service write path, never by the database.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Media is an uploaded asset reference supplied by the media store
type Media struct {
	URL      string `gorm:"size:500" json:"url"`
	PublicID string `gorm:"size:255" json:"public_id,omitempty"`
}

// OTP is a one-time code digest and its expiry
type OTP struct {
	CodeHash  string     `gorm:"size:64" json:"-"`
	ExpiresAt *time.Time `json:"-"`
}

type UserAddress struct {
	Street  string `gorm:"size:255" json:"street,omitempty"`
	City    string `gorm:"size:100" json:"city,omitempty"`
	State   string `gorm:"size:100" json:"state,omitempty"`
	Pincode string `gorm:"size:6" json:"pincode,omitempty" validate:"omitempty,pincode"`
	Country string `gorm:"size:100" json:"country"`
}

// User represents an account on the marketplace
type User struct {
	Base
	Firstname            string      `gorm:"size:20;not null" json:"firstname" validate:"required,min=2,max=20,alphaspace"`
	Lastname             string      `gorm:"size:20;not null" json:"lastname" validate:"required,min=2,max=20,alphaspace"`
	Email                string      `gorm:"size:255;not null;uniqueIndex" json:"email" validate:"required,emailaddr"`
	Phone                string      `gorm:"size:10;not null;uniqueIndex" json:"phone" validate:"required,inphone"`
	PasswordHash         string      `gorm:"not null" json:"-"`
	Role                 Role        `gorm:"size:10;not null" json:"role" validate:"required,enum"`
	Avatar               Media       `gorm:"embedded;embeddedPrefix:avatar_" json:"avatar"`
	IsEmailVerified      bool        `json:"is_email_verified"`
	IsPhoneVerified      bool        `json:"is_phone_verified"`
	IsProfileComplete    bool        `json:"is_profile_complete"`
	EmailOTP             OTP         `gorm:"embedded;embeddedPrefix:email_otp_" json:"-"`
	PhoneOTP             OTP         `gorm:"embedded;embeddedPrefix:phone_otp_" json:"-"`
	PasswordResetToken   string      `gorm:"size:64;index" json:"-"`
	PasswordResetExpires *time.Time  `json:"-"`
	GoogleID             string      `gorm:"size:64" json:"google_id,omitempty"`
	FacebookID           string      `gorm:"size:64" json:"facebook_id,omitempty"`
	Address              UserAddress `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	IsActive             bool        `json:"is_active"`
	LastLogin            *time.Time  `json:"last_login,omitempty"`
}

func (User) ValidationMessages() validation.Messages {
	return validation.Messages{
		"firstname:required":   "Firstname is required",
		"lastname:required":    "Lastname is required",
		"firstname:min":        "Name must be at least 2 characters",
		"lastname:min":         "Name must be at least 2 characters",
		"firstname:max":        "Name cannot exceed 20 characters",
		"lastname:max":         "Name cannot exceed 20 characters",
		"firstname:alphaspace": "Name can only contain letters and spaces",
		"lastname:alphaspace":  "Name can only contain letters and spaces",
		"email:required":       "Email is required",
		"email:emailaddr":      "Please provide a valid email address",
		"phone:required":       "Phone is required",
		"phone:inphone":        "Please provide a valid 10 digit phone number",
		"role:enum":            "Role must be one of owner, tenant or admin",
		"address.pincode":      "Pincode must be 6 digits",
	}
}

// FullName joins first and last name
func (u User) FullName() string {
	return u.Firstname + " " + u.Lastname
}

type PropertyAddress struct {
	Street   string `gorm:"size:255" json:"street" validate:"required"`
	Locality string `gorm:"size:255" json:"locality" validate:"required"`
	City     string `gorm:"size:100" json:"city" validate:"required"`
	State    string `gorm:"size:100" json:"state" validate:"required"`
	Pincode  string `gorm:"size:6" json:"pincode" validate:"required,pincode"`
	Country  string `gorm:"size:100" json:"country"`
	Landmark string `gorm:"size:255" json:"landmark,omitempty"`
}

// PropertyImage is one picture of a listing, ordered by Order
type PropertyImage struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	PropertyID uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	URL        string    `gorm:"size:500;not null" json:"url" validate:"required"`
	PublicID   string    `gorm:"size:255;not null" json:"public_id" validate:"required"`
	Thumbnail  string    `gorm:"size:500" json:"thumbnail,omitempty"`
	Order      int       `gorm:"column:sort_order" json:"order"`
}

type Price struct {
	Amount   float64     `json:"amount" validate:"min=0"`
	Currency string      `gorm:"size:3" json:"currency"`
	Period   PricePeriod `gorm:"size:10" json:"period" validate:"required,enum"`
}

// GeoPoint is stored as two columns and serialized as a GeoJSON Point,
// coordinates in [longitude, latitude] order.
type GeoPoint struct {
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
}

func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Longitude: lon, Latitude: lat}
}

func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return geojson.NewGeometry(p.Point()).MarshalJSON()
}

func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return err
	}
	pt, ok := g.Geometry().(orb.Point)
	if !ok {
		return errors.New("location must be a GeoJSON Point")
	}
	p.Longitude, p.Latitude = pt.Lon(), pt.Lat()
	return nil
}

type PgDetails struct {
	FoodIncluded    bool            `json:"food_included"`
	FoodType        FoodType        `gorm:"size:10" json:"food_type,omitempty" validate:"omitempty,enum"`
	PreferredTenant PreferredTenant `gorm:"size:10" json:"preferred_tenant,omitempty" validate:"omitempty,enum"`
	NoticePeriod    int             `json:"notice_period" validate:"min=0"`
	SharedRoom      bool            `json:"shared_room"`
	Roommates       *int            `json:"roommates,omitempty" validate:"omitempty,min=0"`
}

type Rules struct {
	SmokingAllowed  bool   `json:"smoking_allowed"`
	PetsAllowed     bool   `json:"pets_allowed"`
	NonVegAllowed   *bool  `json:"non_veg_allowed"`
	GuestsAllowed   *bool  `json:"guests_allowed"`
	GateClosingTime string `gorm:"size:20" json:"gate_closing_time,omitempty"`
}

// Property represents a rental listing
type Property struct {
	Base
	OwnerID            uuid.UUID        `gorm:"type:uuid;not null" json:"owner_id" validate:"required"`
	Owner              *User            `gorm:"foreignKey:OwnerID" json:"owner,omitempty" validate:"-"`
	Title              string           `gorm:"size:100;not null" json:"title" validate:"required,min=5,max=100"`
	Description        string           `gorm:"type:text;not null" json:"description" validate:"required,min=20,max=2000"`
	Address            PropertyAddress  `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	PropertyType       PropertyType     `gorm:"size:20;not null" json:"property_type" validate:"required,enum"`
	Bedrooms           *int             `json:"bedrooms,omitempty" validate:"omitempty,min=0,max=20"`
	Bathrooms          int              `json:"bathrooms" validate:"required,min=1,max=10"`
	Balconies          int              `json:"balconies" validate:"min=0"`
	Images             []PropertyImage  `gorm:"foreignKey:PropertyID" json:"images" validate:"dive"`
	Floor              *int             `json:"floor,omitempty" validate:"omitempty,min=0"`
	TotalFloors        *int             `json:"total_floors,omitempty" validate:"omitempty,min=1"`
	FurnishingStatus   FurnishingStatus `gorm:"size:20;not null" json:"furnishing_status" validate:"required,enum"`
	TotalArea          float64          `json:"total_area" validate:"required,min=50,max=100000"`
	AreaUnit           AreaUnit         `gorm:"size:4" json:"area_unit" validate:"required,enum"`
	Amenities          []Amenity        `gorm:"serializer:json;type:text" json:"amenities" validate:"dive,enum"`
	Price              Price            `gorm:"embedded;embeddedPrefix:price_" json:"price"`
	SecurityDeposit    float64          `json:"security_deposit" validate:"min=0"`
	MaintenanceCharges float64          `json:"maintenance_charges" validate:"min=0"`
	Location           GeoPoint         `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	AvailableFrom      time.Time        `json:"available_from"`
	AvailableTo        *time.Time       `json:"available_to" validate:"required"`
	Status             PropertyStatus   `gorm:"size:12;not null;index" json:"status" validate:"required,enum"`
	PgDetails          PgDetails        `gorm:"embedded;embeddedPrefix:pg_" json:"pg_details"`
	Rules              Rules            `gorm:"embedded;embeddedPrefix:rule_" json:"rules"`
	Verified           bool             `json:"verified"`
	VerifiedBy         *uuid.UUID       `gorm:"type:uuid" json:"verified_by,omitempty"`
	VerifiedAt         *time.Time       `json:"verified_at,omitempty"`
	Slug               string           `gorm:"size:140;uniqueIndex" json:"slug"`
	AverageRating      float64          `json:"average_rating" validate:"min=0,max=5"`
	TotalReviews       int              `json:"total_reviews"`
	Views              int64            `json:"views"`
	Clicks             int64            `json:"clicks"`
	Inquiries          int64            `json:"inquiries"`
	Bookings           int64            `json:"bookings"`
}

func (Property) ValidationMessages() validation.Messages {
	return validation.Messages{
		"owner_id":                   "Property must have an owner",
		"title:required":             "Property title is required",
		"title:min":                  "Title must be at least 5 characters",
		"title:max":                  "Title cannot exceed 100 characters",
		"description:required":       "Property description is required",
		"description:min":            "Description must be at least 20 characters",
		"description:max":            "Description cannot exceed 2000 characters",
		"address.street":             "Street address is required",
		"address.locality":           "Locality is required",
		"address.city":               "City is required",
		"address.state":              "State is required",
		"address.pincode:required":   "Pincode is required",
		"address.pincode:pincode":    "Pincode must be 6 digits (India)",
		"property_type:required":     "Property type is required",
		"property_type:enum":         "Not a valid property type",
		"bedrooms:required":          "Number of bedrooms is required",
		"bedrooms:min":               "Bedrooms cannot be negative",
		"bedrooms:max":               "Bedrooms cannot exceed 20",
		"bathrooms:required":         "Number of bathrooms is required",
		"bathrooms:min":              "At least 1 bathroom is required",
		"bathrooms:max":              "Bathrooms cannot exceed 10",
		"balconies":                  "Balconies cannot be negative",
		"images.url":                 "Image URL is required",
		"images.public_id":           "Image public ID is required",
		"floor":                      "Floor cannot be negative (0 is ground floor)",
		"total_floors":               "Building must have at least 1 floor",
		"furnishing_status:required": "Furnishing status is required",
		"furnishing_status:enum":     "Not a valid furnishing status",
		"total_area:required":        "Property area is required",
		"total_area:min":             "Area must be at least 50 square feet",
		"total_area:max":             "Area cannot exceed 100000",
		"amenities":                  "Not a valid amenity",
		"price.amount":               "Price cannot be negative",
		"price.period":               "Not a valid price period",
		"security_deposit":           "Security deposit cannot be negative",
		"maintenance_charges":        "Maintenance charges cannot be negative",
		"location.longitude":         "Longitude must be between -180 and 180",
		"location.latitude":          "Latitude must be between -90 and 90",
		"available_to":               "Available-to date is required",
		"available_to:after":         "Available-to date must be after available-from date",
		"status":                     "Not a valid property status",
	}
}

// Booking represents a reservation of a Property by a tenant
type Booking struct {
	Base
	PropertyID         uuid.UUID            `gorm:"type:uuid;not null;index:idx_bookings_property_status,priority:1" json:"property_id" validate:"required"`
	Property           *Property            `gorm:"foreignKey:PropertyID" json:"property,omitempty" validate:"-"`
	TenantID           uuid.UUID            `gorm:"type:uuid;not null" json:"tenant_id" validate:"required"`
	Tenant             *User                `gorm:"foreignKey:TenantID" json:"tenant,omitempty" validate:"-"`
	CheckInDate        time.Time            `gorm:"not null" json:"check_in_date" validate:"required"`
	CheckOutDate       time.Time            `gorm:"not null" json:"check_out_date" validate:"required"`
	NumberOfNights     int                  `gorm:"not null" json:"number_of_nights" validate:"min=1"`
	MonthlyRent        float64              `json:"monthly_rent" validate:"min=0"`
	RentAmount         float64              `json:"rent_amount" validate:"min=0"`
	SecurityDeposit    float64              `json:"security_deposit" validate:"min=0"`
	PlatformFee        float64              `json:"platform_fee" validate:"min=0"`
	TotalAmount        float64              `json:"total_amount" validate:"min=0"`
	Status             BookingStatus        `gorm:"size:12;not null;index:idx_bookings_property_status,priority:2" json:"status" validate:"required,enum"`
	PaymentStatus      BookingPaymentStatus `gorm:"size:10;not null" json:"payment_status" validate:"required,enum"`
	ConfirmedAt        *time.Time           `json:"confirmed_at,omitempty"`
	CheckInAt          *time.Time           `json:"check_in_at,omitempty"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	CancelledAt        *time.Time           `json:"cancelled_at,omitempty"`
	CancellationReason string               `gorm:"size:500" json:"cancellation_reason,omitempty"`
}

func (Booking) ValidationMessages() validation.Messages {
	return validation.Messages{
		"property_id":             "Booking must be associated with a property",
		"tenant_id":               "Booking must have a tenant",
		"check_in_date":           "Check-in date is required",
		"check_out_date:required": "Check-out date is required",
		"check_out_date:after":    "Check-out date must be after check-in date",
		"number_of_nights:min":    "Number of nights must be at least 1",
		"number_of_nights:stay":   "Number of nights must match the stay length",
		"monthly_rent":            "Monthly rent cannot be negative",
		"rent_amount":             "Rent amount cannot be negative",
		"security_deposit":        "Security deposit cannot be negative",
		"platform_fee":            "Platform fee cannot be negative",
		"total_amount":            "Total amount cannot be negative",
		"status":                  "Not a valid booking status (pending, confirmed, ongoing, completed, cancelled)",
		"payment_status":          "Not a valid payment status (unpaid, paid, refunded)",
	}
}

type Refund struct {
	Amount      float64      `json:"amount" validate:"min=0"`
	Status      RefundStatus `gorm:"size:10" json:"status" validate:"required,enum"`
	RefundID    string       `gorm:"size:64" json:"refund_id,omitempty"`
	Reason      string       `gorm:"size:500" json:"reason,omitempty"`
	InitiatedAt *time.Time   `json:"initiated_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Payment represents money moved for a Booking through the gateway
type Payment struct {
	Base
	BookingID         uuid.UUID     `gorm:"type:uuid;not null;index:idx_payments_booking_status,priority:1" json:"booking_id" validate:"required"`
	Booking           *Booking      `gorm:"foreignKey:BookingID" json:"booking,omitempty" validate:"-"`
	UserID            uuid.UUID     `gorm:"type:uuid;not null" json:"user_id" validate:"required"`
	Amount            float64       `json:"amount" validate:"min=0"`
	Currency          string        `gorm:"size:3;not null" json:"currency" validate:"required,len=3"`
	RazorpayOrderID   string        `gorm:"size:64;not null;index" json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string        `gorm:"size:64" json:"razorpay_payment_id,omitempty"`
	Method            PaymentMethod `gorm:"size:12;not null" json:"method" validate:"required,enum"`
	Status            PaymentStatus `gorm:"size:10;not null;index:idx_payments_booking_status,priority:2" json:"status" validate:"required,enum"`
	FailureReason     string        `gorm:"size:500" json:"failure_reason,omitempty"`
	Refund            Refund        `gorm:"embedded;embeddedPrefix:refund_" json:"refund"`
	Tax               float64       `json:"tax" validate:"min=0"`
	GST               float64       `gorm:"column:gst" json:"gst" validate:"min=0"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

func (Payment) ValidationMessages() validation.Messages {
	return validation.Messages{
		"booking_id":               "Payment must be linked to a booking",
		"user_id":                  "Payment must be linked to a user",
		"amount":                   "Amount cannot be negative",
		"currency":                 "Currency must be a 3 letter ISO code",
		"razorpay_order_id":        "Razorpay order ID is required",
		"method:required":          "Payment method is required",
		"method:enum":              "Payment method must be one of card, netbanking, upi or wallet",
		"status":                   "Not a valid payment status (pending, completed, failed, refunded)",
		"refund.amount:min":        "Refund amount cannot be negative",
		"refund.amount:lte_amount": "Refund amount cannot exceed the payment amount",
		"refund.status":            "Not a valid refund status",
		"status:refund":            "A refunded payment needs a completed refund",
		"tax":                      "Tax cannot be negative",
		"gst":                      "GST cannot be negative",
	}
}

// RatingDetails holds optional sub-scores; 0 means not rated
type RatingDetails struct {
	Cleanliness   int `json:"cleanliness" validate:"omitempty,min=1,max=5"`
	Communication int `json:"communication" validate:"omitempty,min=1,max=5"`
	Amenities     int `json:"amenities" validate:"omitempty,min=1,max=5"`
	Value         int `json:"value" validate:"omitempty,min=1,max=5"`
}

type Photo struct {
	URL string `json:"url" validate:"required"`
}

type OwnerResponse struct {
	Comment     string     `gorm:"size:2000" json:"comment,omitempty" validate:"max=2000"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Review is a tenant's rating of a Property after a Booking
type Review struct {
	Base
	PropertyID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"property_id" validate:"required"`
	BookingID     uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"booking_id" validate:"required"`
	Booking       *Booking      `gorm:"foreignKey:BookingID" json:"booking,omitempty" validate:"-"`
	TenantID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"tenant_id" validate:"required"`
	OverallRating int           `gorm:"not null" json:"overall_rating" validate:"required,min=1,max=5"`
	RatingDetails RatingDetails `gorm:"embedded;embeddedPrefix:rating_" json:"rating_details"`
	Title         string        `gorm:"size:100" json:"title,omitempty" validate:"max=100"`
	Comment       string        `gorm:"size:2000" json:"comment,omitempty" validate:"max=2000"`
	Verified      bool          `json:"verified"`
	Helpful       int           `json:"helpful" validate:"min=0"`
	Unhelpful     int           `json:"unhelpful" validate:"min=0"`
	Photos        []Photo       `gorm:"serializer:json;type:text" json:"photos" validate:"dive"`
	OwnerResponse OwnerResponse `gorm:"embedded;embeddedPrefix:owner_response_" json:"owner_response"`
}

func (Review) ValidationMessages() validation.Messages {
	return validation.Messages{
		"property_id":                  "Review must belong to a property",
		"booking_id":                   "Review must be linked to a booking",
		"tenant_id":                    "Review must belong to a tenant",
		"overall_rating:required":      "Overall rating is required",
		"overall_rating:min":           "Minimum rating is 1",
		"overall_rating:max":           "Maximum rating is 5",
		"rating_details.cleanliness":   "Ratings must be between 1 and 5",
		"rating_details.communication": "Ratings must be between 1 and 5",
		"rating_details.amenities":     "Ratings must be between 1 and 5",
		"rating_details.value":         "Ratings must be between 1 and 5",
		"title":                        "Title cannot exceed 100 characters",
		"comment":                      "Comment cannot exceed 2000 characters",
		"helpful":                      "Helpful count cannot be negative",
		"unhelpful":                    "Unhelpful count cannot be negative",
		"photos.url":                   "Photo URL is required",
	}
}

// RelatedResource is a typed pointer to any other entity
type RelatedResource struct {
	Type ResourceType `gorm:"size:20" json:"type,omitempty" validate:"omitempty,enum"`
	ID   *uuid.UUID   `gorm:"type:uuid" json:"id,omitempty"`
}

// ChannelDelivery records delivery intent and outcome for one channel
type ChannelDelivery struct {
	Requested bool       `json:"requested"`
	Sent      bool       `json:"sent"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

type Channels struct {
	Email ChannelDelivery `gorm:"embedded;embeddedPrefix:email_" json:"email"`
	SMS   ChannelDelivery `gorm:"embedded;embeddedPrefix:sms_" json:"sms"`
	Push  ChannelDelivery `gorm:"embedded;embeddedPrefix:push_" json:"push"`
	InApp ChannelDelivery `gorm:"embedded;embeddedPrefix:in_app_" json:"in_app"`
}

// Delivery returns the record for c, or nil for an unknown channel
func (c *Channels) Delivery(ch Channel) *ChannelDelivery {
	switch ch {
	case ChannelEmail:
		return &c.Email
	case ChannelSMS:
		return &c.SMS
	case ChannelPush:
		return &c.Push
	case ChannelInApp:
		return &c.InApp
	}
	return nil
}

// Notification is a message addressed to one user
type Notification struct {
	Base
	UserID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id" validate:"required"`
	Type     string          `gorm:"size:50;not null;index" json:"type" validate:"required,max=50"`
	Title    string          `gorm:"size:150;not null" json:"title" validate:"required,max=150"`
	Message  string          `gorm:"size:2000;not null" json:"message" validate:"required,max=2000"`
	Related  RelatedResource `gorm:"embedded;embeddedPrefix:related_" json:"related_resource"`
	Channels Channels        `gorm:"embedded;embeddedPrefix:channel_" json:"channels"`
	IsRead   bool            `json:"read"`
	Priority Priority        `gorm:"size:6;not null" json:"priority" validate:"required,enum"`
}

func (Notification) ValidationMessages() validation.Messages {
	return validation.Messages{
		"user_id":                  "Notification must belong to a user",
		"type":                     "Notification type is required",
		"title:required":           "Notification title is required",
		"title:max":                "Title cannot exceed 150 characters",
		"message:required":         "Notification message is required",
		"message:max":              "Message cannot exceed 2000 characters",
		"related_resource.type":    "Not a valid resource type",
		"related_resource.id:pair": "Related resource needs both a type and an id",
		"priority":                 "Priority must be low, medium or high",
	}
}

type Attachment struct {
	Type AttachmentType `json:"type,omitempty" validate:"omitempty,enum"`
	URL  string         `json:"url" validate:"required"`
	Size int64          `json:"size,omitempty" validate:"min=0"`
}

// Message is one entry of the conversation attached to a Booking
type Message struct {
	Base
	BookingID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"booking_id" validate:"required"`
	Booking     *Booking     `gorm:"foreignKey:BookingID" json:"booking,omitempty" validate:"-"`
	SenderID    uuid.UUID    `gorm:"type:uuid;not null" json:"sender_id" validate:"required"`
	RecipientID uuid.UUID    `gorm:"type:uuid;not null" json:"recipient_id" validate:"required"`
	Content     string       `gorm:"type:text" json:"content,omitempty" validate:"max=5000"`
	Type        MessageType  `gorm:"size:5;not null" json:"type" validate:"required,enum"`
	Attachments []Attachment `gorm:"serializer:json;type:text" json:"attachments" validate:"dive"`
	IsRead      bool         `json:"read"`
	ReadAt      *time.Time   `json:"read_at,omitempty"`
}

func (Message) ValidationMessages() validation.Messages {
	return validation.Messages{
		"booking_id":             "Message must be linked to a booking",
		"sender_id":              "Message must have a sender",
		"recipient_id:required":  "Message must have a recipient",
		"recipient_id:ne_sender": "Sender and recipient must differ",
		"content:max":            "Message cannot exceed 5000 characters",
		"content:body":           "Message needs content or at least one attachment",
		"type":                   "Message type must be text, image or file",
		"attachments.url":        "Attachment URL is required",
		"attachments.type":       "Attachment type must be image, file or video",
		"attachments.size":       "Attachment size cannot be negative",
	}
}

type Metrics struct {
	Views      int64   `json:"views" validate:"min=0"`
	Clicks     int64   `json:"clicks" validate:"min=0"`
	Inquiries  int64   `json:"inquiries" validate:"min=0"`
	Bookings   int64   `json:"bookings" validate:"min=0"`
	Conversion float64 `json:"conversion" validate:"min=0"`
}

type Financial struct {
	Revenue    float64 `json:"revenue" validate:"min=0"`
	Commission float64 `json:"commission" validate:"min=0"`
	NetRevenue float64 `json:"net_revenue" validate:"min=0"`
}

type Occupancy struct {
	DaysBooked             int     `json:"days_booked" validate:"min=0"`
	DaysAvailable          int     `json:"days_available" validate:"min=0"`
	OccupancyRate          float64 `json:"occupancy_rate" validate:"min=0"`
	RevenuePerAvailableDay float64 `json:"revenue_per_available_day" validate:"min=0"`
}

// Analytics is one time bucket of engagement and revenue for a Property
type Analytics struct {
	Base
	PropertyID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_analytics_bucket,priority:1" json:"property_id" validate:"required"`
	Period     AnalyticsPeriod `gorm:"size:7;not null;uniqueIndex:idx_analytics_bucket,priority:2" json:"period" validate:"required,enum"`
	Date       time.Time       `gorm:"not null;uniqueIndex:idx_analytics_bucket,priority:3" json:"date" validate:"required"`
	Metrics    Metrics         `gorm:"embedded;embeddedPrefix:metrics_" json:"metrics"`
	Financial  Financial       `gorm:"embedded;embeddedPrefix:financial_" json:"financial"`
	Occupancy  Occupancy       `gorm:"embedded;embeddedPrefix:occupancy_" json:"occupancy"`
}

func (Analytics) TableName() string {
	return "analytics"
}

func (Analytics) ValidationMessages() validation.Messages {
	return validation.Messages{
		"property_id": "Analytics must reference a property",
		"period":      "Analytics period must be daily, weekly or monthly",
		"date":        "Analytics date is required",
	}
}

// SavedProperty is the membership row of a user's saved listings
type SavedProperty struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	PropertyID uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"property_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditLog is an append-only record of a state change
type AuditLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EntityType string     `gorm:"size:20;not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Action     string     `gorm:"size:50;not null" json:"action"`
	OldValue   string     `gorm:"size:50" json:"old_value,omitempty"`
	NewValue   string     `gorm:"size:50" json:"new_value,omitempty"`
	ActorID    *uuid.UUID `gorm:"type:uuid" json:"actor_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
