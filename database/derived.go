package database

import (
	"encoding/json"
	"math"
	"time"
	"unicode/utf8"
)

const day = 24 * time.Hour

// StayNights is the number of started days between check-in and check-out.
// It returns 0 when either date is missing.
func StayNights(checkIn, checkOut time.Time) int {
	if checkIn.IsZero() || checkOut.IsZero() {
		return 0
	}
	return int(math.Ceil(float64(checkOut.Sub(checkIn)) / float64(day)))
}

// DurationDays is ceil((check-out - check-in) / 1 day)
func (b Booking) DurationDays() int {
	return StayNights(b.CheckInDate, b.CheckOutDate)
}

func (b Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	return json.Marshal(struct {
		alias
		DurationDays int `json:"duration_days"`
	}{alias(b), b.DurationDays()})
}

// PricePerDay spreads a monthly price over 30 days
func (p Property) PricePerDay() float64 {
	if p.Price.Period == PricePerMonth {
		return math.Round(p.Price.Amount / 30)
	}
	return p.Price.Amount
}

func (p Property) MarshalJSON() ([]byte, error) {
	type alias Property
	return json.Marshal(struct {
		alias
		PricePerDay float64 `json:"price_per_day"`
	}{alias(p), p.PricePerDay()})
}

// TotalWithTax is amount + tax + gst
func (p Payment) TotalWithTax() float64 {
	return p.Amount + p.Tax + p.GST
}

func (p Payment) MarshalJSON() ([]byte, error) {
	type alias Payment
	return json.Marshal(struct {
		alias
		TotalWithTax float64 `json:"total_with_tax"`
	}{alias(p), p.TotalWithTax()})
}

// AverageSubRating is the mean of the sub-ratings that were set
func (r Review) AverageSubRating() float64 {
	d := r.RatingDetails
	var sum, n int
	for _, v := range []int{d.Cleanliness, d.Communication, d.Amenities, d.Value} {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func (r Review) MarshalJSON() ([]byte, error) {
	type alias Review
	return json.Marshal(struct {
		alias
		AverageSubRating float64 `json:"average_sub_rating"`
	}{alias(r), round(r.AverageSubRating(), 1)})
}

// Summary is the title plus the first 80 characters of the message
func (n Notification) Summary() string {
	msg := n.Message
	if utf8.RuneCountInString(msg) > 80 {
		msg = string([]rune(msg)[:80])
	}
	return n.Title + " - " + msg + "..."
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	return json.Marshal(struct {
		alias
		Summary string `json:"summary"`
	}{alias(n), n.Summary()})
}

var ist = time.FixedZone("IST", 5*60*60+30*60)

// FormattedTime renders the creation time for display in India
func (m Message) FormattedTime() string {
	if m.CreatedAt.IsZero() {
		return ""
	}
	return m.CreatedAt.In(ist).Format("02 Jan, 03:04 PM")
}

func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return json.Marshal(struct {
		alias
		FormattedTime string `json:"formatted_time"`
	}{alias(m), m.FormattedTime()})
}

// ComputedConversion is bookings per click as a percentage, 2 decimals
func (a Analytics) ComputedConversion() float64 {
	if a.Metrics.Clicks <= 0 {
		return 0
	}
	return round(float64(a.Metrics.Bookings)/float64(a.Metrics.Clicks)*100, 2)
}

// ComputedOccupancyRate is booked days over available days as a percentage
func (a Analytics) ComputedOccupancyRate() float64 {
	if a.Occupancy.DaysAvailable <= 0 {
		return 0
	}
	return round(float64(a.Occupancy.DaysBooked)/float64(a.Occupancy.DaysAvailable)*100, 2)
}

func (a Analytics) ComputedRevenuePerAvailableDay() float64 {
	if a.Occupancy.DaysAvailable <= 0 {
		return 0
	}
	return round(a.Financial.Revenue/float64(a.Occupancy.DaysAvailable), 2)
}

// Recompute overwrites the stored ratios from the counters they derive from
func (a *Analytics) Recompute() {
	a.Metrics.Conversion = a.ComputedConversion()
	a.Occupancy.OccupancyRate = a.ComputedOccupancyRate()
	a.Occupancy.RevenuePerAvailableDay = a.ComputedRevenuePerAvailableDay()
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
