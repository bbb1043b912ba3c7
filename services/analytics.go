package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentease/cache"
	"rentease/database"
	"rentease/validation"
)

// AnalyticsService maintains the per-property time buckets. Engagement
// arrives as counters; bookings, revenue and occupancy are recomputed from
// the operational tables by Rollup.
type AnalyticsService struct {
	*core
	counters   CounterStore
	commission float64
}

// BucketStart is the first instant of the period containing t, in UTC.
// Weeks start on Monday.
func BucketStart(period database.AnalyticsPeriod, t time.Time) time.Time {
	d := startOfDay(t)
	switch period {
	case database.PeriodWeekly:
		return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
	case database.PeriodMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// BucketEnd is the exclusive end of the bucket starting at start
func BucketEnd(period database.AnalyticsPeriod, start time.Time) time.Time {
	switch period {
	case database.PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case database.PeriodMonthly:
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

var bucketColumns = []clause.Column{{Name: "property_id"}, {Name: "period"}, {Name: "date"}}

// upsertDaily adds the engagement of b to its daily bucket
func (c *core) upsertDaily(tx *gorm.DB, b cache.Bucket) error {
	row := database.Analytics{
		Base:       database.Base{ID: uuid.New()},
		PropertyID: b.PropertyID,
		Period:     database.PeriodDaily,
		Date:       startOfDay(b.Day),
		Metrics:    database.Metrics{Views: b.Views, Clicks: b.Clicks, Inquiries: b.Inquiries},
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: bucketColumns,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"metrics_views":     gorm.Expr("analytics.metrics_views + ?", b.Views),
			"metrics_clicks":    gorm.Expr("analytics.metrics_clicks + ?", b.Clicks),
			"metrics_inquiries": gorm.Expr("analytics.metrics_inquiries + ?", b.Inquiries),
			"updated_at":        c.now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return dbError("upsert analytics", err)
	}
	return nil
}

func bucketFor(propertyID uuid.UUID, day time.Time, event cache.Event, n int64) cache.Bucket {
	b := cache.Bucket{PropertyID: propertyID, Day: day}
	switch event {
	case cache.EventView:
		b.Views = n
	case cache.EventClick:
		b.Clicks = n
	case cache.EventInquiry:
		b.Inquiries = n
	}
	return b
}

// Track counts n engagement events against today's bucket. With a counter
// store the increment is buffered until Flush.
func (s *AnalyticsService) Track(ctx context.Context, propertyID uuid.UUID, event cache.Event, n int64) error {
	if !event.Valid() {
		return validation.Field("event", fmt.Sprintf("%s is not a valid engagement event", event))
	}
	now := s.now()
	if s.counters != nil {
		err := s.counters.Incr(ctx, propertyID, now, event, n)
		if err == nil {
			return nil
		}
		s.log.WithError(err).WithField("property_id", propertyID).Warn("Counter store unavailable, writing analytics directly")
	}
	return s.upsertDaily(s.db.WithContext(ctx), bucketFor(propertyID, now, event, n))
}

// Flush drains the counter store into daily buckets and refreshes each
// touched bucket. It returns the number of buckets written.
func (s *AnalyticsService) Flush(ctx context.Context) (int, error) {
	if s.counters == nil {
		return 0, nil
	}
	buckets, err := s.counters.Drain(ctx)

	written := 0
	for _, b := range buckets {
		if uerr := s.upsertDaily(s.db.WithContext(ctx), b); uerr != nil {
			s.log.WithError(uerr).WithField("property_id", b.PropertyID).Error("Failed to write engagement bucket")
			err = errors.Join(err, uerr, s.restore(ctx, b))
			continue
		}
		written++
		if _, rerr := s.Rollup(ctx, b.PropertyID, database.PeriodDaily, b.Day); rerr != nil {
			s.log.WithError(rerr).WithField("property_id", b.PropertyID).Warn("Daily rollup failed")
		}
	}
	return written, err
}

// restore puts an unwritten bucket back so the next flush retries it
func (s *AnalyticsService) restore(ctx context.Context, b cache.Bucket) error {
	var err error
	for event, n := range map[cache.Event]int64{
		cache.EventView:    b.Views,
		cache.EventClick:   b.Clicks,
		cache.EventInquiry: b.Inquiries,
	} {
		if n == 0 {
			continue
		}
		if ierr := s.counters.Incr(ctx, b.PropertyID, b.Day, event, n); ierr != nil {
			s.log.WithError(ierr).WithField("property_id", b.PropertyID).WithField("event", event).Error("Engagement counts lost")
			err = errors.Join(err, ierr)
		}
	}
	return err
}

// Rollup recomputes the bucket of period containing at from bookings,
// payments and the property's availability, and sums daily engagement into
// weekly and monthly buckets.
func (s *AnalyticsService) Rollup(ctx context.Context, propertyID uuid.UUID, period database.AnalyticsPeriod, at time.Time) (*database.Analytics, error) {
	if !period.Valid() {
		return nil, validation.Field("period", "Analytics period must be daily, weekly or monthly")
	}
	start := BucketStart(period, at)
	end := BucketEnd(period, start)

	var a database.Analytics
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var p database.Property
		if err := tx.First(&p, "id = ?", propertyID).Error; err != nil {
			return dbError("load property", err)
		}

		seed := database.Analytics{Base: database.Base{ID: uuid.New()}, PropertyID: propertyID, Period: period, Date: start}
		if err := tx.Clauses(clause.OnConflict{Columns: bucketColumns, DoNothing: true}).Create(&seed).Error; err != nil {
			return dbError("create analytics bucket", err)
		}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("property_id = ? AND period = ? AND date = ?", propertyID, period, start).
			First(&a).Error
		if err != nil {
			return dbError("load analytics bucket", err)
		}

		if period != database.PeriodDaily {
			var sum struct {
				Views     int64
				Clicks    int64
				Inquiries int64
			}
			err := tx.Model(&database.Analytics{}).
				Select("COALESCE(SUM(metrics_views), 0) AS views, COALESCE(SUM(metrics_clicks), 0) AS clicks, COALESCE(SUM(metrics_inquiries), 0) AS inquiries").
				Where("property_id = ? AND period = ? AND date >= ? AND date < ?", propertyID, database.PeriodDaily, start, end).
				Scan(&sum).Error
			if err != nil {
				return dbError("sum engagement", err)
			}
			a.Metrics.Views, a.Metrics.Clicks, a.Metrics.Inquiries = sum.Views, sum.Clicks, sum.Inquiries
		}

		err = tx.Model(&database.Booking{}).
			Where("property_id = ? AND confirmed_at >= ? AND confirmed_at < ?", propertyID, start, end).
			Count(&a.Metrics.Bookings).Error
		if err != nil {
			return dbError("count bookings", err)
		}

		var revenue struct{ Total float64 }
		err = tx.Model(&database.Payment{}).
			Select("COALESCE(SUM(payments.amount), 0) AS total").
			Joins("JOIN bookings ON bookings.id = payments.booking_id").
			Where("bookings.property_id = ? AND payments.status = ?", propertyID, database.PaymentCompleted).
			Where("payments.completed_at >= ? AND payments.completed_at < ?", start, end).
			Scan(&revenue).Error
		if err != nil {
			return dbError("sum revenue", err)
		}
		a.Financial.Revenue = round2(revenue.Total)
		a.Financial.Commission = round2(a.Financial.Revenue * s.commission / 100)
		a.Financial.NetRevenue = round2(a.Financial.Revenue - a.Financial.Commission)

		if a.Occupancy.DaysBooked, err = bookedDays(tx, propertyID, start, end); err != nil {
			return err
		}
		a.Occupancy.DaysAvailable = availableDays(&p, start, end)

		a.Recompute()
		if err := validation.Struct(&a); err != nil {
			return err
		}
		err = tx.Model(&a).Select(
			"metrics_views", "metrics_clicks", "metrics_inquiries", "metrics_bookings", "metrics_conversion",
			"financial_revenue", "financial_commission", "financial_net_revenue",
			"occupancy_days_booked", "occupancy_days_available", "occupancy_occupancy_rate", "occupancy_revenue_per_available_day",
		).Updates(&a).Error
		if err != nil {
			return dbError("update analytics bucket", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// overlapDays is the number of days [from, to) shares with [start, end)
func overlapDays(from, to, start, end time.Time) int {
	if from.Before(start) {
		from = start
	}
	if to.After(end) {
		to = end
	}
	if !to.After(from) {
		return 0
	}
	return database.StayNights(from, to)
}

func bookedDays(tx *gorm.DB, propertyID uuid.UUID, start, end time.Time) (int, error) {
	var stays []database.Booking
	err := tx.Select("check_in_date", "check_out_date").
		Where("property_id = ? AND status IN ?", propertyID,
			[]database.BookingStatus{database.BookingConfirmed, database.BookingOngoing, database.BookingCompleted}).
		Where("check_in_date < ? AND check_out_date > ?", end, start).
		Find(&stays).Error
	if err != nil {
		return 0, dbError("load stays", err)
	}
	days := 0
	for _, b := range stays {
		days += overlapDays(b.CheckInDate, b.CheckOutDate, start, end)
	}
	if span := database.StayNights(start, end); days > span {
		days = span
	}
	return days, nil
}

func availableDays(p *database.Property, start, end time.Time) int {
	if p.Status == database.PropertyInactive || p.Status == database.PropertySold {
		return 0
	}
	to := end
	if p.AvailableTo != nil {
		to = *p.AvailableTo
	}
	return overlapDays(startOfDay(p.AvailableFrom), to, start, end)
}

// RollupAll recomputes the bucket of period containing at for every listed
// property. Failures are logged and returned together after all properties ran.
func (s *AnalyticsService) RollupAll(ctx context.Context, period database.AnalyticsPeriod, at time.Time) (int, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&database.Property{}).
		Where("status <> ?", database.PropertyInactive).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, dbError("list properties", err)
	}

	var errs error
	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return done, errors.Join(errs, ctx.Err())
		}
		if _, err := s.Rollup(ctx, id, period, at); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"property_id": id, "period": period}).Error("Rollup failed")
			errs = errors.Join(errs, err)
			continue
		}
		done++
	}
	return done, errs
}

// History returns the property's buckets of period with start dates in [from, to]
func (s *AnalyticsService) History(ctx context.Context, propertyID uuid.UUID, period database.AnalyticsPeriod, from, to time.Time) ([]database.Analytics, error) {
	if !period.Valid() {
		return nil, validation.Field("period", "Analytics period must be daily, weekly or monthly")
	}
	q := s.db.WithContext(ctx).Where("property_id = ? AND period = ?", propertyID, period)
	if !from.IsZero() {
		q = q.Where("date >= ?", BucketStart(period, from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", to.UTC())
	}

	var out []database.Analytics
	if err := q.Order("date").Find(&out).Error; err != nil {
		return nil, dbError("analytics history", err)
	}
	return out, nil
}
