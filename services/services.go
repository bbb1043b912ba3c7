// Package services is the write boundary of the marketplace. Every create
// and lifecycle change goes through here so that validation, cross-entity
// rules, audit records and notifications happen in one transaction.
package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentease/cache"
	"rentease/database"
)

// PaymentGateway creates orders and refunds with the payment provider
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (string, error)
	Refund(ctx context.Context, paymentID string, amount float64) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// CounterStore buffers engagement counters outside the database
type CounterStore interface {
	Incr(ctx context.Context, propertyID uuid.UUID, at time.Time, event cache.Event, n int64) error
	Drain(ctx context.Context) ([]cache.Bucket, error)
}

type Options struct {
	Logger *logrus.Logger
	// Gateway may be nil when payments are not configured
	Gateway PaymentGateway
	// Counters may be nil; engagement is then written straight to analytics
	Counters CounterStore
	Now      func() time.Time

	PlatformFeePercent float64
	CommissionPercent  float64
}

// Services groups every service over one database
type Services struct {
	Users         *UserService
	Properties    *PropertyService
	Bookings      *BookingService
	Payments      *PaymentService
	Reviews       *ReviewService
	Notifications *NotificationService
	Messages      *MessageService
	Analytics     *AnalyticsService
}

func New(db *gorm.DB, opts Options) *Services {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &core{db: db, log: opts.Logger, now: func() time.Time { return opts.Now().UTC() }}

	s := &Services{}
	s.Notifications = &NotificationService{core: c}
	s.Analytics = &AnalyticsService{core: c, counters: opts.Counters, commission: opts.CommissionPercent}
	s.Users = &UserService{core: c}
	s.Properties = &PropertyService{core: c, analytics: s.Analytics}
	s.Bookings = &BookingService{core: c, platformFee: opts.PlatformFeePercent}
	s.Payments = &PaymentService{core: c, gateway: opts.Gateway}
	s.Reviews = &ReviewService{core: c}
	s.Messages = &MessageService{core: c}
	return s
}

type core struct {
	db  *gorm.DB
	log *logrus.Logger
	now func() time.Time
}

type actorKey struct{}

// WithActor records who is performing the operation for audit logs
func WithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

func actorFrom(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(actorKey{}).(uuid.UUID); ok {
		return &id
	}
	return nil
}

type changesKey struct{}

// transaction runs fn in a database transaction bound to ctx. State changes
// audited inside fn are logged once the transaction commits.
func (c *core) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var changes []logrus.Fields
	ctx = context.WithValue(ctx, changesKey{}, &changes)
	if err := c.db.WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	for _, fields := range changes {
		c.log.WithFields(fields).Info("State changed")
	}
	return nil
}

// lock loads a row by id, taking a row lock where the database supports it
func lock(tx *gorm.DB, dest interface{}, id uuid.UUID) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(dest, "id = ?", id).Error
}

func (c *core) audit(ctx context.Context, tx *gorm.DB, entity string, id uuid.UUID, action, from, to string) error {
	entry := database.AuditLog{
		EntityType: entity,
		EntityID:   id,
		Action:     action,
		OldValue:   from,
		NewValue:   to,
		ActorID:    actorFrom(ctx),
		CreatedAt:  c.now(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return dbError("audit", err)
	}

	fields := logrus.Fields{
		"entity": entity,
		"id":     id,
		"action": action,
		"from":   from,
		"to":     to,
	}
	if changes, ok := tx.Statement.Context.Value(changesKey{}).(*[]logrus.Fields); ok {
		*changes = append(*changes, fields)
		return nil
	}
	c.log.WithFields(fields).Info("State changed")
	return nil
}

// loadUser fetches a user inside tx
func loadUser(tx *gorm.DB, id uuid.UUID) (*database.User, error) {
	var u database.User
	if err := tx.First(&u, "id = ?", id).Error; err != nil {
		return nil, dbError("load user", err)
	}
	return &u, nil
}

func isAdmin(tx *gorm.DB, id uuid.UUID) (bool, error) {
	u, err := loadUser(tx, id)
	if err != nil {
		return false, err
	}
	return u.Role == database.RoleAdmin, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Page normalizes paging parameters
type Page struct {
	Page  int
	Limit int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return q.Limit(limit).Offset((page - 1) * limit)
}
