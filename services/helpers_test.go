package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rentease/cache"
	"rentease/database"
	"rentease/gateway"
	"rentease/utils"
	"rentease/validation"
)

const gatewaySecret = "test_secret"

type fakeGateway struct {
	orders   int
	refunds  []float64
	orderErr error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (string, error) {
	if g.orderErr != nil {
		return "", g.orderErr
	}
	g.orders++
	return fmt.Sprintf("order_%d", g.orders), nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID string, amount float64) (string, error) {
	g.refunds = append(g.refunds, amount)
	return fmt.Sprintf("rfnd_%d", len(g.refunds)), nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == gateway.Sign(gatewaySecret, orderID, paymentID)
}

type fakeCounters struct {
	mu      sync.Mutex
	buckets map[string]*cache.Bucket
	err     error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{buckets: map[string]*cache.Bucket{}}
}

func (f *fakeCounters) Incr(ctx context.Context, propertyID uuid.UUID, at time.Time, event cache.Event, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := propertyID.String() + at.Format("2006-01-02")
	b, ok := f.buckets[key]
	if !ok {
		b = &cache.Bucket{PropertyID: propertyID, Day: startOfDay(at)}
		f.buckets[key] = b
	}
	switch event {
	case cache.EventView:
		b.Views += n
	case cache.EventClick:
		b.Clicks += n
	case cache.EventInquiry:
		b.Inquiries += n
	}
	return nil
}

func (f *fakeCounters) Drain(ctx context.Context) ([]cache.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cache.Bucket
	for _, b := range f.buckets {
		out = append(out, *b)
	}
	f.buckets = map[string]*cache.Bucket{}
	return out, nil
}

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	svc      *Services
	gateway  *fakeGateway
	counters *fakeCounters
	clock    *testClock
	seq      int
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type fixtureOption func(*Options)

func withCounters(c CounterStore) fixtureOption {
	return func(o *Options) { o.Counters = c }
}

func withLogger(l *logrus.Logger) fixtureOption {
	return func(o *Options) { o.Logger = l }
}

func withoutGateway() fixtureOption {
	return func(o *Options) { o.Gateway = nil }
}

// newFixture wires every service over a fresh database. The clock starts on
// Monday 3 June 2024, 09:00 UTC.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		db:      openDB(t),
		gateway: &fakeGateway{},
		clock:   &testClock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)},
	}
	o := Options{
		Logger:             log,
		Gateway:            f.gateway,
		Now:                f.clock.Now,
		PlatformFeePercent: 2,
		CommissionPercent:  10,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if c, ok := o.Counters.(*fakeCounters); ok {
		f.counters = c
	}
	f.svc = New(f.db, o)
	return f
}

func (f *fixture) day(offset int) time.Time {
	return startOfDay(f.clock.Now()).AddDate(0, 0, offset)
}

// user registers an account with a unique email and phone
func (f *fixture) user(role database.Role) *database.User {
	f.t.Helper()
	f.seq++
	u, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Firstname: "Test",
		Lastname:  "User",
		Email:     fmt.Sprintf("user%d@example.com", f.seq),
		Phone:     fmt.Sprintf("98765%05d", f.seq),
		Password:  "password123",
		Role:      role,
	})
	require.NoError(f.t, err)
	return u
}

// admin inserts an admin account directly, admins cannot self-register
func (f *fixture) admin() *database.User {
	f.t.Helper()
	f.seq++
	hash, err := utils.HashPassword("password123")
	require.NoError(f.t, err)
	u := database.User{
		Base:         database.Base{ID: uuid.New()},
		Firstname:    "Site",
		Lastname:     "Admin",
		Email:        fmt.Sprintf("admin%d@example.com", f.seq),
		Phone:        fmt.Sprintf("99999%05d", f.seq),
		PasswordHash: hash,
		Role:         database.RoleAdmin,
		Avatar:       database.Media{URL: database.DefaultAvatarURL},
		Address:      database.UserAddress{Country: database.DefaultCountry},
		IsActive:     true,
	}
	require.NoError(f.t, f.db.Create(&u).Error)
	return &u
}

func intPtr(v int) *int {
	return &v
}

func listing() *database.Property {
	return &database.Property{
		Title:            "Spacious 2BHK in Indiranagar",
		Description:      "Bright flat close to the metro with a large balcony.",
		Address:          database.PropertyAddress{Street: "12 CMH Road", Locality: "Indiranagar", City: "Bengaluru", State: "Karnataka", Pincode: "560038"},
		PropertyType:     database.PropertyType2BHK,
		Bedrooms:         intPtr(2),
		Bathrooms:        2,
		FurnishingStatus: database.SemiFurnished,
		TotalArea:        1100,
		Amenities:        []database.Amenity{"WiFi", "Parking"},
		Price:            database.Price{Amount: 30000},
		SecurityDeposit:  60000,
		Location:         database.NewGeoPoint(77.6412, 12.9784),
		Images: []database.PropertyImage{
			{URL: "https://cdn.example.com/a.jpg", PublicID: "a"},
			{URL: "https://cdn.example.com/b.jpg", PublicID: "b"},
		},
	}
}

// property lists a valid property for owner, available for a year
func (f *fixture) property(owner *database.User) *database.Property {
	f.t.Helper()
	p := listing()
	to := f.day(365)
	p.AvailableTo = &to
	created, err := f.svc.Properties.Create(f.ctx, owner.ID, p)
	require.NoError(f.t, err)
	return created
}

// booking books p for tenant from day `in` for `nights` nights
func (f *fixture) booking(tenant *database.User, p *database.Property, in, nights int) *database.Booking {
	f.t.Helper()
	b, err := f.svc.Bookings.Create(f.ctx, tenant.ID, CreateBookingInput{
		PropertyID:   p.ID,
		CheckInDate:  f.day(in),
		CheckOutDate: f.day(in + nights),
	})
	require.NoError(f.t, err)
	return b
}

// paid creates a payment for b and captures it
func (f *fixture) paid(tenant *database.User, b *database.Booking) *database.Payment {
	f.t.Helper()
	pay, err := f.svc.Payments.Create(f.ctx, tenant.ID, CreatePaymentInput{BookingID: b.ID, Method: database.MethodUPI})
	require.NoError(f.t, err)
	pay, err = f.svc.Payments.Complete(f.ctx, pay.ID, "pay_"+pay.ID.String()[:8])
	require.NoError(f.t, err)
	return pay
}

// confirm pays for b and has the owner confirm it
func (f *fixture) confirm(owner, tenant *database.User, b *database.Booking) {
	f.t.Helper()
	f.paid(tenant, b)
	_, err := f.svc.Bookings.Confirm(f.ctx, owner.ID, b.ID)
	require.NoError(f.t, err)
}

func (f *fixture) reloadBooking(id uuid.UUID) database.Booking {
	f.t.Helper()
	var b database.Booking
	require.NoError(f.t, f.db.First(&b, "id = ?", id).Error)
	return b
}

func (f *fixture) reloadProperty(id uuid.UUID) database.Property {
	f.t.Helper()
	var p database.Property
	require.NoError(f.t, f.db.First(&p, "id = ?", id).Error)
	return p
}

func (f *fixture) reloadPayment(id uuid.UUID) database.Payment {
	f.t.Helper()
	var p database.Payment
	require.NoError(f.t, f.db.First(&p, "id = ?", id).Error)
	return p
}

func noteTypes(notes []database.Notification) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Type
	}
	return out
}

func requireInvariant(t *testing.T, err error, rule string) {
	t.Helper()
	var inv *InvariantError
	require.True(t, errors.As(err, &inv), "expected invariant error, got %v", err)
	require.Equal(t, rule, inv.Rule)
}

func requireTransition(t *testing.T, err error) *TransitionError {
	t.Helper()
	var te *TransitionError
	require.True(t, errors.As(err, &te), "expected transition error, got %v", err)
	return te
}

func requireValidation(t *testing.T, err error) validation.Errors {
	t.Helper()
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
	return verrs
}
