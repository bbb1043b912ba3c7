package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rentease/config"
	"rentease/controllers"
	"rentease/database"
	"rentease/gateway"
	"rentease/services"
)

const gatewaySecret = "routes_secret"

type stubGateway struct {
	orders int
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (string, error) {
	g.orders++
	return fmt.Sprintf("order_%d", g.orders), nil
}

func (g *stubGateway) Refund(ctx context.Context, paymentID string, amount float64) (string, error) {
	return "rfnd_1", nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == gateway.Sign(gatewaySecret, orderID, paymentID)
}

type api struct {
	t *testing.T
	r *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig = config.Config{JWTSecret: "routes-secret", JWTExpiryHours: 1, Environment: "development"}

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

	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := services.New(db, services.Options{
		Logger:             log,
		Gateway:            &stubGateway{},
		PlatformFeePercent: 2,
		CommissionPercent:  10,
	})

	r := gin.New()
	SetupRoutes(r, controllers.NewHandler(svc, log, "rzp_test_key"))
	return &api{t: t, r: r}
}

// do sends body as JSON and decodes the response into out when non-nil
func (a *api) do(method, path, token string, body interface{}, out interface{}) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func (a *api) register(first, email, phone string, role database.Role) session {
	a.t.Helper()
	var s session
	code := a.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"firstname": first,
		"lastname":  "Rao",
		"email":     email,
		"phone":     phone,
		"password":  "password123",
		"role":      role,
	}, &s)
	require.Equal(a.t, http.StatusCreated, code)
	require.NotEmpty(a.t, s.Token)
	return s
}

func day(offset int) string {
	return time.Now().UTC().AddDate(0, 0, offset).Format("2006-01-02")
}

func TestAuthRoutes(t *testing.T) {
	a := newAPI(t)
	owner := a.register("Meera", "meera@example.com", "9876500001", database.RoleOwner)
	assert.Equal(t, "owner", owner.User.Role)

	var login session
	code := a.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "MEERA@example.com", "password": "password123"}, &login)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, owner.User.ID, login.User.ID)

	code = a.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "meera@example.com", "password": "wrong-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code = a.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"firstname": "Other", "lastname": "Rao", "email": "meera@example.com",
		"phone": "9876500002", "password": "password123",
	}, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = a.do(http.MethodGet, "/api/profile", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	var profile map[string]interface{}
	code = a.do(http.MethodGet, "/api/profile", owner.Token, nil, &profile)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "meera@example.com", profile["email"])
	assert.NotContains(t, profile, "password_hash")

	var forgot map[string]interface{}
	code = a.do(http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "nobody@example.com"}, &forgot)
	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, forgot, "token")

	code = a.do(http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "meera@example.com"}, &forgot)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, forgot["token"], "echoed in development")

	code = a.do(http.MethodPost, "/api/auth/reset-password", "", gin.H{"token": forgot["token"], "password": "new-password1"}, nil)
	require.Equal(t, http.StatusOK, code)
	code = a.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "meera@example.com", "password": "new-password1"}, &login)
	assert.Equal(t, http.StatusOK, code)
}

func listingBody() gin.H {
	return gin.H{
		"title":             "Spacious 2BHK in Indiranagar",
		"description":       "Bright flat close to the metro with a large balcony.",
		"address":           gin.H{"street": "12 CMH Road", "locality": "Indiranagar", "city": "Bengaluru", "state": "Karnataka", "pincode": "560038"},
		"property_type":     "2BHK",
		"bedrooms":          2,
		"bathrooms":         2,
		"furnishing_status": "Semi Furnished",
		"total_area":        1100,
		"amenities":         []string{"WiFi", "Parking"},
		"price":             gin.H{"amount": 30000},
		"security_deposit":  60000,
		"location":          gin.H{"type": "Point", "coordinates": []float64{77.6412, 12.9784}},
		"available_to":      time.Now().UTC().AddDate(1, 0, 0),
		"images":            []gin.H{{"url": "https://cdn.example.com/a.jpg", "public_id": "a"}},
	}
}

func TestBookingAndPaymentFlow(t *testing.T) {
	a := newAPI(t)
	owner := a.register("Meera", "meera@example.com", "9876500001", database.RoleOwner)
	tenant := a.register("Arjun", "arjun@example.com", "9876500002", database.RoleTenant)
	stranger := a.register("Kiran", "kiran@example.com", "9876500003", database.RoleTenant)

	code := a.do(http.MethodPost, "/api/properties", tenant.Token, listingBody(), nil)
	assert.Equal(t, http.StatusForbidden, code, "tenants cannot list")

	var prop struct {
		ID          string  `json:"id"`
		Slug        string  `json:"slug"`
		Status      string  `json:"status"`
		PricePerDay float64 `json:"price_per_day"`
	}
	code = a.do(http.MethodPost, "/api/properties", owner.Token, listingBody(), &prop)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Available", prop.Status)
	assert.Equal(t, 1000.0, prop.PricePerDay)

	var search struct {
		Total int64 `json:"total"`
	}
	code = a.do(http.MethodGet, "/api/properties?city=Bengaluru&type=2BHK", "", nil, &search)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, search.Total)

	var nearby []map[string]interface{}
	code = a.do(http.MethodGet, "/api/properties/nearby?lon=77.64&lat=12.98&radius=2000", "", nil, &nearby)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, nearby, 1)

	code = a.do(http.MethodGet, "/api/properties/slug/"+prop.Slug, "", nil, nil)
	assert.Equal(t, http.StatusOK, code)

	var booking struct {
		ID          string  `json:"id"`
		Status      string  `json:"status"`
		TotalAmount float64 `json:"total_amount"`
	}
	code = a.do(http.MethodPost, "/api/bookings", tenant.Token, gin.H{
		"property_id":    prop.ID,
		"check_in_date":  day(1),
		"check_out_date": day(3),
	}, &booking)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "pending", booking.Status)

	code = a.do(http.MethodPost, "/api/bookings", owner.Token, gin.H{
		"property_id": prop.ID, "check_in_date": day(5), "check_out_date": day(6),
	}, nil)
	assert.Equal(t, http.StatusForbidden, code, "owners cannot book")

	code = a.do(http.MethodGet, "/api/bookings/"+booking.ID, stranger.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code = a.do(http.MethodGet, "/api/bookings/"+booking.ID, owner.Token, nil, nil)
	assert.Equal(t, http.StatusOK, code)
	code = a.do(http.MethodGet, "/api/bookings/not-a-uuid", owner.Token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var unpaid map[string]interface{}
	code = a.do(http.MethodPatch, "/api/bookings/"+booking.ID+"/confirm", owner.Token, nil, &unpaid)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "booking_unpaid", unpaid["rule"])

	var checkout struct {
		OrderID string `json:"order_id"`
		KeyID   string `json:"key_id"`
		Payment struct {
			ID     string  `json:"id"`
			Amount float64 `json:"amount"`
		} `json:"payment"`
	}
	code = a.do(http.MethodPost, "/api/payments", tenant.Token, gin.H{"booking_id": booking.ID, "method": "upi"}, &checkout)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "order_1", checkout.OrderID)
	assert.Equal(t, "rzp_test_key", checkout.KeyID)
	assert.Equal(t, booking.TotalAmount, checkout.Payment.Amount)

	code = a.do(http.MethodPost, "/api/payments/verify", tenant.Token, gin.H{
		"razorpay_order_id": "order_1", "razorpay_payment_id": "pay_1", "razorpay_signature": "forged",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	var verified struct {
		Payment struct {
			Status string `json:"status"`
		} `json:"payment"`
		Booking struct {
			Status        string `json:"status"`
			PaymentStatus string `json:"payment_status"`
		} `json:"booking"`
	}
	code = a.do(http.MethodPost, "/api/payments/verify", tenant.Token, gin.H{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  gateway.Sign(gatewaySecret, "order_1", "pay_1"),
	}, &verified)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", verified.Payment.Status)
	assert.Equal(t, "confirmed", verified.Booking.Status)
	assert.Equal(t, "paid", verified.Booking.PaymentStatus)

	var payments []map[string]interface{}
	code = a.do(http.MethodGet, "/api/bookings/"+booking.ID+"/payments", tenant.Token, nil, &payments)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, payments, 1)

	code = a.do(http.MethodGet, "/api/payments/"+checkout.Payment.ID, stranger.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	var propBookings []map[string]interface{}
	code = a.do(http.MethodGet, "/api/properties/"+prop.ID+"/bookings", owner.Token, nil, &propBookings)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, propBookings, 1)

	var notes []map[string]interface{}
	code = a.do(http.MethodGet, "/api/notifications?unread=true", owner.Token, nil, &notes)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, notes)

	var readAll struct {
		Updated int64 `json:"updated"`
	}
	code = a.do(http.MethodPatch, "/api/notifications/read-all", owner.Token, nil, &readAll)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, len(notes), readAll.Updated)
}

func TestMessagingRoutes(t *testing.T) {
	a := newAPI(t)
	owner := a.register("Meera", "meera@example.com", "9876500001", database.RoleOwner)
	tenant := a.register("Arjun", "arjun@example.com", "9876500002", database.RoleTenant)

	var prop struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/properties", owner.Token, listingBody(), &prop))
	var booking struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/bookings", tenant.Token, gin.H{
		"property_id": prop.ID, "check_in_date": day(1), "check_out_date": day(2),
	}, &booking))

	var msg struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	code := a.do(http.MethodPost, "/api/bookings/"+booking.ID+"/messages", tenant.Token, gin.H{
		"recipient_id": owner.User.ID,
		"content":      "Is parking included?",
	}, &msg)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "text", msg.Type)

	var unread struct {
		Unread int64 `json:"unread"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/messages/unread", owner.Token, nil, &unread))
	assert.EqualValues(t, 1, unread.Unread)

	code = a.do(http.MethodPatch, "/api/messages/"+msg.ID+"/read", tenant.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, code, "only the recipient marks read")
	require.Equal(t, http.StatusOK, a.do(http.MethodPatch, "/api/messages/"+msg.ID+"/read", owner.Token, nil, nil))

	var convo []map[string]interface{}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/bookings/"+booking.ID+"/messages", owner.Token, nil, &convo))
	assert.Len(t, convo, 1)
}

func TestAdminRoutesAreGated(t *testing.T) {
	a := newAPI(t)
	owner := a.register("Meera", "meera@example.com", "9876500001", database.RoleOwner)

	code := a.do(http.MethodPost, "/api/admin/analytics/flush", owner.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code = a.do(http.MethodGet, "/api/admin/notifications/pending/email", owner.Token, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)
}
