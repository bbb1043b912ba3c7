package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rentease/database"
	"rentease/utils"
)

func TestRegisterNormalizesAndHashes(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Firstname: "  Priya ",
		Lastname:  "Sharma",
		Email:     " Priya.Sharma@Example.COM ",
		Phone:     "9876543210",
		Password:  "s3cretpass",
	})
	require.NoError(t, err)

	assert.Equal(t, "Priya", u.Firstname)
	assert.Equal(t, "priya.sharma@example.com", u.Email)
	assert.Equal(t, database.RoleTenant, u.Role)
	assert.Equal(t, database.DefaultAvatarURL, u.Avatar.URL)
	assert.Equal(t, database.DefaultCountry, u.Address.Country)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)
	assert.True(t, utils.CheckPasswordHash("s3cretpass", u.PasswordHash))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Firstname: "A",
		Lastname:  "Sharma",
		Email:     "not-an-email",
		Phone:     "1234567890",
		Password:  "short",
		Role:      database.RoleAdmin,
	})
	verrs := requireValidation(t, err)

	assert.Equal(t, "Name must be at least 2 characters", verrs.Message("firstname"))
	assert.Equal(t, "Please provide a valid email address", verrs.Message("email"))
	assert.Equal(t, "Please provide a valid 10 digit phone number", verrs.Message("phone"))
	assert.Equal(t, "Password must be at least 8 characters", verrs.Message("password"))
	assert.True(t, verrs.Has("role"))
}

func TestRegisterConflicts(t *testing.T) {
	f := newFixture(t)
	first := f.user(database.RoleTenant)

	_, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Firstname: "Other", Lastname: "Person", Email: first.Email, Phone: "9123456780", Password: "password123",
	})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email", conflict.Field)
	assert.Equal(t, "Email already registered", conflict.Message)

	_, err = f.svc.Users.Register(f.ctx, RegisterInput{
		Firstname: "Other", Lastname: "Person", Email: "fresh@example.com", Phone: first.Phone, Password: "password123",
	})
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "phone", conflict.Field)
}

func TestRegisterConflictWhenLookupFails(t *testing.T) {
	f := newFixture(t)
	u := f.user(database.RoleTenant)

	require.NoError(t, f.db.Callback().Query().Before("gorm:query").Register("fail_users", func(db *gorm.DB) {
		if db.Statement.Table == "users" {
			db.AddError(errors.New("connection reset"))
		}
	}))
	t.Cleanup(func() { f.db.Callback().Query().Remove("fail_users") })

	_, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Firstname: "Dup",
		Lastname:  "User",
		Email:     u.Email,
		Phone:     "9123400000",
		Password:  "password123",
	})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict), "expected conflict, got %v", err)
	assert.Equal(t, "identity", conflict.Field)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	u := f.user(database.RoleTenant)

	got, err := f.svc.Users.Authenticate(f.ctx, "  "+u.Email, "password123")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(f.clock.Now()))

	_, err = f.svc.Users.Authenticate(f.ctx, u.Email, "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Users.Authenticate(f.ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.Users.Deactivate(f.ctx, u.ID))
	_, err = f.svc.Users.Authenticate(f.ctx, u.Email, "password123")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestOTPFlow(t *testing.T) {
	f := newFixture(t)
	u := f.user(database.RoleTenant)

	code, err := f.svc.Users.IssueOTP(f.ctx, u.ID, OTPEmail)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	stored, err := f.svc.Users.Get(f.ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, code, stored.EmailOTP.CodeHash)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.Users.VerifyOTP(f.ctx, u.ID, OTPEmail, wrong)
	assert.ErrorIs(t, err, ErrOTPInvalid)

	verified, err := f.svc.Users.VerifyOTP(f.ctx, u.ID, OTPEmail, code)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)
	assert.False(t, verified.IsPhoneVerified)
	assert.Empty(t, verified.EmailOTP.CodeHash)
	assert.Nil(t, verified.EmailOTP.ExpiresAt)

	_, err = f.svc.Users.VerifyOTP(f.ctx, u.ID, OTPEmail, code)
	assert.ErrorIs(t, err, ErrOTPInvalid, "a code works once")
}

func TestOTPExpires(t *testing.T) {
	f := newFixture(t)
	u := f.user(database.RoleTenant)

	code, err := f.svc.Users.IssueOTP(f.ctx, u.ID, OTPPhone)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	_, err = f.svc.Users.VerifyOTP(f.ctx, u.ID, OTPPhone, code)
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	u := f.user(database.RoleTenant)

	token, err := f.svc.Users.RequestPasswordReset(f.ctx, u.Email)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	assert.ErrorIs(t, f.svc.Users.ResetPassword(f.ctx, "bogus", "newpassword1"), ErrResetTokenInvalid)

	require.NoError(t, f.svc.Users.ResetPassword(f.ctx, token, "newpassword1"))
	_, err = f.svc.Users.Authenticate(f.ctx, u.Email, "newpassword1")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Users.ResetPassword(f.ctx, token, "another-pass"), ErrResetTokenInvalid, "token is single use")
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture(t)
	u := f.user(database.RoleTenant)

	token, err := f.svc.Users.RequestPasswordReset(f.ctx, u.Email)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	assert.ErrorIs(t, f.svc.Users.ResetPassword(f.ctx, token, "newpassword1"), ErrResetTokenInvalid)

	_, err = f.svc.Users.RequestPasswordReset(f.ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAvatarReturnsPrevious(t *testing.T) {
	f := newFixture(t)
	u := f.user(database.RoleOwner)

	prev, err := f.svc.Users.UpdateAvatar(f.ctx, u.ID, database.Media{URL: "https://cdn.example.com/me.png", PublicID: "me"})
	require.NoError(t, err)
	assert.Equal(t, database.DefaultAvatarURL, prev.URL)

	got, err := f.svc.Users.Get(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "me", got.Avatar.PublicID)
}

func TestBookingHistory(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	tenant := f.user(database.RoleTenant)
	p := f.property(owner)

	f.booking(tenant, p, 1, 2)
	f.booking(tenant, p, 10, 3)

	history, err := f.svc.Users.BookingHistory(f.ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].Property)
	assert.Equal(t, p.Title, history[0].Property.Title)
}
