package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentease/database"
	"rentease/utils"
	"rentease/validation"
)

const (
	otpTTL        = 10 * time.Minute
	resetTokenTTL = 30 * time.Minute
	minPassword   = 8
)

// OTPTarget is what a one-time code verifies
type OTPTarget string

const (
	OTPEmail OTPTarget = "email"
	OTPPhone OTPTarget = "phone"
)

type RegisterInput struct {
	Firstname string
	Lastname  string
	Email     string
	Phone     string
	Password  string
	Role      database.Role
	Address   database.UserAddress
}

type UserService struct {
	*core
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < minPassword {
		return validation.Field("password", "Password must be at least 8 characters")
	}
	return nil
}

// Register creates an account: normalize, validate, hash, insert
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*database.User, error) {
	u := database.User{
		Base:      database.Base{ID: uuid.New()},
		Firstname: strings.TrimSpace(in.Firstname),
		Lastname:  strings.TrimSpace(in.Lastname),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     strings.TrimSpace(in.Phone),
		Role:      in.Role,
		Avatar:    database.Media{URL: database.DefaultAvatarURL},
		Address:   in.Address,
		IsActive:  true,
	}
	if u.Role == "" {
		u.Role = database.RoleTenant
	}
	if u.Address.Country == "" {
		u.Address.Country = database.DefaultCountry
	}

	var roleErr error
	if u.Role == database.RoleAdmin {
		roleErr = validation.Field("role", "Admin accounts cannot be self-registered")
	}
	if err := validation.Merge(validation.Struct(&u), checkPassword(in.Password), roleErr); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash

	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.identityConflict(ctx, u.Email)
		}
		return nil, dbError("create user", err)
	}

	s.log.WithField("user_id", u.ID).Info("User registered")
	return &u, nil
}

// identityConflict works out which unique identity field clashed
func (s *UserService) identityConflict(ctx context.Context, email string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&database.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		s.log.WithError(err).Warn("Could not tell which identity field clashed")
		return &ConflictError{Field: "identity", Message: "Email or phone number already registered"}
	}
	if count > 0 {
		return &ConflictError{Field: "email", Message: "Email already registered"}
	}
	return &ConflictError{Field: "phone", Message: "Phone number already registered"}
}

// Authenticate checks credentials and stamps the login time
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*database.User, error) {
	var u database.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, dbError("load user", err)
	}

	if !utils.CheckPasswordHash(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&u).Update("last_login", now).Error; err != nil {
		return nil, dbError("stamp login", err)
	}
	u.LastLogin = &now
	return &u, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*database.User, error) {
	return loadUser(s.db.WithContext(ctx), id)
}

func otpField(u *database.User, target OTPTarget) (*database.OTP, error) {
	switch target {
	case OTPEmail:
		return &u.EmailOTP, nil
	case OTPPhone:
		return &u.PhoneOTP, nil
	}
	return nil, validation.Field("target", fmt.Sprintf("%s is not a verifiable field", target))
}

// IssueOTP stores a fresh code digest for target and queues the code for
// delivery on the matching channel. Any earlier code stops working.
func (s *UserService) IssueOTP(ctx context.Context, userID uuid.UUID, target OTPTarget) (string, error) {
	code, err := utils.GenerateOTP()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		otp, err := otpField(u, target)
		if err != nil {
			return err
		}
		otp.CodeHash = utils.HashToken(code)
		otp.ExpiresAt = timePtr(s.now().Add(otpTTL))
		if err := tx.Save(u).Error; err != nil {
			return dbError("store otp", err)
		}

		channel := database.ChannelEmail
		if target == OTPPhone {
			channel = database.ChannelSMS
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   u.ID,
			Type:     "otp",
			Title:    "Your verification code",
			Message:  "Your RentEase verification code is " + code + ". It expires in 10 minutes.",
			Channels: []database.Channel{channel},
			Priority: database.PriorityHigh,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// VerifyOTP checks code against target, marks it verified and clears the code
func (s *UserService) VerifyOTP(ctx context.Context, userID uuid.UUID, target OTPTarget, code string) (*database.User, error) {
	var u *database.User
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		if u, err = loadUser(tx, userID); err != nil {
			return err
		}
		otp, err := otpField(u, target)
		if err != nil {
			return err
		}
		if otp.CodeHash == "" || otp.ExpiresAt == nil {
			return ErrOTPInvalid
		}
		if !s.now().Before(*otp.ExpiresAt) {
			return ErrOTPExpired
		}
		if !utils.TokenMatches(code, otp.CodeHash) {
			return ErrOTPInvalid
		}

		*otp = database.OTP{}
		if target == OTPEmail {
			u.IsEmailVerified = true
		} else {
			u.IsPhoneVerified = true
		}
		u.IsProfileComplete = profileComplete(u)
		return tx.Save(u).Error
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func profileComplete(u *database.User) bool {
	return u.IsEmailVerified && u.IsPhoneVerified && u.Address.City != "" && u.Address.Pincode != ""
}

// RequestPasswordReset stores a reset token digest valid for 30 minutes and
// returns the raw token for the reset link.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	token, err := utils.GenerateResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		var u database.User
		err := tx.Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).First(&u).Error
		if err != nil {
			return dbError("request password reset", err)
		}
		err = tx.Model(&u).Updates(map[string]interface{}{
			"password_reset_token":   utils.HashToken(token),
			"password_reset_expires": s.now().Add(resetTokenTTL),
		}).Error
		if err != nil {
			return dbError("store reset token", err)
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   u.ID,
			Type:     "password_reset",
			Title:    "Reset your password",
			Message:  "Use this token to reset your password within 30 minutes: " + token,
			Channels: []database.Channel{database.ChannelEmail},
			Priority: database.PriorityHigh,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword replaces the password of the account holding token
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}

	return s.transaction(ctx, func(tx *gorm.DB) error {
		var u database.User
		err := tx.Where("password_reset_token = ?", utils.HashToken(token)).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		if err != nil {
			return dbError("load user", err)
		}
		if u.PasswordResetExpires == nil || !s.now().Before(*u.PasswordResetExpires) {
			return ErrResetTokenInvalid
		}

		hash, err := utils.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
		return tx.Save(&u).Error
	})
}

// UpdateAvatar stores a new avatar and returns the previous one so the
// caller can remove the old asset from media storage.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar database.Media) (database.Media, error) {
	if strings.TrimSpace(avatar.URL) == "" {
		return database.Media{}, validation.Field("avatar.url", "Avatar URL is required")
	}

	var previous database.Media
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		previous = u.Avatar
		u.Avatar = avatar
		return tx.Save(u).Error
	})
	return previous, err
}

// Deactivate soft-deletes an account
func (s *UserService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return nil
		}
		if err := tx.Model(u).Update("is_active", false).Error; err != nil {
			return dbError("deactivate user", err)
		}
		return s.audit(ctx, tx, "User", u.ID, "deactivate", "active", "inactive")
	})
}

// BookingHistory lists the bookings a user made as tenant, newest first
func (s *UserService) BookingHistory(ctx context.Context, userID uuid.UUID) ([]database.Booking, error) {
	var out []database.Booking
	err := s.db.WithContext(ctx).
		Preload("Property").
		Where("tenant_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, dbError("booking history", err)
	}
	return out, nil
}
