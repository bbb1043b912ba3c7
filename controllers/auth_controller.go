package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rentease/config"
	"rentease/database"
	"rentease/services"
	"rentease/utils"
)

type RegisterRequest struct {
	Firstname string        `json:"firstname"`
	Lastname  string        `json:"lastname"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Password  string        `json:"password"`
	Role      database.Role `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token  string         `json:"token"`
	User   *database.User `json:"user"`
	Expiry int64          `json:"expiry"`
}

func (h *Handler) issueToken(c *gin.Context, status int, u *database.User) {
	expiry := time.Now().Add(config.GetJWTExpiration())
	token, err := utils.GenerateJWT(u.ID, u.Email, string(u.Role), expiry)
	if err != nil {
		h.log.WithError(err).Error("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(status, LoginResponse{Token: token, User: u, Expiry: expiry.Unix()})
}

// Register creates an account and logs it in
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	u, err := h.svc.Users.Register(c.Request.Context(), services.RegisterInput{
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueToken(c, http.StatusCreated, u)
}

// Login handles user authentication and returns a JWT token
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	u, err := h.svc.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueToken(c, http.StatusOK, u)
}

// RefreshToken issues a fresh token for the authenticated user
func (h *Handler) RefreshToken(c *gin.Context) {
	u, err := h.svc.Users.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !u.IsActive {
		h.respondError(c, services.ErrAccountInactive)
		return
	}
	h.issueToken(c, http.StatusOK, u)
}

type otpRequest struct {
	Target services.OTPTarget `json:"target" binding:"required,oneof=email phone"`
	Code   string             `json:"code"`
}

// RequestOTP issues a verification code. The code is only echoed back in
// development.
func (h *Handler) RequestOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	code, err := h.svc.Users.IssueOTP(c.Request.Context(), currentUser(c), req.Target)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"message": "OTP sent"}
	if config.IsDevelopment() {
		resp["code"] = code
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	u, err := h.svc.Users.VerifyOTP(c.Request.Context(), currentUser(c), req.Target, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// ForgotPassword starts a password reset. The response is the same whether
// or not the email is registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp := gin.H{"message": "If the email is registered, a reset link has been sent"}
	token, err := h.svc.Users.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		if statusFor(err) != http.StatusNotFound {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	if config.IsDevelopment() {
		resp["token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.Users.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
