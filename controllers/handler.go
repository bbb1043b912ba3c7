package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentease/database"
	"rentease/services"
	"rentease/validation"
)

// Handler exposes the services over HTTP
type Handler struct {
	svc *services.Services
	log *logrus.Logger
	// gatewayKey is the public Razorpay key handed to checkout clients
	gatewayKey string
}

func NewHandler(svc *services.Services, log *logrus.Logger, gatewayKey string) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{svc: svc, log: log, gatewayKey: gatewayKey}
}

// statusFor maps a service error onto an HTTP status
func statusFor(err error) int {
	var (
		verrs      validation.Errors
		conflict   *services.ConflictError
		invariant  *services.InvariantError
		transition *services.TransitionError
	)
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.As(err, &invariant):
		return http.StatusUnprocessableEntity
	case errors.As(err, &conflict), errors.As(err, &transition):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrAccountInactive),
		errors.Is(err, services.ErrOTPInvalid),
		errors.Is(err, services.ErrOTPExpired),
		errors.Is(err, services.ErrResetTokenInvalid),
		errors.Is(err, services.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status statusFor picks. Unexpected
// errors are logged and hidden from the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)

	var verrs validation.Errors
	var conflict *services.ConflictError
	var inv *services.InvariantError
	switch {
	case errors.As(err, &verrs):
		c.JSON(status, gin.H{"error": "Validation failed", "errors": verrs})
	case errors.As(err, &conflict):
		c.JSON(status, gin.H{"error": conflict.Message, "field": conflict.Field})
	case errors.As(err, &inv):
		c.JSON(status, gin.H{"error": inv.Message, "rule": inv.Rule})
	case status == http.StatusInternalServerError:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		c.JSON(status, gin.H{"error": "Server error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// currentUser returns the authenticated user id set by AuthMiddleware
func currentUser(c *gin.Context) uuid.UUID {
	id, _ := c.Get("userID")
	uid, _ := id.(uuid.UUID)
	return uid
}

func currentRole(c *gin.Context) database.Role {
	role, _ := c.Get("role")
	r, _ := role.(database.Role)
	return r
}

func isAdmin(c *gin.Context) bool {
	return currentRole(c) == database.RoleAdmin
}

// paramID parses the :name path parameter, answering 400 when malformed
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func page(c *gin.Context) services.Page {
	p, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return services.Page{Page: p, Limit: limit}
}

func queryFloat(c *gin.Context, key string) float64 {
	v, _ := strconv.ParseFloat(c.Query(key), 64)
	return v
}
