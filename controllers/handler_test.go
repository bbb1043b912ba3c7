package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentease/services"
	"rentease/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", validation.Field("title", "Property title is required"), http.StatusBadRequest},
		{"invariant", &services.InvariantError{Rule: "booking_overlap", Message: "dates taken"}, http.StatusUnprocessableEntity},
		{"conflict", &services.ConflictError{Field: "email", Message: "taken"}, http.StatusConflict},
		{"transition", &services.TransitionError{Entity: "booking", From: "completed", To: "cancelled"}, http.StatusConflict},
		{"not found", fmt.Errorf("load booking: %w", services.ErrNotFound), http.StatusNotFound},
		{"forbidden", fmt.Errorf("confirm booking: %w", services.ErrForbidden), http.StatusForbidden},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"signature", services.ErrInvalidSignature, http.StatusUnauthorized},
		{"gateway", services.ErrGatewayUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func respond(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]interface{}, *bytes.Buffer) {
	t.Helper()
	logs := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(logs)
	h := NewHandler(nil, log, "")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	h.respondError(c, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body, logs
}

func TestRespondErrorBodies(t *testing.T) {
	w, body, _ := respond(t, validation.Field("rating", "Maximum rating is 5"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", body["error"])
	assert.NotEmpty(t, body["errors"])

	w, body, _ = respond(t, &services.InvariantError{Rule: "booking_overlap", Message: "Property is already booked for these dates"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "booking_overlap", body["rule"])

	w, body, _ = respond(t, &services.ConflictError{Field: "email", Message: "Email is already registered"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email", body["field"])

	w, body, _ = respond(t, services.ErrForbidden)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, services.ErrForbidden.Error(), body["error"])
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	w, body, logs := respond(t, errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error", body["error"])
	assert.Contains(t, logs.String(), "pq: connection reset")
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, 3, d.Day())

	ts, err := parseDate("2024-06-03T10:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, 5, ts.UTC().Hour())

	_, err = parseDate("03/06/2024")
	assert.Error(t, err)
}

func TestParamID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	_, ok := paramID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid id")
}
