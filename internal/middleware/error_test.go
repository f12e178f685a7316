package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

// serveError runs one request through the error middleware with a handler
// that pushes err, and returns the recorded response.
func serveError(t *testing.T, err error) (*httptest.ResponseRecorder, handler.Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandler(testLogger()))
	engine.GET("/boom", func(c *gin.Context) {
		_ = c.Error(err)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	engine.ServeHTTP(w, req)

	var body handler.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestErrorHandlerRendersValidationErrors(t *testing.T) {
	verrs := apperrors.NewValidationErrors()
	verrs.Add("email", "This field is required.")
	verrs.AddNonField("The selected time is already booked.")

	w, body := serveError(t, verrs)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Validation failed.", body.Message)
	assert.Equal(t, []string{"This field is required."}, body.Errors["email"])
	assert.Equal(t, []string{"The selected time is already booked."}, body.Errors[apperrors.NonFieldKey])
}

func TestErrorHandlerMapsAppErrorCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "not found",
			err:     apperrors.NewNotFound("appointment", repository.ErrNotFound),
			status:  http.StatusNotFound,
			message: "appointment not found",
		},
		{
			name:    "bad request",
			err:     apperrors.NewBadRequest("Invalid identifier.", nil),
			status:  http.StatusBadRequest,
			message: "Invalid identifier.",
		},
		{
			name:    "forbidden",
			err:     apperrors.NewForbidden("not authorized to view this appointment"),
			status:  http.StatusForbidden,
			message: "not authorized to view this appointment",
		},
		{
			name:    "unauthorized",
			err:     apperrors.Unauthorized(errors.New("token expired")),
			status:  http.StatusUnauthorized,
			message: "Authentication required.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serveError(t, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestErrorHandlerMapsAuthSentinels(t *testing.T) {
	w, body := serveError(t, fmt.Errorf("login: %w", model.ErrInvalidCredentials))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password.", body.Message)

	w, body = serveError(t, model.ErrAccountLocked)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "Too many failed attempts. Try again later.", body.Message)

	w, body = serveError(t, model.ErrAccountInactive)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "This account has been deactivated.", body.Message)
}

func TestErrorHandlerMapsBareRepositorySentinel(t *testing.T) {
	w, body := serveError(t, fmt.Errorf("failed to get user: %w", repository.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Resource not found.", body.Message)
}

func TestErrorHandlerHidesInternals(t *testing.T) {
	w, body := serveError(t, errors.New("pq: connection refused on 10.0.0.7"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Something went wrong. Please try again later.", body.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.7")
}

func TestErrorHandlerLeavesWrittenResponsesAlone(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandler(testLogger()))
	engine.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"ok": true}))
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success"`)
}
