package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
)

const genericErrorMessage = "Something went wrong. Please try again later."

// ErrorHandler renders errors that handlers pushed onto the context.
// Validation failures answer with per-field messages; anything unrecognized
// becomes a plain 500 so internals never reach the client.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, body := respond(err)
		if status >= http.StatusInternalServerError {
			log.Error(err, "request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(ContextRequestID),
			)
		}
		c.JSON(status, body)
	}
}

func respond(err error) (int, *handler.Response) {
	var verrs *apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, handler.NewValidationResponse(verrs.Fields)
	}

	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, handler.NewErrorResponse("Invalid email or password.")
	case errors.Is(err, model.ErrAccountLocked):
		return http.StatusLocked, handler.NewErrorResponse("Too many failed attempts. Try again later.")
	case errors.Is(err, model.ErrAccountInactive):
		return http.StatusForbidden, handler.NewErrorResponse("This account has been deactivated.")
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrNotFound:
			return http.StatusNotFound, handler.NewErrorResponse(appErr.Message)
		case apperrors.ErrBadRequest, apperrors.ErrValidation:
			return http.StatusBadRequest, handler.NewErrorResponse(appErr.Message)
		case apperrors.ErrUnauthorized:
			return http.StatusUnauthorized, handler.NewErrorResponse("Authentication required.")
		case apperrors.ErrForbidden:
			return http.StatusForbidden, handler.NewErrorResponse(appErr.Message)
		case apperrors.ErrConflict:
			return http.StatusConflict, handler.NewErrorResponse(appErr.Message)
		}
		return http.StatusInternalServerError, handler.NewErrorResponse(genericErrorMessage)
	}

	// Repository sentinels that escaped without a service-level wrap.
	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound, handler.NewErrorResponse("Resource not found.")
	}

	return http.StatusInternalServerError, handler.NewErrorResponse(genericErrorMessage)
}
