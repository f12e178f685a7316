// Package handler holds the HTTP endpoints plus the envelope and binding
// helpers they share. Endpoints push errors onto the gin context; the error
// middleware turns them into responses.
package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinovia/clinic-api/internal/model"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
)

// ActorKey is where the auth middleware parks the verified caller.
const ActorKey = "actor"

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// Validation messages address fields by their wire name.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	}
}

// Actor returns the authenticated caller, nil on public routes.
func Actor(c *gin.Context) *model.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(*model.Actor); ok {
			return actor
		}
	}
	return nil
}

// BindJSON binds the request body and reports tag failures as field errors.
func BindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		pushBindError(c, err, "Invalid request body.")
		return false
	}
	return true
}

// BindQuery binds query parameters the same way.
func BindQuery(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindQuery(out); err != nil {
		pushBindError(c, err, "Invalid query parameters.")
		return false
	}
	return true
}

// IDParam parses a uuid path parameter.
func IDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(apperrors.NewBadRequest("Invalid identifier.", err))
		return uuid.Nil, false
	}
	return id, true
}

func pushBindError(c *gin.Context, err error, fallback string) {
	var tagErrs validator.ValidationErrors
	if errors.As(err, &tagErrs) {
		verrs := apperrors.NewValidationErrors()
		for _, fe := range tagErrs {
			verrs.Add(fe.Field(), fieldMessage(fe))
		}
		_ = c.Error(verrs)
		return
	}
	_ = c.Error(apperrors.NewBadRequest(fallback, err))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "uuid":
		return "Invalid identifier."
	case "min":
		return "Must be at least " + fe.Param() + " characters long."
	case "max":
		return "Must be at most " + fe.Param() + " characters long."
	case "len":
		return "Must be exactly " + fe.Param() + " characters long."
	case "oneof":
		return "Select a valid choice."
	case "numeric":
		return "Must contain only digits."
	case "gt", "gte":
		return "Must be a positive number."
	case "datetime":
		return "Enter a valid date in YYYY-MM-DD format."
	default:
		return "Invalid value."
	}
}
