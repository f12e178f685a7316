// Package auth exposes login, registration and the password flows.
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinovia/clinic-api/internal/handler"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/service/auth"
)

type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, user, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"tokens": tokens,
		"user":   user,
	}))
}

// Register is the patient self-signup. Staff accounts are created through
// the user administration endpoints.
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.service.RegisterPatient(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(user))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req model.RefreshTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(tokens))
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context(), handler.Actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(user))
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req model.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), handler.Actor(c), &req); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// ForgotPassword always answers the same way so the endpoint can not be
// used to probe which emails are registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, &handler.Response{
		Status:  "success",
		Message: "If that email is registered, a reset code is on its way.",
	})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), &req); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, &handler.Response{
		Status:  "success",
		Message: "Your password has been reset. You can sign in now.",
	})
}
