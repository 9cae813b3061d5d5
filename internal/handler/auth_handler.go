package handler

import (
	"net/http"

	"go-shop-admin/internal/middleware"
	"go-shop-admin/internal/model"
	"go-shop-admin/internal/service"
	"go-shop-admin/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.APIResponse{
		Success: true,
		Message: "registered, verification code sent",
		Data:    result.User,
		Token:   result.AccessToken,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), payload.LoginIdentifier(), payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSession(w, http.StatusOK, "login successful", result.User, result.Tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Logout(r.Context(), payload.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "logged out", nil, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSession(w, http.StatusOK, "token refreshed", result.User, result.Tokens)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var payload model.VerifyCodeRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.VerifyEmail(r.Context(), payload.Email, payload.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "email verified", user, nil)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var payload model.EmailRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ResendVerification(r.Context(), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "verification code sent", nil, nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.EmailRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "reset code sent", nil, nil)
}

func (h *AuthHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var payload model.VerifyCodeRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.VerifyResetCode(r.Context(), payload.Email, payload.Code); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "code is valid", nil, nil)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ChangePasswordRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), payload.Email, payload.Code, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "password changed", nil, nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	var payload model.ResetPasswordRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), actor, payload.Email, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "password reset", nil, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	writeSuccess(w, http.StatusOK, "profile", principal, nil)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	var payload model.ProfileUpdateRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), principal.ID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "profile updated", user, nil)
}
