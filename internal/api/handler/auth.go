// internal/api/handler/auth.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"traderiser/internal/domain"
	"traderiser/internal/service"
	"traderiser/internal/util"
)

// AuthHandler handles registration, login, token refresh and the one-time
// code flows.
type AuthHandler struct {
	service service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  logger,
	}
}

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	AccountType  string `json:"account_type"`
	ReferralCode string `json:"referral_code"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

func authResultPayload(result *service.AuthResult) map[string]interface{} {
	payload := map[string]interface{}{
		"access":  result.AccessToken,
		"refresh": result.RefreshToken,
		"user":    result.User,
	}
	if result.ActiveAccount != nil {
		payload["account"] = result.ActiveAccount
		payload["balance"] = result.ActiveBalance
	}
	if result.RecentlyRecovered {
		payload["recently_recovered"] = true
		payload["recovered_from"] = result.RecoveredFrom
	}
	if result.Suspension != nil {
		payload["suspension"] = result.Suspension
	}
	return payload
}

// Signup handles the registration request.
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	result, err := h.service.Signup(r.Context(), service.SignupParams{
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     req.Password,
		AccountType:  domain.AccountType(req.AccountType),
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, authResultPayload(result))
}

// Login handles the login request. A suspended user still receives tokens;
// the suspension block on the response tells the client what surface remains.
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, domain.AccountType(req.AccountType))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, authResultPayload(result))
}

// RefreshRequest represents the request body for token refresh.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh handles the token refresh request.
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	access, refresh, err := h.service.Refresh(r.Context(), req.Refresh)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{
		"access":  access,
		"refresh": refresh,
	})
}

// emailRequest is shared by the code-based flows.
type emailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// SendVerificationCode emails an email-verification code.
// POST /auth/verify-email/send
func (h *AuthHandler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if err := h.service.SendVerificationCode(r.Context(), req.Email); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

// VerifyEmail consumes an email-verification code.
// POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if err := h.service.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// RequestPasswordReset emails a password reset code.
// POST /auth/password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "If the address exists, a code was sent"})
}

// VerifyPasswordReset checks a reset code without consuming it.
// POST /auth/password-reset/verify
func (h *AuthHandler) VerifyPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if err := h.service.VerifyPasswordReset(r.Context(), req.Email, req.Code); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Code valid"})
}

// ConfirmPasswordResetRequest represents the final reset step.
type ConfirmPasswordResetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ConfirmPasswordReset consumes a reset code and replaces the password.
// POST /auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if err := h.service.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword, req.ConfirmPassword); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Password reset"})
}

// ReferralCode returns the caller's referral code, minting one for marketers
// on first use.
// GET /auth/referral-code
func (h *AuthHandler) ReferralCode(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	code, err := h.service.EnsureReferralCode(r.Context(), user.ID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"referral_code": code})
}
