package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nexuslabs/nexus-auth/internal/account"
	"github.com/nexuslabs/nexus-auth/internal/httputil"
	"github.com/nexuslabs/nexus-auth/internal/logging"
)

// Handler contains HTTP handlers for the authentication endpoints
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RequestResetRequest represents the password reset request body
type RequestResetRequest struct {
	Email string `json:"email"`
}

// VerifyResetRequest represents the reset verification request body
type VerifyResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ChangePasswordRequest represents the change password request body
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// LoginResponse represents the login response body
type LoginResponse struct {
	Token string          `json:"token"`
	User  AccountResponse `json:"user"`
}

// MessageResponse represents a plain success message
type MessageResponse struct {
	Message string `json:"message"`
}

// ProfileResponse represents the profile response body
type ProfileResponse struct {
	User AccountResponse `json:"user"`
}

// decodeJSON parses the request body into dst, rejecting unknown fields at
// the boundary instead of deep in the flow.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// isValidationError reports whether err is a client-correctable input error
func isValidationError(err error) bool {
	return errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrInvalidEmailFormat) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrPasswordTooShort)
}

// Signup handles account creation
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newAccount, err := h.service.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		if isValidationError(err) {
			logger.Warn("signup failed: validation error", "error", err.Error())
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		if errors.Is(err, account.ErrDuplicateEmail) {
			logger.Warn("signup failed: email already registered")
			httputil.RespondErrorWithCode(w, "email already registered", httputil.CodeDuplicateAccount, http.StatusBadRequest)
			return
		}
		logger.Error("signup failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to create account", httputil.CodeStoreError, http.StatusInternalServerError)
		return
	}

	logger.Info("account created", "account_id", newAccount.ID)

	httputil.RespondJSON(w, MessageResponse{Message: "account created successfully"}, http.StatusOK)
}

// Login handles authentication and token issuance
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to login", httputil.CodeStoreError, http.StatusInternalServerError)
		return
	}

	logger.Info("login succeeded", "account_id", result.Account.ID)

	httputil.RespondJSON(w, LoginResponse{
		Token: result.Token,
		User: AccountResponse{
			ID:    result.Account.ID,
			Email: result.Account.Email,
		},
	}, http.StatusOK)
}

// RequestReset handles password reset initiation
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RequestResetRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid reset request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.RequestReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			logger.Warn("reset request failed: account not found")
			httputil.RespondErrorWithCode(w, "account not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrDeliveryFailed) {
			logger.Error("reset request failed: delivery error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to send one-time code", httputil.CodeDeliveryFailed, http.StatusInternalServerError)
			return
		}
		logger.Error("reset request failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to request reset", httputil.CodeStoreError, http.StatusInternalServerError)
		return
	}

	logger.Info("reset code sent")

	// The code travels only by email, never in the response
	httputil.RespondJSON(w, MessageResponse{Message: "a one-time code has been sent to your email"}, http.StatusOK)
}

// VerifyReset handles reset code consumption and password replacement
func (h *Handler) VerifyReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyResetRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid verify reset request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.VerifyReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		if isValidationError(err) {
			logger.Warn("verify reset failed: validation error", "error", err.Error())
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrInvalidOTP) {
			logger.Warn("verify reset failed: invalid or expired code")
			httputil.RespondErrorWithCode(w, "invalid or expired one-time code", httputil.CodeInvalidOrExpiredOTP, http.StatusBadRequest)
			return
		}
		logger.Error("verify reset failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to reset password", httputil.CodeStoreError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset completed")

	httputil.RespondJSON(w, MessageResponse{Message: "password reset successfully"}, http.StatusOK)
}

// ChangePassword handles password change for an authenticated account
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "unauthorized", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid change password request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"account_id": accountID})

	if err := h.service.ChangePassword(r.Context(), accountID, req.OldPassword, req.NewPassword); err != nil {
		if isValidationError(err) {
			logger.Warn("change password failed: validation error", "error", err.Error())
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrInvalidOldPassword) {
			logger.Warn("change password failed: old password mismatch")
			httputil.RespondErrorWithCode(w, "old password is incorrect", httputil.CodeInvalidOldPassword, http.StatusBadRequest)
			return
		}
		if errors.Is(err, account.ErrNotFound) {
			// token outlived the account
			logger.Warn("change password failed: account no longer exists")
			httputil.RespondErrorWithCode(w, "unauthorized", httputil.CodeUnauthorized, http.StatusUnauthorized)
			return
		}
		logger.Error("change password failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to change password", httputil.CodeStoreError, http.StatusInternalServerError)
		return
	}

	logger.Info("password changed")

	httputil.RespondJSON(w, MessageResponse{Message: "password changed successfully"}, http.StatusOK)
}

// Me handles profile retrieval for an authenticated account
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	accountID, ok := GetAccountIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "unauthorized", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			logger.Warn("profile lookup failed: account not found", "account_id", accountID)
			httputil.RespondErrorWithCode(w, "account not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		logger.Error("profile lookup failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to get profile", httputil.CodeStoreError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ProfileResponse{
		User: AccountResponse{
			ID:    profile.ID,
			Email: profile.Email,
		},
	}, http.StatusOK)
}
