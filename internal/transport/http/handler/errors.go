package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer     = "Internal server error"
	errInvalidBody        = "Invalid request body"
	errInvalidInput       = "Invalid input"
	errUserExists         = "User already exists with this email"
	errUserNotFound       = "User not found"
	errInvalidCredentials = "Invalid email or password"
	errWrongOldPassword   = "Old password is incorrect"
	errPasswordMismatch   = "New password and confirm password do not match"
	errInvalidOTP         = "Invalid OTP"
	errExpiredOTP         = "OTP has expired"
	errOTPNotSent         = "Failed to send OTP, please try again"
	errTooManyAttempts    = "Too many attempts, please try again later"
	errNothingToUpdate    = "No fields to update"
)

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": false, "message": message})
}

// respondError maps domain sentinels onto status and message. Anything
// unrecognised is logged and reported as a 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		fail(c, http.StatusBadRequest, errInvalidInput)
	case errors.Is(err, domain.ErrConflict):
		fail(c, http.StatusBadRequest, errUserExists)
	case errors.Is(err, domain.ErrUserNotFound):
		fail(c, http.StatusNotFound, errUserNotFound)
	case errors.Is(err, domain.ErrInvalidCredentials):
		fail(c, http.StatusBadRequest, errInvalidCredentials)
	case errors.Is(err, domain.ErrPasswordMismatch):
		fail(c, http.StatusBadRequest, errPasswordMismatch)
	case errors.Is(err, domain.ErrPasscodeInvalid):
		fail(c, http.StatusBadRequest, errInvalidOTP)
	case errors.Is(err, domain.ErrPasscodeExpired):
		fail(c, http.StatusBadRequest, errExpiredOTP)
	case errors.Is(err, domain.ErrRateLimited):
		fail(c, http.StatusTooManyRequests, errTooManyAttempts)
	case errors.Is(err, domain.ErrOTPNotSent):
		logger.WarnContext(c.Request.Context(), op, "error", err)
		fail(c, http.StatusInternalServerError, errOTPNotSent)
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		fail(c, http.StatusInternalServerError, errInternalServer)
	}
}
