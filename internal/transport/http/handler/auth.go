package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/transport/http/middleware"
	"github.com/ErlanBelekov/medico-billing/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	SignUp(ctx context.Context, in usecase.CreateUserInput) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (usecase.SignInResult, error)
	VerifySigninOTP(ctx context.Context, email, code string) (*usecase.Session, error)
	SendResetOTP(ctx context.Context, email string) error
	VerifyResetOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) error
	ChangePassword(ctx context.Context, userID string, in usecase.ChangePasswordInput) error
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*usecase.Session, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// cookieWriter is satisfied by *session.Issuer.
type cookieWriter interface {
	SetCookie(c *gin.Context, token string)
	ClearCookie(c *gin.Context)
}

type AuthHandler struct {
	authUsecase authUsecaser
	cookies     cookieWriter
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, cookies cookieWriter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		cookies:     cookies,
		logger:      logger.With("component", "auth_handler"),
	}
}

type userResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
	City      string      `json:"city"`
	State     string      `json:"state"`
	Pincode   string      `json:"pincode"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Phone:     u.Phone,
		Address:   u.Address,
		City:      u.City,
		State:     u.State,
		Pincode:   u.Pincode,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type signupRequest struct {
	Name     string      `json:"name"     binding:"required,min=5,max=50"`
	Email    string      `json:"email"    binding:"required,email"`
	Password string      `json:"password" binding:"required,min=5,max=72"`
	Role     domain.Role `json:"role"     binding:"required,oneof=admin user"`
	Phone    string      `json:"phone"    binding:"omitempty,max=20"`
	Address  string      `json:"address"  binding:"omitempty,max=200"`
	City     string      `json:"city"     binding:"omitempty,max=60"`
	State    string      `json:"state"    binding:"omitempty,max=60"`
	Pincode  string      `json:"pincode"  binding:"omitempty,numeric,max=10"`
}

// POST /signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authUsecase.SignUp(c.Request.Context(), usecase.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Phone:    req.Phone,
		Address:  req.Address,
		City:     req.City,
		State:    req.State,
		Pincode:  req.Pincode,
	})
	if err != nil {
		respondError(c, h.logger, "signup", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  true,
		"message": "User created successfully",
		"user":    toUserResponse(user),
	})
}

type signinRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /signin
// Success means the password matched. The session only exists after /otp/verify.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signinRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authUsecase.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			err = domain.ErrInvalidCredentials
		}
		respondError(c, h.logger, "signin", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        true,
		"message":       "OTP sent to your email",
		"otpDispatched": res.OTPDispatched,
	})
}

type otpRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"   binding:"required,len=6,numeric"`
}

// POST /otp/verify
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req otpRequest
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.authUsecase.VerifySigninOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		respondError(c, h.logger, "verify signin otp", err)
		return
	}

	h.cookies.SetCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{
		"status":    true,
		"message":   "Signed in successfully",
		"user":      toUserResponse(sess.User),
		"expiresAt": sess.ExpiresAt,
	})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /forgot-password/send-otp
func (h *AuthHandler) SendResetOTP(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authUsecase.SendResetOTP(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "send reset otp", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "OTP sent to your email"})
}

// POST /forgot-password/verify-otp
// Does not consume the code; reset-password must present it again.
func (h *AuthHandler) VerifyResetOTP(c *gin.Context) {
	var req otpRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authUsecase.VerifyResetOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		respondError(c, h.logger, "verify reset otp", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "OTP verified"})
}

type resetPasswordRequest struct {
	Email           string `json:"email"           binding:"required,email"`
	OTP             string `json:"otp"             binding:"required,len=6,numeric"`
	NewPassword     string `json:"newPassword"     binding:"required,min=5,max=72"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// PUT /forgot-password/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.authUsecase.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Email:           req.Email,
		Code:            req.OTP,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Password reset successfully"})
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"     binding:"required"`
	NewPassword     string `json:"newPassword"     binding:"required,min=5,max=72"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// PUT /password/change
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.authUsecase.ChangePassword(c.Request.Context(), c.GetString(middleware.UserIDKey), usecase.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			fail(c, http.StatusBadRequest, errWrongOldPassword)
			return
		}
		respondError(c, h.logger, "change password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Password changed successfully"})
}

type updateProfileRequest struct {
	Name    *string `json:"name"    binding:"omitempty,min=5,max=50"`
	Email   *string `json:"email"   binding:"omitempty,email"`
	Phone   *string `json:"phone"   binding:"omitempty,max=20"`
	Address *string `json:"address" binding:"omitempty,max=200"`
	City    *string `json:"city"    binding:"omitempty,max=60"`
	State   *string `json:"state"   binding:"omitempty,max=60"`
	Pincode *string `json:"pincode" binding:"omitempty,max=10"`
}

// PUT /profile/update
// The session cookie is reissued so its claims match the stored record.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	update := domain.ProfileUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Pincode: req.Pincode,
	}
	if update.Empty() {
		fail(c, http.StatusBadRequest, errNothingToUpdate)
		return
	}

	sess, err := h.authUsecase.UpdateProfile(c.Request.Context(), c.GetString(middleware.UserIDKey), update)
	if err != nil {
		respondError(c, h.logger, "update profile", err)
		return
	}

	h.cookies.SetCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Profile updated successfully",
		"user":    toUserResponse(sess.User),
	})
}

// POST /signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	h.cookies.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Signed out successfully"})
}

// GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUsecase.Me(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.logger, "me", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "OK", "user": toUserResponse(user)})
}
