package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// userAdmin is the subset of CredentialUsecase the admin routes need.
type userAdmin interface {
	List(ctx context.Context) ([]*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateByAdmin(ctx context.Context, id string, update domain.AdminUpdate) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type UserHandler struct {
	users  userAdmin
	logger *slog.Logger
}

func NewUserHandler(users userAdmin, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger.With("component", "user_handler")}
}

// GET /get/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list users", err)
		return
	}

	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = toUserResponse(u)
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "message": "OK", "users": items})
}

// userIDParam reads :id. A malformed id cannot name a user, so it is a 404.
func userIDParam(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, errUserNotFound)
		return "", false
	}
	return id.String(), true
}

// GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	user, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "message": "OK", "user": toUserResponse(user)})
}

type adminUpdateRequest struct {
	Name  string      `json:"name"  binding:"required,min=5,max=50"`
	Email string      `json:"email" binding:"required,email"`
	Role  domain.Role `json:"role"  binding:"required,oneof=admin user"`
}

// PUT /update/user/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	var req adminUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateByAdmin(c.Request.Context(), id, domain.AdminUpdate{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		respondError(c, h.logger, "update user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "message": "User updated successfully", "user": toUserResponse(user)})
}

// DELETE /delete/user/:id
// Soft delete; the email becomes available for a new signup.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "delete user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "message": "User deleted successfully"})
}
