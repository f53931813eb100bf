package api

import (
	"net/http"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/service"
	"mindcare/backend/pkg/errors"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"
	"mindcare/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication and profile requests
type AuthHandler struct {
	service *service.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.UserService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Signup handles user registration
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := h.service.Signup(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromContext(c).Info("User signed up", "user_id", user.ID)
	c.JSON(http.StatusCreated, models.AuthResponse{User: user.ToResponse(), Token: token})
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromContext(c).Info("User logged in", "user_id", user.ID, "role", user.Role)
	c.JSON(http.StatusOK, models.AuthResponse{User: user.ToResponse(), Token: token})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

// ForgotPassword always answers 200 so the response does not reveal whether an account exists
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the address belongs to an account, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// UpdateUserRole allows admins to update a user's role
func (h *AuthHandler) UpdateUserRole(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req models.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateUserRole(c.Request.Context(), id, jwt.Role(req.Role))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		c.Abort()
	}
	return userID, ok
}
