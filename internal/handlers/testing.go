package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"userhub/api/internal/models"
	"userhub/api/internal/repository"
)

// Endpoints for the e2e suites. Registered only when testing.enabled is set;
// config.Load refuses that in production.

type testUserRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h HandlerSet) TestVerifyUser(c *gin.Context) {
	var req testUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.respondServiceError(c, err)
		return
	}

	if err := h.users.MarkVerified(c.Request.Context(), user.ID); err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user verified"})
}

type testSetRoleRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

func (h HandlerSet) TestSetUserRole(c *gin.Context) {
	var req testSetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.respondServiceError(c, err)
		return
	}

	if err := h.users.UpdateRole(c.Request.Context(), user.ID, role); err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}

func (h HandlerSet) TestClearDatabase(c *gin.Context) {
	if err := h.users.DeleteAll(c.Request.Context()); err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "database cleared"})
}
