package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"userhub/api/internal/models"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	users, err := h.accountService.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	items := make([]models.PublicUser, 0, len(users))
	for _, user := range users {
		items = append(items, user.Public())
	}

	c.JSON(http.StatusOK, gin.H{"users": items})
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h HandlerSet) AdminUpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accountService.UpdateUserRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Public()})
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	if err := h.accountService.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}
