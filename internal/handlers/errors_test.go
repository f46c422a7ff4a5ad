package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"userhub/api/internal/service"
)

func TestRespondServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := HandlerSet{log: zerolog.Nop()}

	tests := []struct {
		err  error
		want int
	}{
		{service.ErrValidation, http.StatusBadRequest},
		{service.ErrInvalidRole, http.StatusBadRequest},
		{service.ErrTokenInvalid, http.StatusBadRequest},
		{service.ErrUnsupportedAvatar, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrNotVerified, http.StatusForbidden},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrEmailTaken, http.StatusConflict},
		{service.ErrUsernameTaken, http.StatusConflict},
		{service.ErrAvatarTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("pg connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		h.respondServiceError(c, tt.err)
		assert.Equal(t, tt.want, rec.Code, "error %v", tt.err)
	}
}

func TestUnexpectedErrorDoesNotLeakDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := HandlerSet{log: zerolog.Nop()}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.respondServiceError(c, errors.New("dial tcp 10.0.0.3:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), "internal_server_error")
}
