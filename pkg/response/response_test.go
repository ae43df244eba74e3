package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chemformula/internal/apperr"
	"chemformula/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perform(t *testing.T, h gin.HandlerFunc) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestOKEnvelope(t *testing.T) {
	code, body := perform(t, func(c *gin.Context) {
		OK(c, http.StatusCreated, gin.H{"id": 1}, "created")
	})

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "created", body["message"])
	assert.NotContains(t, body, "error")
}

func TestFailHidesInternalErrors(t *testing.T) {
	code, body := perform(t, func(c *gin.Context) {
		Fail(c, logger.NewNop(), errors.New("sql: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Internal server error", body["error"])
}

func TestFailUsesErrorKind(t *testing.T) {
	code, body := perform(t, func(c *gin.Context) {
		Fail(c, nil, apperr.NotFound("resource %d not found", 9))
	})

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "resource 9 not found", body["error"])
}
