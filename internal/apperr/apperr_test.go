package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFollowsWrappedKind(t *testing.T) {
	err := fmt.Errorf("create user: %w", Conflict("email %s already exists", "a@b.c"))

	assert.Equal(t, http.StatusConflict, Status(err))
	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, "email a@b.c already exists", PublicMessage(err))
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	err := fmt.Errorf("query: %w", errors.New(`pq: relation "users" does not exist`))

	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.Equal(t, "Internal server error", PublicMessage(Internal(err)))
}

func TestUpstreamKeepsWrappedMessage(t *testing.T) {
	err := Upstream("identity provider unavailable", errors.New("dial tcp: timeout"))

	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, "identity provider unavailable: dial tcp: timeout", PublicMessage(err))
}

func TestStatusTable(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Status(Validation("bad")))
	assert.Equal(t, http.StatusNotFound, Status(NotFound("gone")))
	assert.Equal(t, http.StatusForbidden, Status(Forbidden("no")))
	assert.Equal(t, http.StatusUnauthorized, Status(Unauthorized("no token", nil)))
}
