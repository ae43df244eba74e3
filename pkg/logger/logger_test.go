package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactMasksCredentialKeys(t *testing.T) {
	out := redact([]interface{}{"user_id", 7, "access_token", "abc", "DB_PASSWORD", "pw", "odd"})

	assert.Equal(t, 7, out[1])
	assert.Equal(t, "[REDACTED]", out[3])
	assert.Equal(t, "[REDACTED]", out[5])
	assert.Equal(t, "odd", out[6])
}

func TestNewDevelopmentLogger(t *testing.T) {
	log, err := New("development")
	assert.NoError(t, err)
	log.With("component", "test").Debug("hello", "k", "v")
}
