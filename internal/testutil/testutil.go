// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"chemformula/internal/auth"
	"chemformula/internal/database"
	"chemformula/internal/model"
	"chemformula/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB returns a migrated sqlite database in the test's temp dir with foreign
// keys enforced.
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", filepath.Join(t.TempDir(), "test.db"))
	db, err := database.Open(sqlite.Open(dsn), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

var userSeq atomic.Int64

// CreateUser inserts an Active user holding role.
func CreateUser(t *testing.T, db *gorm.DB, role auth.Role) *model.User {
	t.Helper()
	var r model.Role
	require.NoError(t, db.First(&r, "role_name = ?", string(role)).Error)

	n := userSeq.Add(1)
	authID := uuid.New()
	u := &model.User{
		AuthID:   &authID,
		Username: fmt.Sprintf("%s-%d", role, n),
		Email:    fmt.Sprintf("%s-%d@example.com", role, n),
		RoleID:   r.ID,
		Status:   model.UserStatusActive,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Principal is the authenticated view of u.
func Principal(u *model.User, role auth.Role) *auth.Principal {
	p := &auth.Principal{UserID: u.ID, Email: u.Email, Role: role}
	if u.AuthID != nil {
		p.AuthID = *u.AuthID
	}
	return p
}

// DefaultPolicy is the stock admin set.
func DefaultPolicy() *auth.Policy {
	return auth.NewPolicy([]auth.Role{auth.RoleSuperAdmin, auth.RoleAdmin})
}
