package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	UserStatusActive   = "Active"
	UserStatusInactive = "Inactive"
)

// User is a local account linked to an identity-provider subject.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AuthID       *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"auth_id,omitempty"`
	Username     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash *string    `gorm:"type:varchar(255)" json:"-"` // legacy column, never read
	RoleID       uint       `gorm:"not null;index" json:"role_id"`
	Role         *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Status       string     `gorm:"type:varchar(20);not null;default:'Active';index" json:"status"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedOn    time.Time  `gorm:"autoCreateTime" json:"created_on"`
	UpdatedOn    time.Time  `gorm:"autoUpdateTime" json:"updated_on"`
}
