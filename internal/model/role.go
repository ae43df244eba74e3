package model

import (
	"time"

	"gorm.io/datatypes"
)

// Role is a seeded row mirroring one entry of the role enumeration; Permissions
// holds the capability list granted to it.
type Role struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	RoleName    string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"role_name"`
	Permissions datatypes.JSON `json:"permissions"`
	CreatedOn   time.Time      `gorm:"autoCreateTime" json:"created_on"`
}
